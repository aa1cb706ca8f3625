package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, accountID string, tokenID string) error
	PublishAccountCreated(ctx context.Context, accountID string, email string) error
}
