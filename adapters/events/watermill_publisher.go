package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	LogoutTopic         = "zeroturbo.logout"
	AccountCreatedTopic = "zeroturbo.account.created"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	AccountID string `json:"account_id"`
	TokenID   string `json:"token_id"`
}

// AccountCreatedEvent is published the first time an email signs in
type AccountCreatedEvent struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, accountID string, tokenID string) error {
	return p.publish(ctx, LogoutTopic, tokenID, LogoutEvent{
		AccountID: accountID,
		TokenID:   tokenID,
	})
}

// PublishAccountCreated publishes an account creation event
func (p *WatermillPublisher) PublishAccountCreated(ctx context.Context, accountID string, email string) error {
	return p.publish(ctx, AccountCreatedTopic, watermill.NewUUID(), AccountCreatedEvent{
		AccountID: accountID,
		Email:     email,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
