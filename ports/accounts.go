package ports

import (
	"context"

	"github.com/layer-3/zeroturbo/core"
)

// AccountRepository persists accounts. Lookups return core.ErrNotFound when no row matches.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*core.Account, error)
	FindByEmail(ctx context.Context, email string) (*core.Account, error)
	Create(ctx context.Context, account *core.Account) (*core.Account, error)
}

// Mailer delivers pin codes
type Mailer interface {
	SendCode(ctx context.Context, email string, code string) error
}
