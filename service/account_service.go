package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/ports"
)

// AccountService resolves verified token subjects to stored accounts
type AccountService struct {
	accounts ports.AccountRepository
}

func NewAccountService(accounts ports.AccountRepository) *AccountService {
	return &AccountService{accounts: accounts}
}

// Get returns the account whose ID equals the subject's account ID
func (s *AccountService) Get(ctx context.Context, subject *core.Subject) (*core.Account, error) {
	if subject == nil || subject.AccountID == "" {
		return nil, core.ErrNotFound
	}

	account, err := s.accounts.FindByID(ctx, subject.AccountID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return account, nil
}
