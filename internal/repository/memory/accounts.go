package memory

import (
	"context"
	"strings"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/repository"
)

// AccountRepository keeps accounts in process memory, preserving registration
// order. Intended for development and tests; the registry serializes access.
type AccountRepository struct {
	accounts []*domain.Account
}

// NewAccountRepository returns an empty in-memory account store.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

// LoadAll returns every account in registration order.
func (r *AccountRepository) LoadAll(_ context.Context) ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		out = append(out, acct.Clone())
	}
	return out, nil
}

// FindByUsername returns the account with the given normalized username.
func (r *AccountRepository) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	idx := r.indexOf(username)
	if idx < 0 {
		return nil, repository.ErrNotFound
	}
	return r.accounts[idx].Clone(), nil
}

// Add appends a new account.
func (r *AccountRepository) Add(_ context.Context, account *domain.Account) error {
	if r.indexOf(account.Username) >= 0 {
		return repository.ErrDuplicate
	}
	r.accounts = append(r.accounts, account.Clone())
	return nil
}

// Update overwrites the stored account identified by username in place.
func (r *AccountRepository) Update(_ context.Context, username string, account *domain.Account) error {
	idx := r.indexOf(username)
	if idx < 0 {
		return repository.ErrNotFound
	}
	r.accounts[idx] = account.Clone()
	return nil
}

// Remove deletes the account identified by username.
func (r *AccountRepository) Remove(_ context.Context, username string) error {
	idx := r.indexOf(username)
	if idx < 0 {
		return repository.ErrNotFound
	}
	r.accounts = append(r.accounts[:idx], r.accounts[idx+1:]...)
	return nil
}

func (r *AccountRepository) indexOf(username string) int {
	needle := strings.ToLower(strings.TrimSpace(username))
	for i, acct := range r.accounts {
		if acct.Username == needle {
			return i
		}
	}
	return -1
}
