package port

import (
	"context"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
)

// AccountRepository exposes persistence behaviour for accounts. The registry
// is the only caller; it holds the locks that serialize mutations, so
// implementations only need to be individually consistent.
type AccountRepository interface {
	// LoadAll returns every account in registration order.
	LoadAll(ctx context.Context) ([]*domain.Account, error)
	// FindByUsername returns the account with the given normalized username,
	// or repository.ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	// Add appends a new account. The id must already be assigned.
	Add(ctx context.Context, account *domain.Account) error
	// Update overwrites the stored account identified by username, keeping
	// its registration position. The stored record may end up with a
	// different username when the registry replaces an account wholesale.
	Update(ctx context.Context, username string, account *domain.Account) error
	// Remove deletes the account identified by username.
	Remove(ctx context.Context, username string) error
}
