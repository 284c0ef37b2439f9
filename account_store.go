package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountStore persists accounts. Finders return an error satisfying
// IsNotFound when nothing matches. Create reports uniqueness violations as
// a conflict naming the colliding field. Update replaces the stored record
// with the given one.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindByVerificationToken only matches codes whose expiry is after now.
	FindByVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error)
	// FindByResetToken matches regardless of expiry so callers can tell an
	// expired code from an unknown one.
	FindByResetToken(ctx context.Context, token string) (*Account, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	Update(ctx context.Context, account *Account) (*Account, error)
}

func accountNotFound(key string, value any) error {
	return ErrAccountNotFound.Clone().WithMetadata(map[string]any{
		key: value,
	})
}
