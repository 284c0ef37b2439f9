package auth

import (
	"context"

	"github.com/google/uuid"
)

// SessionGuard resolves a session credential into the account it belongs to.
type SessionGuard struct {
	signer TokenSigner
	store  AccountStore
	logger Logger
}

// NewSessionGuard creates a guard
func NewSessionGuard(signer TokenSigner, store AccountStore, logger Logger) *SessionGuard {
	if logger == nil {
		logger = defLogger{}
	}
	return &SessionGuard{
		signer: signer,
		store:  store,
		logger: logger,
	}
}

// Resolve returns the account bound to credential. Missing, invalid or
// dangling credentials all fail with ErrNotAuthorized; only storage
// failures surface as internal errors.
func (g *SessionGuard) Resolve(ctx context.Context, credential string) (*Account, error) {
	if credential == "" {
		return nil, ErrNotAuthorized
	}

	subject, err := g.signer.Verify(credential)
	if err != nil {
		return nil, ErrNotAuthorized
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		g.logger.Debug("session subject is not an account id", "subject", subject)
		return nil, ErrNotAuthorized
	}

	account, err := g.store.FindByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotAuthorized
		}
		return nil, wrapInternal(err, "failed to resolve session account")
	}

	return account, nil
}

// Validate implements the token validator used by the jwt middleware.
func (g *SessionGuard) Validate(ctx context.Context, credential string) (any, error) {
	return g.Resolve(ctx, credential)
}
