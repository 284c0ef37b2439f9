package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const accountLocalsKey = "account"

var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// AccountFromLocals returns the account stored by the protected route
// middleware.
func AccountFromLocals(c *fiber.Ctx) (*Account, bool) {
	raw, ok := c.Locals(accountLocalsKey).(*Account)
	return raw, ok && raw != nil
}
