package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-authflow/middleware/jwtware"
)

// ValidationListener runs on protected routes after the session resolved
// to an account. Returning an error rejects the request with 401.
type ValidationListener = jwtware.ValidationListener

// RequireVerifiedAccount rejects sessions whose account has not confirmed
// its email yet. Registration opens a session before verification, so
// routes that need a confirmed address add this listener.
func RequireVerifiedAccount(_ *fiber.Ctx, subject any) error {
	account, ok := subject.(*Account)
	if !ok || account == nil {
		return ErrNotAuthorized
	}
	if !account.IsVerified {
		return ErrEmailNotVerified
	}
	return nil
}

func appendListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	for _, l := range listeners {
		if l != nil {
			cfg.ValidationListeners = append(cfg.ValidationListeners, l)
		}
	}
}
