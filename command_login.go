package auth

import (
	"context"
)

// Login checks the credentials of a verified account and opens a session.
// The verification check happens before the password check.
func (s *Service) Login(ctx context.Context, msg LoginMessage) (*LoginResult, []SideEffect, error) {
	select {
	case <-ctx.Done():
		return nil, nil, cancelled(ctx, "login")
	default:
		return s.login(ctx, msg)
	}
}

func (s *Service) login(ctx context.Context, msg LoginMessage) (*LoginResult, []SideEffect, error) {
	msg.Email = NormalizeEmail(msg.Email)

	if err := validateMessage(msg, "Please provide all fields"); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account, err := s.store.FindByEmail(ctx, msg.Email)
	if err != nil {
		if IsNotFound(err) {
			s.loginFailed(ctx, "", "not_found")
			return nil, nil, NotFound("User not found")
		}
		return nil, nil, wrapInternal(err, "failed to look up account")
	}

	if !account.IsVerified {
		s.loginFailed(ctx, account.ID.String(), "not_verified")
		return nil, nil, ErrEmailNotVerified
	}

	ok, err := s.hasher.Verify(msg.Password, account.PasswordHash)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to verify password")
	}
	if !ok {
		s.loginFailed(ctx, account.ID.String(), "invalid_password")
		return nil, nil, ErrInvalidPassword
	}

	token, err := s.signer.Issue(account.ID.String())
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to issue session token")
	}

	now := s.now()
	account.LastLoginAt = &now
	if updated, err := s.store.Update(ctx, account); err != nil {
		s.logger.Warn("failed to record last login", "account_id", account.ID.String(), "error", err)
	} else {
		account = updated
	}

	s.record(ctx, ActivityEventLoginSuccess, account.ID.String(), nil)

	return &LoginResult{
			AccountResult: AccountResult{
				Message: "Login successfull",
				Account: account.View(),
			},
			Token: token,
		}, []SideEffect{
			SetSessionCookie{Token: token},
		}, nil
}

func (s *Service) loginFailed(ctx context.Context, accountID, reason string) {
	s.record(ctx, ActivityEventLoginFailure, accountID, map[string]any{
		"reason": reason,
	})
}
