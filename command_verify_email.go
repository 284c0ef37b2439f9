package auth

import (
	"context"
)

// VerifyEmail consumes a pending verification code and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, msg VerifyEmailMessage) (*AccountResult, []SideEffect, error) {
	select {
	case <-ctx.Done():
		return nil, nil, cancelled(ctx, "email verification")
	default:
		return s.verifyEmail(ctx, msg)
	}
}

func (s *Service) verifyEmail(ctx context.Context, msg VerifyEmailMessage) (*AccountResult, []SideEffect, error) {
	msg.Token = trimmed(msg.Token)

	if err := validateMessage(msg, "Token not provided"); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account, err := s.store.FindByVerificationToken(ctx, msg.Token, s.now())
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, ErrInvalidOrExpiredToken
		}
		return nil, nil, wrapInternal(err, "failed to look up verification token")
	}

	account.IsVerified = true
	account.ClearVerificationToken()

	updated, err := s.store.Update(ctx, account)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to mark account verified")
	}

	s.record(ctx, ActivityEventEmailVerified, updated.ID.String(), nil)

	return &AccountResult{
			Message: "Email verfied successfully",
			Account: updated.View(),
		}, []SideEffect{
			SendEmail{Email: Email{
				Kind: EmailWelcome,
				To:   updated.Email,
				Data: map[string]string{"userName": updated.Username},
			}},
		}, nil
}
