package auth

import (
	"context"
)

// ResetPassword consumes a reset code and replaces the password. Expired
// codes are cleared when detected so they never match again.
func (s *Service) ResetPassword(ctx context.Context, msg ResetPasswordMessage) (*MessageResult, []SideEffect, error) {
	select {
	case <-ctx.Done():
		return nil, nil, cancelled(ctx, "password reset finalization")
	default:
		return s.resetPassword(ctx, msg)
	}
}

func (s *Service) resetPassword(ctx context.Context, msg ResetPasswordMessage) (*MessageResult, []SideEffect, error) {
	msg.Token = trimmed(msg.Token)

	if err := validateMessage(msg, "Credentials not provided"); err != nil {
		return nil, nil, err
	}

	if err := validatePassword(msg.Password); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account, err := s.store.FindByResetToken(ctx, msg.Token)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, NotFound("User not found")
		}
		return nil, nil, wrapInternal(err, "failed to look up reset code")
	}

	if IsExpired(account.ResetPasswordTokenExpiresAt, s.now()) {
		account.ClearResetToken()
		if _, err := s.store.Update(ctx, account); err != nil {
			s.logger.Warn("failed to clear expired reset code", "account_id", account.ID.String(), "error", err)
		}
		return nil, nil, ErrResetTokenExpired
	}

	hash, err := s.hasher.Hash(msg.Password)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to hash password")
	}

	account.PasswordHash = hash
	account.ClearResetToken()

	updated, err := s.store.Update(ctx, account)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to update password")
	}

	s.record(ctx, ActivityEventPasswordResetSuccess, updated.ID.String(), nil)

	return &MessageResult{Message: "Password Changed Successfully"}, []SideEffect{
		SendEmail{Email: Email{
			Kind: EmailPasswordResetSuccess,
			To:   updated.Email,
		}},
	}, nil
}
