package auth

import (
	"context"
)

// ForgetPassword stores a reset code on the account and asks for the email
// carrying the reset link.
func (s *Service) ForgetPassword(ctx context.Context, msg ForgetPasswordMessage) (*MessageResult, []SideEffect, error) {
	select {
	case <-ctx.Done():
		return nil, nil, cancelled(ctx, "password reset request")
	default:
		return s.forgetPassword(ctx, msg)
	}
}

func (s *Service) forgetPassword(ctx context.Context, msg ForgetPasswordMessage) (*MessageResult, []SideEffect, error) {
	msg.Email = NormalizeEmail(msg.Email)

	if err := validateMessage(msg, "Email not provided"); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account, err := s.store.FindByEmail(ctx, msg.Email)
	if err != nil {
		if IsNotFound(err) {
			if s.concealUnknown {
				return &MessageResult{Message: "Email sent !"}, nil, nil
			}
			return nil, nil, NotFound("User not found with this email")
		}
		return nil, nil, wrapInternal(err, "failed to look up account")
	}

	code, err := s.freshCode(ctx, s.store.FindByResetToken)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to generate reset code")
	}

	account.SetResetToken(code, s.now().Add(s.resetTTL))

	updated, err := s.store.Update(ctx, account)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to store reset code")
	}

	s.record(ctx, ActivityEventPasswordResetRequested, updated.ID.String(), nil)

	return &MessageResult{Message: "Email sent !"}, []SideEffect{
		SendEmail{Email: Email{
			Kind: EmailPasswordResetRequest,
			To:   updated.Email,
			Data: map[string]string{"resetURL": s.ResetURL(code)},
		}},
	}, nil
}

// ResetURL builds the client link carrying a reset code
func (s *Service) ResetURL(code string) string {
	return s.clientURL + "/resetpassword/" + code
}
