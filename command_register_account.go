package auth

import (
	"context"
)

// Register creates an unverified account, opens a session for it and asks
// for the verification email.
func (s *Service) Register(ctx context.Context, msg RegisterMessage) (*AccountResult, []SideEffect, error) {
	select {
	case <-ctx.Done():
		return nil, nil, cancelled(ctx, "account registration")
	default:
		return s.register(ctx, msg)
	}
}

func (s *Service) register(ctx context.Context, msg RegisterMessage) (*AccountResult, []SideEffect, error) {
	msg.Username = NormalizeUsername(msg.Username)
	msg.Email = NormalizeEmail(msg.Email)

	if err := validateMessage(msg, "Please provide all fields"); err != nil {
		return nil, nil, err
	}

	if err := validatePassword(msg.Password); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.FindByEmail(ctx, msg.Email); err == nil {
		return nil, nil, ConflictOn(FieldEmail)
	} else if !IsNotFound(err) {
		return nil, nil, wrapInternal(err, "failed to look up account by email")
	}

	if _, err := s.store.FindByUsername(ctx, msg.Username); err == nil {
		return nil, nil, ConflictOn(FieldUsername)
	} else if !IsNotFound(err) {
		return nil, nil, wrapInternal(err, "failed to look up account by username")
	}

	hash, err := s.hasher.Hash(msg.Password)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to hash password")
	}

	code, err := s.freshCode(ctx, s.verificationCodeHolder)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to generate verification code")
	}

	now := s.now()
	account := &Account{
		Username:     msg.Username,
		Email:        msg.Email,
		PasswordHash: hash,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	account.SetVerificationToken(code, now.Add(s.verificationTTL))

	// Create maps unique index violations, covering registrations racing
	// past the checks above.
	created, err := s.store.Create(ctx, account)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to create account")
	}

	token, err := s.signer.Issue(created.ID.String())
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to issue session token")
	}

	s.record(ctx, ActivityEventAccountRegistered, created.ID.String(), map[string]any{
		"username": created.Username,
	})

	s.logger.Info("account registered", "account_id", created.ID.String())

	return &AccountResult{
			Message: "User Created Successfully",
			Account: created.View(),
		}, []SideEffect{
			SetSessionCookie{Token: token},
			SendEmail{Email: Email{
				Kind: EmailVerification,
				To:   created.Email,
				Data: map[string]string{"verificationCode": code},
			}},
		}, nil
}
