package auth

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type RegisterMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e RegisterMessage) Type() string { return "account.register" }

func (e RegisterMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required),
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
}

type LoginMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e LoginMessage) Type() string { return "account.login" }

func (e LoginMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
}

type VerifyEmailMessage struct {
	Token string `json:"token"`
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

func (e VerifyEmailMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
	)
}

type ForgetPasswordMessage struct {
	Email string `json:"email"`
}

func (e ForgetPasswordMessage) Type() string { return "account.password_reset.request" }

func (e ForgetPasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required),
	)
}

type ResetPasswordMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e ResetPasswordMessage) Type() string { return "account.password_reset.finalize" }

func (e ResetPasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
}

// MaxPasswordBytes is the longest password bcrypt will digest.
const MaxPasswordBytes = 72

// errPasswordTooLong is reported for passwords bcrypt would reject
func errPasswordTooLong() *goerrors.Error {
	return ValidationFailed(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes)).
		WithMetadata(map[string]any{
			"fields": map[string]string{"password": "too long"},
		})
}

func validatePassword(password string) error {
	if len(password) > MaxPasswordBytes {
		return errPasswordTooLong()
	}
	return nil
}

type validator interface {
	Validate() error
}

// validateMessage runs the message validation and reports failures with
// msg, keeping the per field errors as metadata.
func validateMessage(v validator, msg string) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate input")
	}

	return ValidationFailed(msg).WithMetadata(map[string]any{
		"fields": fields,
	})
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
