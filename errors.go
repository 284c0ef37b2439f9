package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidationFailed  = "VALIDATION_FAILED"
	TextCodeAccountConflict   = "ACCOUNT_CONFLICT"
	TextCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	TextCodeEmailNotVerified  = "EMAIL_NOT_VERIFIED"
	TextCodeInvalidPassword   = "INVALID_PASSWORD"
	TextCodeNotAuthorized     = "NOT_AUTHORIZED"
	TextCodeResetTokenExpired = "RESET_TOKEN_EXPIRED"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeHashingFailed     = "HASHING_FAILED"
	TextCodeSigningFailed     = "SIGNING_FAILED"
	TextCodeInvalidCredential = "INVALID_CREDENTIAL"
	TextCodeCodeExhausted     = "CODE_SPACE_EXHAUSTED"
)

var (
	// ErrValidation is returned when a required input is missing or empty.
	ErrValidation = goerrors.New("Please provide all fields", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeValidationFailed)

	// ErrConflict is returned when a username or email is already taken.
	// Use ConflictOn to get a copy that names the field.
	ErrConflict = goerrors.New("User already exists", goerrors.CategoryConflict).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeAccountConflict)

	ErrAccountNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeAccountNotFound)

	ErrEmailNotVerified = goerrors.New("Email not verified", goerrors.CategoryAuthz).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeEmailNotVerified)

	ErrInvalidPassword = goerrors.New("Invalid password", goerrors.CategoryAuth).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeInvalidPassword)

	// ErrNotAuthorized is the single failure the session guard reports.
	ErrNotAuthorized = goerrors.New("Not Authorized", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode(TextCodeNotAuthorized)

	ErrResetTokenExpired = goerrors.New("Reset token has expired", goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeResetTokenExpired)

	ErrInvalidOrExpiredToken = goerrors.New("Invalid token", goerrors.CategoryBadInput).
					WithCode(goerrors.CodeBadRequest).
					WithTextCode(TextCodeInvalidToken)

	ErrHashing = goerrors.New("failed to hash password", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithTextCode(TextCodeHashingFailed)

	ErrSigning = goerrors.New("failed to sign session token", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithTextCode(TextCodeSigningFailed)

	// ErrInvalidCredential is returned by TokenSigner.Verify for every failure.
	ErrInvalidCredential = goerrors.New("Invalid Token", goerrors.CategoryAuth).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeInvalidCredential)
)

// ConflictOn returns a conflict error naming the colliding field.
func ConflictOn(field string) *goerrors.Error {
	msg := "User already exists"
	switch field {
	case FieldUsername:
		msg = "Username is already taken. Try a different one."
	case FieldEmail:
		msg = "Email is already taken. Try a different one."
	}

	clone := ErrConflict.Clone()
	clone.Message = msg
	return clone.WithMetadata(map[string]any{
		"field": field,
	})
}

// ValidationFailed returns a validation error carrying the given message.
func ValidationFailed(msg string) *goerrors.Error {
	clone := ErrValidation.Clone()
	if msg != "" {
		clone.Message = msg
	}
	return clone
}

// NotFound returns a not found error carrying the given message.
func NotFound(msg string) *goerrors.Error {
	clone := ErrAccountNotFound.Clone()
	if msg != "" {
		clone.Message = msg
	}
	return clone
}

// ConflictField returns the field named by a conflict error, if any.
func ConflictField(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeAccountConflict {
		return ""
	}
	if field, ok := richErr.Metadata["field"].(string); ok {
		return field
	}
	return ""
}

// HasTextCode reports whether err is a rich error with the given text code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsNotFound reports whether err means an account could not be found.
func IsNotFound(err error) bool {
	return HasTextCode(err, TextCodeAccountNotFound)
}

// HTTPStatus maps an error to a response status and a client safe message.
// Internal failures never leak their detail.
func HTTPStatus(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category == goerrors.CategoryInternal {
		return http.StatusInternalServerError, "Internal server error"
	}

	switch richErr.Category {
	case goerrors.CategoryOperation:
		return http.StatusServiceUnavailable, "Request could not be completed"
	}

	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code, richErr.Message
	}

	return http.StatusBadRequest, richErr.Message
}
