package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	FieldUsername = "username"
	FieldEmail    = "email"
)

// Account is the single user entity managed by the service
type Account struct {
	bun.BaseModel               `bun:"table:accounts,alias:acc"`
	ID                          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Username                    string     `bun:"username,notnull,unique" json:"username"`
	Email                       string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash                string     `bun:"password_hash,notnull" json:"-"`
	IsVerified                  bool       `bun:"is_verified,notnull" json:"is_verified"`
	VerificationToken           *string    `bun:"verification_token" json:"-"`
	VerificationTokenExpiresAt  *time.Time `bun:"verification_token_expires_at" json:"-"`
	ResetPasswordToken          *string    `bun:"reset_password_token" json:"-"`
	ResetPasswordTokenExpiresAt *time.Time `bun:"reset_password_token_expires_at" json:"-"`
	LastLoginAt                 *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt                   time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt                   time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// AccountView is the outward representation of an account. It never
// carries the password digest or pending tokens.
type AccountView struct {
	ID          string     `json:"_id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsVerified  bool       `json:"isVerified"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// View returns the outward representation of the account
func (a *Account) View() AccountView {
	if a == nil {
		return AccountView{}
	}
	return AccountView{
		ID:          a.ID.String(),
		Username:    a.Username,
		Email:       a.Email,
		IsVerified:  a.IsVerified,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// SetVerificationToken stores a pending verification code
func (a *Account) SetVerificationToken(code string, expiresAt time.Time) {
	a.VerificationToken = &code
	a.VerificationTokenExpiresAt = &expiresAt
}

// ClearVerificationToken removes any pending verification code
func (a *Account) ClearVerificationToken() {
	a.VerificationToken = nil
	a.VerificationTokenExpiresAt = nil
}

// SetResetToken stores a pending reset code
func (a *Account) SetResetToken(code string, expiresAt time.Time) {
	a.ResetPasswordToken = &code
	a.ResetPasswordTokenExpiresAt = &expiresAt
}

// ClearResetToken removes any pending reset code
func (a *Account) ClearResetToken() {
	a.ResetPasswordToken = nil
	a.ResetPasswordTokenExpiresAt = nil
}

// Clone returns a deep copy so stores never share pointers with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.VerificationToken = cloneString(a.VerificationToken)
	c.VerificationTokenExpiresAt = cloneTime(a.VerificationTokenExpiresAt)
	c.ResetPasswordToken = cloneString(a.ResetPasswordToken)
	c.ResetPasswordTokenExpiresAt = cloneTime(a.ResetPasswordTokenExpiresAt)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	return &c
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims a username; case is kept.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
