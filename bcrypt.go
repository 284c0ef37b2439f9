package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns plaintext passwords into salted digests and checks
// candidates against them.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}

// BcryptHasher is a PasswordHasher backed by bcrypt.
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = BcryptHasher{}

// NewBcryptHasher returns a hasher with the given work factor. Values
// outside the bcrypt range fall back to the default cost.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return BcryptHasher{cost: cost}
}

// Hash will generate a bcrypt digest for the plaintext
func (h BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrHashing.Clone().WithMetadata(map[string]any{
			"reason": "empty password",
		})
	}

	cost := h.cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errPasswordTooLong()
	}
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, ErrHashing.Message).
			WithCode(goerrors.CodeInternal).
			WithTextCode(TextCodeHashingFailed)
	}

	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A mismatch is not an
// error; a malformed digest is.
func (h BcryptHasher) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err == nil {
		return true, nil
	}

	// an oversized candidate can never have been stored
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return false, nil
	}

	return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password digest").
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeHashingFailed)
}

// HashPassword will generate a password hash with the default cost
func HashPassword(password string) (string, error) {
	return NewBcryptHasher(0).Hash(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	ok, err := NewBcryptHasher(0).Verify(password, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidPassword
	}
	return nil
}
