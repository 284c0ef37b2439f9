package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	codeMin = 100000
	codeMax = 999999

	maxCodeAttempts = 5
)

// CodeGenerator produces short one-time codes used for email verification
// and password reset.
type CodeGenerator interface {
	Generate() (string, error)
}

// CodeGeneratorFunc adapts a function to the CodeGenerator interface.
type CodeGeneratorFunc func() (string, error)

// Generate implements CodeGenerator.
func (f CodeGeneratorFunc) Generate() (string, error) {
	return f()
}

// NumericCodeGenerator returns six digit codes drawn uniformly from
// 100000..999999 using a cryptographically secure source.
type NumericCodeGenerator struct{}

var _ CodeGenerator = NumericCodeGenerator{}

func (NumericCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate one time code")
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// ErrCodeSpaceExhausted is returned when every drawn code is already held
// by another account.
var ErrCodeSpaceExhausted = goerrors.New("no free one time code available", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeCodeExhausted)

type codeHolder func(ctx context.Context, code string) (*Account, error)

// freshCode draws codes until one is not stored on any account.
func (s *Service) freshCode(ctx context.Context, holder codeHolder) (string, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", err
		}

		_, err = holder(ctx, code)
		if IsNotFound(err) {
			return code, nil
		}
		if err != nil {
			return "", err
		}

		s.logger.Debug("one time code already in use, drawing again", "attempt", attempt)
	}

	return "", ErrCodeSpaceExhausted.Clone()
}

// verificationCodeHolder matches stored verification codes, expired ones
// included.
func (s *Service) verificationCodeHolder(ctx context.Context, code string) (*Account, error) {
	return s.store.FindByVerificationToken(ctx, code, time.Time{})
}
