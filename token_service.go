package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is how long a session credential stays valid.
const DefaultTokenExpiration = 7 * 24 * time.Hour

// TokenSigner issues and verifies signed session credentials bound to an
// account id.
type TokenSigner interface {
	Issue(subjectID string) (string, error)
	Verify(token string) (string, error)
}

// TokenService is the HS256 JWT implementation of TokenSigner
type TokenService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

var _ TokenSigner = (*TokenService)(nil)

// TokenServiceOption customizes a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenIssuer sets the iss claim and requires it on verification.
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithTokenAudience sets the aud claim and requires it on verification.
func WithTokenAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenService) {
		if len(audience) > 0 {
			ts.audience = jwt.ClaimStrings(audience)
		}
	}
}

// WithTokenClock overrides the time source.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. The signing key must
// not be empty; a non positive expiration falls back to seven days.
func NewTokenService(signingKey []byte, expiration time.Duration, opts ...TokenServiceOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, goerrors.New("token signing key must not be empty", goerrors.CategoryInternal).
			WithTextCode(TextCodeSigningFailed)
	}

	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	ts := &TokenService{
		signingKey: key,
		expiration: expiration,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// Expiration returns the lifetime of issued credentials
func (ts *TokenService) Expiration() time.Duration {
	return ts.expiration
}

// Issue creates a signed credential for the given account id
func (ts *TokenService) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", ErrSigning.Clone().WithMetadata(map[string]any{
			"reason": "empty subject",
		})
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subjectID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID: subjectID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", ErrSigning.Clone().WithMetadata(map[string]any{
			"reason": "nil claims",
		})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT").
			WithCode(goerrors.CodeInternal).
			WithTextCode(TextCodeSigningFailed)
	}

	return signedString, nil
}

// Verify returns the account id bound to a valid credential. Every failure
// is reported as ErrInvalidCredential; the reason is only logged.
func (ts *TokenService) Verify(tokenString string) (string, error) {
	claims, err := ts.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.AccountID(), nil
}

// Parse validates a credential and returns its claims
func (ts *TokenService) Parse(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidCredential
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("session credential rejected", "error", err)
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.AccountID() == "" {
		ts.logger.Debug("session credential could not be decoded")
		return nil, ErrInvalidCredential
	}

	return claims, nil
}
