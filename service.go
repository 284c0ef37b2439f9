package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultVerificationTTL  = 24 * time.Hour
	DefaultResetTTL         = time.Hour
	DefaultOperationTimeout = 10 * time.Second
	DefaultClientURL        = "http://localhost:5173"
)

// Service implements the account lifecycle: registration, login, email
// verification and password reset. Operations return the outcome plus the
// side effects the transport must apply.
type Service struct {
	store            AccountStore
	hasher           PasswordHasher
	signer           TokenSigner
	codes            CodeGenerator
	clock            Clock
	activity         ActivitySink
	logger           Logger
	clientURL        string
	verificationTTL  time.Duration
	resetTTL         time.Duration
	operationTimeout time.Duration
	concealUnknown   bool
}

// ServiceOption customizes the Service
type ServiceOption func(*Service)

func WithHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

func WithCodeGenerator(g CodeGenerator) ServiceOption {
	return func(s *Service) {
		if g != nil {
			s.codes = g
		}
	}
}

func WithClock(c Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithActivitySink sets the sink used to emit lifecycle events.
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the logger used by the service.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClientURL sets the base URL used to build reset links.
func WithClientURL(url string) ServiceOption {
	return func(s *Service) {
		if url != "" {
			s.clientURL = strings.TrimRight(url, "/")
		}
	}
}

func WithVerificationTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

func WithOperationTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.operationTimeout = timeout
		}
	}
}

// WithConcealUnknownEmail makes ForgetPassword answer success for emails
// that have no account.
func WithConcealUnknownEmail(conceal bool) ServiceOption {
	return func(s *Service) {
		s.concealUnknown = conceal
	}
}

// WithConfig applies the settings of a Config
func WithConfig(cfg Config) ServiceOption {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		WithClientURL(cfg.GetClientURL())(s)
		WithHasher(NewBcryptHasher(cfg.GetHashCost()))(s)
		WithVerificationTTL(cfg.GetVerificationTTL())(s)
		WithResetTTL(cfg.GetResetTTL())(s)
		WithOperationTimeout(cfg.GetOperationTimeout())(s)
		WithConcealUnknownEmail(cfg.GetConcealUnknownEmail())(s)
	}
}

// NewService wires the lifecycle service
func NewService(store AccountStore, signer TokenSigner, opts ...ServiceOption) *Service {
	s := &Service{
		store:            store,
		signer:           signer,
		hasher:           NewBcryptHasher(0),
		codes:            NumericCodeGenerator{},
		clock:            time.Now,
		activity:         noopActivitySink{},
		logger:           defLogger{},
		clientURL:        DefaultClientURL,
		verificationTTL:  DefaultVerificationTTL,
		resetTTL:         DefaultResetTTL,
		operationTimeout: DefaultOperationTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Store returns the account store backing the service
func (s *Service) Store() AccountStore {
	return s.store
}

// Logout asks the transport to clear the session cookie. It never fails.
func (s *Service) Logout(ctx context.Context) (*MessageResult, []SideEffect, error) {
	return &MessageResult{Message: "Logged out successfully"},
		[]SideEffect{ClearSessionCookie{}},
		nil
}

// CheckAuth returns the view of an account already resolved by the
// session guard.
func (s *Service) CheckAuth(ctx context.Context, account *Account) (*AccountResult, []SideEffect, error) {
	if account == nil {
		return nil, nil, ErrNotAuthorized
	}
	return &AccountResult{
		Message: "Authenticated",
		Account: account.View(),
	}, nil, nil
}

// MessageResult is the outcome of operations that only report a message
type MessageResult struct {
	Message string
}

// AccountResult is the outcome of operations that return the account
type AccountResult struct {
	Message string
	Account AccountView
}

// LoginResult carries the issued credential besides the account
type LoginResult struct {
	AccountResult
	Token string
}

func (s *Service) now() time.Time {
	return s.clock.now()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func (s *Service) record(ctx context.Context, eventType ActivityEventType, accountID string, meta map[string]any) {
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Metadata:   meta,
		OccurredAt: s.now(),
	})
}

func cancelled(ctx context.Context, operation string) error {
	return goerrors.Wrap(
		ctx.Err(),
		goerrors.CategoryOperation,
		"context cancelled during "+operation,
	)
}

// wrapInternal passes rich errors through and wraps everything else.
func wrapInternal(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
