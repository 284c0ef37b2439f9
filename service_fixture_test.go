package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-authflow"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceCodes hands out 111111, 222222, ... in order
func sequenceCodes() auth.CodeGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return auth.CodeGeneratorFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%d%d%d%d%d%d", n, n, n, n, n, n), nil
	})
}

// scriptedCodes hands out codes in the given order, repeating the last one
func scriptedCodes(codes ...string) auth.CodeGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return auth.CodeGeneratorFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(n, len(codes)-1)]
		n++
		return code, nil
	})
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	clock    *testClock
	store    auth.AccountStore
	tokens   *auth.TokenService
	service  *auth.Service
	guard    *auth.SessionGuard
	activity *activityRecorder
}

// fixtureStores lists the account stores the lifecycle suites run against
var fixtureStores = []struct {
	name  string
	build func(*testing.T) auth.AccountStore
}{
	{name: "memory", build: newMemoryStore},
	{name: "sqlite", build: newSQLiteStore},
}

func newFixture(t *testing.T, opts ...auth.ServiceOption) *fixture {
	t.Helper()
	return newFixtureOn(t, auth.NewMemoryAccountStore(), opts...)
}

func newFixtureOn(t *testing.T, store auth.AccountStore, opts ...auth.ServiceOption) *fixture {
	t.Helper()

	clock := newTestClock()

	tokens, err := auth.NewTokenService([]byte("test-signing-key"), 0, auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	activity := &activityRecorder{}

	base := []auth.ServiceOption{
		auth.WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		auth.WithCodeGenerator(sequenceCodes()),
		auth.WithClock(clock.Now),
		auth.WithActivitySink(activity),
		auth.WithClientURL("http://localhost:5173"),
	}

	service := auth.NewService(store, tokens, append(base, opts...)...)

	return &fixture{
		clock:    clock,
		store:    store,
		tokens:   tokens,
		service:  service,
		guard:    auth.NewSessionGuard(tokens, store, nil),
		activity: activity,
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) (*auth.AccountResult, []auth.SideEffect) {
	t.Helper()
	res, effects, err := f.service.Register(context.Background(), auth.RegisterMessage{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return res, effects
}

func (f *fixture) registerVerified(t *testing.T, username, email, password string) *auth.AccountResult {
	t.Helper()
	res, effects := f.register(t, username, email, password)
	code := auth.EmailsFrom(effects)[0].Data["verificationCode"]
	_, _, err := f.service.VerifyEmail(context.Background(), auth.VerifyEmailMessage{Token: code})
	require.NoError(t, err)
	return res
}

func sessionToken(t *testing.T, effects []auth.SideEffect) string {
	t.Helper()
	for _, e := range effects {
		if c, ok := e.(auth.SetSessionCookie); ok {
			return c.Token
		}
	}
	t.Fatalf("no session cookie effect in %#v", effects)
	return ""
}
