package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authflow"
)

type testConfig struct {
	env string
}

func (c testConfig) GetEnvironment() string             { return c.env }
func (c testConfig) GetClientURL() string               { return "http://localhost:5173" }
func (c testConfig) GetSigningKey() string              { return "test-signing-key" }
func (c testConfig) GetTokenExpiration() time.Duration  { return auth.DefaultTokenExpiration }
func (c testConfig) GetIssuer() string                  { return "" }
func (c testConfig) GetAudience() []string              { return nil }
func (c testConfig) GetCookieName() string              { return "" }
func (c testConfig) GetHashCost() int                   { return 4 }
func (c testConfig) GetVerificationTTL() time.Duration  { return 0 }
func (c testConfig) GetResetTTL() time.Duration         { return 0 }
func (c testConfig) GetConcealUnknownEmail() bool       { return false }
func (c testConfig) GetOperationTimeout() time.Duration { return 0 }

type outbox struct {
	mu     sync.Mutex
	emails []auth.Email
}

func (o *outbox) Send(_ context.Context, email auth.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emails = append(o.emails, email)
	return nil
}

func (o *outbox) Last() auth.Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.emails) == 0 {
		return auth.Email{}
	}
	return o.emails[len(o.emails)-1]
}

type httpFixture struct {
	*fixture
	app        *fiber.App
	auther     *auth.RouteAuthenticator
	dispatcher *auth.Dispatcher
	outbox     *outbox
	registry   *prometheus.Registry
}

func newHTTPFixture(t *testing.T, env string, listeners ...auth.ValidationListener) *httpFixture {
	t.Helper()

	f := newFixture(t)
	cfg := testConfig{env: env}
	box := &outbox{}
	registry := prometheus.NewRegistry()

	dispatcher := auth.NewDispatcher(box, time.Second, nil, nil)
	auther := auth.NewHTTPAuthenticator(f.guard, dispatcher, cfg).
		WithValidationListeners(listeners...)

	app := auth.NewApp(auth.AppOptions{
		Service:       f.service,
		Authenticator: auther,
		Config:        cfg,
		Gatherer:      registry,
	})

	return &httpFixture{
		fixture:    f,
		app:        app,
		auther:     auther,
		dispatcher: dispatcher,
		outbox:     box,
		registry:   registry,
	}
}

func (h *httpFixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) (*http.Response, auth.Envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, auth.APIPrefix+path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var env auth.Envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}

	h.dispatcher.Wait()

	return resp, env
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRouteAuthenticator_Defaults(t *testing.T) {
	f := newFixture(t)

	a := auth.NewHTTPAuthenticator(f.guard, nil, nil)
	assert.Equal(t, auth.DefaultCookieName, a.GetCookieName())
	assert.Equal(t, 7*24*time.Hour, a.GetCookieDuration())
}

func TestRouteAuthenticator_CookieAttributes(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		secure   bool
		sameSite http.SameSite
	}{
		{name: "development", env: "development", secure: false, sameSite: http.SameSiteStrictMode},
		{name: "production", env: "production", secure: true, sameSite: http.SameSiteNoneMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHTTPFixture(t, tt.env)

			resp, _ := h.do(t, http.MethodPost, "/register", `{"username":"alice","email":"alice@x.io","password":"secret1"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			cookie := findCookie(resp, auth.DefaultCookieName)
			require.NotNil(t, cookie)
			assert.NotEmpty(t, cookie.Value)
			assert.True(t, cookie.HttpOnly)
			assert.Equal(t, tt.secure, cookie.Secure)
			assert.Equal(t, tt.sameSite, cookie.SameSite)
			assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)
		})
	}
}

func TestRouteAuthenticator_RegisterPasswordTooLong(t *testing.T) {
	h := newHTTPFixture(t, "development")

	body := `{"username":"alice","email":"alice@x.io","password":"` + strings.Repeat("p", 80) + `"}`
	resp, env := h.do(t, http.MethodPost, "/register", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Password must be at most 72 bytes", env.Message)
	assert.Nil(t, findCookie(resp, auth.DefaultCookieName))
}

func TestRouteAuthenticator_ProtectedRouteBearer(t *testing.T) {
	h := newHTTPFixture(t, "development")

	_, effects := h.register(t, "alice", "alice@x.io", "secret1")
	token := sessionToken(t, effects)

	req := httptest.NewRequest(http.MethodGet, auth.APIPrefix+"/checkAuth", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouteAuthenticator_ValidationListenerRejects(t *testing.T) {
	var seen *auth.Account
	h := newHTTPFixture(t, "development", func(_ *fiber.Ctx, subject any) error {
		seen, _ = subject.(*auth.Account)
		return errors.New("account suspended")
	})

	_, effects := h.register(t, "alice", "alice@x.io", "secret1")
	token := sessionToken(t, effects)

	resp, env := h.do(t, http.MethodGet, "/checkAuth", "", &http.Cookie{Name: "token", Value: token})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not Authorized", env.Message)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
}

func TestRouteAuthenticator_ErrorHandler(t *testing.T) {
	f := newFixture(t)
	a := auth.NewHTTPAuthenticator(f.guard, nil, testConfig{})

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return a.ErrorHandler(c, errors.New("db password is hunter2"))
	})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return a.ErrorHandler(c, auth.ConflictOn(auth.FieldEmail))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "hunter2")
	assert.Contains(t, string(body), "Internal server error")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/conflict", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":false,"message":"Email is already taken. Try a different one."}`, string(body))
}

func TestRequireVerifiedAccount(t *testing.T) {
	h := newHTTPFixture(t, "development", auth.RequireVerifiedAccount)

	_, effects := h.register(t, "alice", "alice@x.io", "secret1")
	session := &http.Cookie{Name: "token", Value: sessionToken(t, effects)}

	resp, _ := h.do(t, http.MethodGet, "/checkAuth", "", session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, _, err := h.service.VerifyEmail(context.Background(), auth.VerifyEmailMessage{Token: "111111"})
	require.NoError(t, err)

	resp, env := h.do(t, http.MethodGet, "/checkAuth", "", session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.User.IsVerified)
}
