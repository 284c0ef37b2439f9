package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-authflow/middleware/jwtware"
)

const DefaultCookieName = "token"

// RouteAuthenticator applies service side effects to fiber responses and
// guards protected routes.
type RouteAuthenticator struct {
	guard          *SessionGuard
	dispatcher     *Dispatcher
	cookieName     string
	cookieDuration time.Duration
	production     bool
	listeners      []ValidationListener
	Logger         Logger
	ErrorHandler   fiber.ErrorHandler
}

// NewHTTPAuthenticator creates the fiber glue for the service
func NewHTTPAuthenticator(guard *SessionGuard, dispatcher *Dispatcher, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		guard:          guard,
		dispatcher:     dispatcher,
		cookieName:     DefaultCookieName,
		cookieDuration: DefaultTokenExpiration,
		Logger:         defLogger{},
	}

	if cfg != nil {
		if name := cfg.GetCookieName(); name != "" {
			a.cookieName = name
		}
		if d := cfg.GetTokenExpiration(); d > 0 {
			a.cookieDuration = d
		}
		a.production = IsProduction(cfg.GetEnvironment())
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

// WithLogger sets the logger
func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithValidationListeners runs listeners after a session resolves, before
// the protected handler. A listener error rejects the request.
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

func (a *RouteAuthenticator) GetCookieName() string {
	return a.cookieName
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute resolves the session cookie (or bearer header) into the
// account stored in the request locals.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	cfg := jwtware.Config{
		ContextKey:     accountLocalsKey,
		TokenLookup:    "cookie:" + a.cookieName + ",header:" + fiber.HeaderAuthorization,
		TokenValidator: a.guard,
		ErrorHandler:   a.authErrHandler,
	}
	appendListeners(&cfg, bindAccountContext)
	appendListeners(&cfg, a.listeners...)
	return jwtware.New(cfg)
}

// bindAccountContext makes the resolved account reachable through
// FromContext(c.UserContext()).
func bindAccountContext(c *fiber.Ctx, subject any) error {
	if account, ok := subject.(*Account); ok {
		c.SetUserContext(WithContext(c.UserContext(), account))
	}
	return nil
}

// Apply performs side effects returned by the service: cookies are set on
// the response, emails are handed to the dispatcher.
func (a *RouteAuthenticator) Apply(c *fiber.Ctx, effects []SideEffect) {
	for _, effect := range effects {
		switch e := effect.(type) {
		case SetSessionCookie:
			a.setCookieToken(c, e.Token)
		case ClearSessionCookie:
			a.cookieDel(c)
		}
	}

	if a.dispatcher != nil {
		a.dispatcher.Dispatch(effects)
	}
}

func (a *RouteAuthenticator) sameSite() string {
	if a.production {
		return fiber.CookieSameSiteNoneMode
	}
	return fiber.CookieSameSiteStrictMode
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    val,
		Path:     "/",
		MaxAge:   int(a.cookieDuration / time.Second),
		Expires:  time.Now().Add(a.cookieDuration),
		HTTPOnly: true,
		Secure:   a.production,
		SameSite: a.sameSite(),
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.production,
		SameSite: a.sameSite(),
	})
}

func (a *RouteAuthenticator) authErrHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryInternal {
		return a.ErrorHandler(c, err)
	}

	a.Logger.Debug("session rejected", "path", c.Path(), "error", err)

	return c.Status(fiber.StatusUnauthorized).JSON(Envelope{
		Success: false,
		Message: ErrNotAuthorized.Message,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	status, message := HTTPStatus(err)

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		level := a.Logger.Info
		if status >= fiber.StatusInternalServerError {
			level = a.Logger.Error
		}
		level("request failed",
			"path", c.Path(),
			"status", status,
			"error", richErr.Error(),
			"category", string(richErr.Category),
			"text_code", richErr.TextCode,
		)
	} else {
		a.Logger.Error("unexpected request error", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(Envelope{
		Success: false,
		Message: message,
	})
}

// Envelope is the JSON body returned by every auth endpoint
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *AccountView `json:"user,omitempty"`
}
