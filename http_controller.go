package auth

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// RegisterAuthRoutes mounts the auth JSON API on the given router, usually
// a group at /api/v1/auth.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.Register).Name("auth.register")
	app.Post(controller.Routes.Login, controller.Login).Name("auth.login")
	app.Get(controller.Routes.Logout, controller.Logout).Name("auth.logout")
	app.Get(controller.Routes.CheckAuth, controller.Auther.ProtectedRoute(), controller.CheckAuth).Name("auth.check")
	app.Post(controller.Routes.VerifyEmail, controller.VerifyEmail).Name("auth.verify_email")
	app.Post(controller.Routes.ForgetPassword, controller.ForgetPassword).Name("auth.forget_password")
	app.Post(controller.Routes.ResetPassword+"/:token", controller.ResetPassword).Name("auth.reset_password")

	return controller
}

type AuthControllerRoutes struct {
	Register       string
	Login          string
	Logout         string
	CheckAuth      string
	VerifyEmail    string
	ForgetPassword string
	ResetPassword  string
}

type AuthController struct {
	Logger  Logger
	Service *Service
	Auther  *RouteAuthenticator
	Routes  *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerService(s *Service) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = s
		return c
	}
}

func WithControllerAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:       "/register",
			Login:          "/login",
			Logout:         "/logout",
			CheckAuth:      "/checkAuth",
			VerifyEmail:    "/verifyEmail",
			ForgetPassword: "/forgetPassword",
			ResetPassword:  "/resetPassword",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	var payload RegisterMessage
	if err := a.parse(c, &payload); err != nil {
		return a.fail(c, err)
	}

	res, effects, err := a.Service.Register(c.UserContext(), payload)
	if err != nil {
		return a.fail(c, err)
	}

	a.Auther.Apply(c, effects)

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
		User:    &res.Account,
	})
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	var payload LoginMessage
	if err := a.parse(c, &payload); err != nil {
		return a.fail(c, err)
	}

	res, effects, err := a.Service.Login(c.UserContext(), payload)
	if err != nil {
		return a.fail(c, err)
	}

	a.Auther.Apply(c, effects)

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
		User:    &res.Account,
	})
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	res, effects, err := a.Service.Logout(c.UserContext())
	if err != nil {
		return a.fail(c, err)
	}

	a.Auther.Apply(c, effects)

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
	})
}

func (a *AuthController) CheckAuth(c *fiber.Ctx) error {
	account, ok := FromContext(c.UserContext())
	if !ok {
		account, _ = AccountFromLocals(c)
	}

	res, _, err := a.Service.CheckAuth(c.UserContext(), account)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
		User:    &res.Account,
	})
}

func (a *AuthController) VerifyEmail(c *fiber.Ctx) error {
	var payload struct {
		Token string `json:"token"`
		Code  string `json:"code"`
	}
	if err := a.parse(c, &payload); err != nil {
		return a.fail(c, err)
	}

	token := payload.Token
	if token == "" {
		token = payload.Code
	}

	res, effects, err := a.Service.VerifyEmail(c.UserContext(), VerifyEmailMessage{Token: token})
	if err != nil {
		return a.fail(c, err)
	}

	a.Auther.Apply(c, effects)

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
		User:    &res.Account,
	})
}

func (a *AuthController) ForgetPassword(c *fiber.Ctx) error {
	var payload ForgetPasswordMessage
	if err := a.parse(c, &payload); err != nil {
		return a.fail(c, err)
	}

	res, effects, err := a.Service.ForgetPassword(c.UserContext(), payload)
	if err != nil {
		return a.fail(c, err)
	}

	a.Auther.Apply(c, effects)

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
	})
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	var payload struct {
		Password string `json:"password"`
	}
	if err := a.parse(c, &payload); err != nil {
		return a.fail(c, err)
	}

	res, effects, err := a.Service.ResetPassword(c.UserContext(), ResetPasswordMessage{
		Token:    c.Params("token"),
		Password: payload.Password,
	})
	if err != nil {
		return a.fail(c, err)
	}

	a.Auther.Apply(c, effects)

	return c.JSON(Envelope{
		Success: true,
		Message: res.Message,
	})
}

// parse decodes the JSON body. An empty body decodes to zero values so the
// service reports the missing fields.
func (a *AuthController) parse(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body").
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeValidationFailed)
	}
	return nil
}

func (a *AuthController) fail(c *fiber.Ctx, err error) error {
	return a.Auther.ErrorHandler(c, err)
}
