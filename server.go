package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const APIPrefix = "/api/v1/auth"

// AppOptions holds what NewApp needs to assemble the HTTP server
type AppOptions struct {
	Service       *Service
	Authenticator *RouteAuthenticator
	Config        Config
	Logger        Logger
	// Gatherer serves /metrics when set
	Gatherer prometheus.Gatherer
	// AccessLog enables the fiber request logger
	AccessLog   bool
	ReadTimeout time.Duration
}

// AllowedOrigin returns the CORS origin for the environment
func AllowedOrigin(cfg Config) string {
	if cfg != nil && IsProduction(cfg.GetEnvironment()) && cfg.GetClientURL() != "" {
		return cfg.GetClientURL()
	}
	return DefaultClientURL
}

// NewApp builds the fiber application exposing the auth API
func NewApp(opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(Envelope{Success: false, Message: e.Message})
			}
			return opts.Authenticator.ErrorHandler(c, err)
		},
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     AllowedOrigin(opts.Config),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: true,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterAuthRoutes(app.Group(APIPrefix),
		WithControllerService(opts.Service),
		WithControllerAuthenticator(opts.Authenticator),
		WithControllerLogger(opts.Logger),
	)

	return app
}
