package server

import (
	"context"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wealthadvisor-ai/internal/bootstrap"
	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/pkg/serverutils"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: serverutils.ErrorHandler(container.Logger),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: cfg.App.CorsAllowedOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	})))

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger))

	registerProbes(app, container)
	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info("SERVER", "Listening", map[string]interface{}{"port": s.cfg.App.Port})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerProbes(app *fiber.App, c *bootstrap.Container) {
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/ready", func(ctx *fiber.Ctx) error {
		if !c.Ready() {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "loading"})
		}
		return ctx.JSON(fiber.Map{"status": "ready"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(c.Collector.Registry(), promhttp.HandlerOpts{})))
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.ChatController.RegisterRoutes(api)
	c.StrategyController.RegisterRoutes(api)
	c.ScoreController.RegisterRoutes(api)
	c.ReviewController.RegisterRoutes(api)
	c.RLHFController.RegisterRoutes(api)
	c.MetricsController.RegisterRoutes(api)
}
