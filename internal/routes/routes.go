package routes

import (
	"errors"

	"github.com/deployra/launcher/internal/handlers/deployments"
	"github.com/deployra/launcher/internal/metrics"
	"github.com/deployra/launcher/internal/middleware"
	wshandler "github.com/deployra/launcher/internal/websocket"
	"github.com/deployra/launcher/pkg/response"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Options struct {
	CorsOrigins string
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Deployments *deployments.Handler
	// Socket is optional; without it /socket is not served.
	Socket *wshandler.Handler
}

// NewApp builds the fiber app with middleware and every route mounted.
func NewApp(opts Options) *fiber.App {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(opts.Log.Named("http"), opts.Metrics))
	if opts.CorsOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.CorsOrigins,
			AllowMethods: "GET,POST,DELETE,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept",
		}))
	}

	Setup(app, opts)
	return app
}

func Setup(app *fiber.App, opts Options) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if opts.Metrics != nil {
		app.Get("/metrics", opts.Metrics.Handler())
	}

	// WebSocket
	if opts.Socket != nil {
		app.Use("/socket", wshandler.UpgradeMiddleware)
		app.Get("/socket", websocket.New(opts.Socket.Serve))
	}

	app.Post("/deploy", opts.Deployments.Create)

	deploymentsRoutes := app.Group("/deployments")
	{
		deploymentsRoutes.Get("/", opts.Deployments.List)
		deploymentsRoutes.Get("/:deploymentId", opts.Deployments.Get)
		deploymentsRoutes.Delete("/:deploymentId", opts.Deployments.Delete)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return response.Error(c, code, err.Error(), nil)
}
