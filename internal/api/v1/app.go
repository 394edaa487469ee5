package v1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"tasktracker/internal/middleware"
)

type AppOptions struct {
	CORSOrigins string
	// RateLimitMax of 0 disables the limiter.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// NewApp builds the fiber app with the middleware stack and all routes.
func NewApp(r Routes, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "tasktracker",
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestLogger(r.Metrics))
	app.Use(middleware.Recover())
	if opts.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
	}
	if opts.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimitMax,
			Expiration: opts.RateLimitWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "Too many requests"})
			},
		}))
	}

	RegisterRoutes(app, r)
	return app
}
