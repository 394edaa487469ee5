package v1

import (
	"github.com/gofiber/fiber/v2"

	"tasktracker/internal/api/v1/handlers"
	"tasktracker/internal/metrics"
	"tasktracker/internal/middleware"
	"tasktracker/internal/websocket"
)

// Routes bundles what RegisterRoutes mounts. WS and Metrics are optional.
type Routes struct {
	Handler *handlers.Handler
	Auth    middleware.Authenticator
	WS      *websocket.Handler
	Metrics *metrics.Registry
}

func RegisterRoutes(app *fiber.App, r Routes) {
	requireToken := middleware.UseToken(r.Auth)

	app.Get("/healthz", r.Handler.Healthz)
	if r.Metrics != nil {
		app.Get("/metrics", r.Metrics.Handler())
	}

	// Auth
	app.Post("/signup", r.Handler.Signup)
	app.Post("/login", r.Handler.Login)
	app.Post("/refresh", r.Handler.Refresh)
	app.Get("/me", requireToken, r.Handler.Me)

	// Task
	taskRoutes := app.Group("/tasks", requireToken)
	taskRoutes.Post("/", r.Handler.CreateTask)
	taskRoutes.Get("/", r.Handler.ListTasks)
	taskRoutes.Get("/metadata", r.Handler.Metadata)
	taskRoutes.Get("/:id", r.Handler.GetTask)
	taskRoutes.Put("/:id", r.Handler.UpdateTask)
	taskRoutes.Patch("/:id/status", r.Handler.UpdateTaskStatus)
	taskRoutes.Delete("/:id", r.Handler.DeleteTask)

	// Websocket; authentication happens inside the channel.
	if r.WS != nil {
		app.Get("/ws", websocket.RequireUpgrade, r.WS.Endpoint())
	}
}
