// Package handlers holds the HTTP handlers of the v1 API. Handlers decode
// and validate requests, call the services and shape the responses; every
// failure is returned as an error for middleware.ErrorHandler to render.
package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/auth"
	"tasktracker/internal/tasks"
	"tasktracker/pkg/logger"
)

type Handler struct {
	auth     *auth.Service
	tasks    *tasks.Service
	validate *validator.Validate
	db       *sql.DB
}

func New(authService *auth.Service, taskService *tasks.Service, validate *validator.Validate, db *sql.DB) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{auth: authService, tasks: taskService, validate: validate, db: db}
}

// bind parses the JSON body into req and runs struct validation.
func (h *Handler) bind(c *fiber.Ctx, req any) error {
	if err := h.parse(c, req); err != nil {
		return err
	}
	return h.check(c, req)
}

func (h *Handler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		logger.AuditLogger.Warn("Bad request", zap.String("url", c.OriginalURL()), zap.Error(err))
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	}
	return nil
}

func (h *Handler) check(c *fiber.Ctx, req any) error {
	if err := h.validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error", zap.String("url", c.OriginalURL()), zap.Error(err))
		return apperrors.Wrap(apperrors.ErrValidation, err)
	}
	return nil
}

// Healthz pings the database.
func (h *Handler) Healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logger.ErrorLogger.Error("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
