package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/metrics"
	"tasktracker/pkg/logger"
)

// ErrorHandler maps errors returned by handlers and middleware to a status
// code and a {"message": ...} body. Internal causes are logged, never sent.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		logger.ErrorLogger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.Error(err),
		)
	}
	return c.Status(StatusOf(kind)).JSON(fiber.Map{"message": apperrors.MessageOf(err)})
}

func StatusOf(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindAuthenticationRequired:
		return fiber.StatusUnauthorized
	case apperrors.KindPermissionDenied:
		return fiber.StatusForbidden
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindConflict:
		return fiber.StatusConflict
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// Recover turns a panic into a 500 and logs the stack.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r),
					zap.String("stack", string(debug.Stack())))
				err = apperrors.Internal(fmt.Errorf("panic: %v", r))
			}
		}()
		return c.Next()
	}
}

// RequestLogger logs every request and records it in reg when non-nil.
func RequestLogger(reg *metrics.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the error handler set the final status before it is logged.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		elapsed := time.Since(start)
		logger.RequestLogger.Info("Incoming request",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
		)
		if reg != nil {
			route := c.Route().Path
			reg.RequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
			reg.RequestDuration.WithLabelValues(c.Method(), route).Observe(elapsed.Seconds())
		}
		return nil
	}
}
