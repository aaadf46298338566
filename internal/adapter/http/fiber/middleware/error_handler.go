package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
)

// ErrorHandler maps typed errors to statuses: FormatError and CacheMiss
// become 400, fiber errors keep their code, and anything else is a 500
// whose detail reaches the logs but never the client body.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := err.Error()

		var formatErr *domain.FormatError
		var missErr *domain.CacheMissError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &formatErr):
			code = fiber.StatusBadRequest
		case errors.As(err, &missErr):
			code = fiber.StatusBadRequest
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
			message = "internal server error"
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
