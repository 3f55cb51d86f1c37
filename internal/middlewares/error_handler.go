package middlewares

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler translates unhandled errors into the JSON error envelope.
// Codes below 500 pass through as-is; everything else is logged and masked.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	errorCode := "internal_error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = "request_error"
		}
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled error", "path", ctx.Path(), "code", code, "error", err)
	}
	return ctx.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  errorCode,
	})
}
