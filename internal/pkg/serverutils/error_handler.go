package serverutils

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/constant"
	"wealthadvisor-ai/internal/pkg/logger"
)

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
// Client errors keep their message; anything else is logged and answered
// with a generic 500.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err, log)
	}
}

// ErrorHandler is the same mapping in fiber.Config form.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		return WriteError(ctx, err, log)
	}
}

func WriteError(ctx *fiber.Ctx, err error, log logger.ILogger) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		body := ErrorResponse(fiber.StatusBadRequest, "validation failed")
		body.Errors = verr.Fields
		return ctx.Status(fiber.StatusBadRequest).JSON(body)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
	}

	code := fiber.StatusInternalServerError
	switch {
	case fe != nil:
		code = fe.Code
	case errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusGatewayTimeout
	}
	if log != nil {
		log.Error("HTTP", "Request failed", map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": code,
			"error":  err.Error(),
		})
	}
	message := constant.InternalErrorMessage
	if fe != nil && code == fiber.StatusServiceUnavailable {
		message = fe.Message
	}
	return ctx.Status(code).JSON(ErrorResponse(code, message))
}
