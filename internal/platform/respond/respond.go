// Package respond writes the JSON envelope shared by every HTTP handler.
package respond

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"nettoria/backend/internal/platform/apperr"
)

// Envelope is the standard API response wrapper.
type Envelope struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries the classified error for clients.
type ErrorBody struct {
	Kind    string   `json:"kind"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// JSON writes a success response.
func JSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Code: status, Message: message, Data: data})
}

// OK writes a 200 response.
func OK(c *fiber.Ctx, message string, data any) error {
	return JSON(c, fiber.StatusOK, message, data)
}

// Error maps err to its status and writes the error envelope. Internal errors
// are logged with full detail and answered with a generic message.
func Error(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Envelope{
			Code:    fe.Code,
			Message: fe.Message,
			Error:   &ErrorBody{Kind: kindForStatus(fe.Code), Code: kindForStatus(fe.Code)},
		})
	}

	ae := apperr.As(err)
	if ae == nil {
		ae = apperr.Internal(err)
	}
	status := apperr.HTTPStatus(ae.Kind)
	message := ae.Message
	if ae.Kind == apperr.KindInternal {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		message = "internal error"
	} else if ae.Kind == apperr.KindDeliveryFailed && logger != nil {
		logger.Warn("notification delivery failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(Envelope{
		Code:    status,
		Message: message,
		Error:   &ErrorBody{Kind: string(ae.Kind), Code: ae.Code, Details: ae.Details},
	})
}

// ErrorHandler returns a fiber.ErrorHandler that routes errors through Error.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return Error(c, logger, err)
	}
}

func kindForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return string(apperr.KindValidation)
	case fiber.StatusUnauthorized:
		return string(apperr.KindUnauthorized)
	case fiber.StatusForbidden:
		return string(apperr.KindForbidden)
	case fiber.StatusNotFound:
		return string(apperr.KindNotFound)
	case fiber.StatusTooManyRequests:
		return string(apperr.KindRateLimited)
	default:
		if status >= 500 {
			return string(apperr.KindInternal)
		}
		return string(apperr.KindValidation)
	}
}
