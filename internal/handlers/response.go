package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	appErr "usersvc/pkg/errors"
)

// Response is the envelope for successful requests.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorBody describes what went wrong.
type ErrorBody struct {
	Code        int               `json:"code"`
	Description string            `json:"description"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// ErrorResponse is the envelope for failed requests.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Error   ErrorBody `json:"error"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{Success: true, Message: message, Data: data})
}

// ErrorHandler renders every error returned by a handler as an ErrorResponse. Raw causes of
// internal errors are logged and never sent to the client.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"
		var fields map[string]string

		var ae *appErr.AppError
		var fe *fiber.Error
		switch {
		case errors.As(err, &ae):
			status = ae.Status()
			message = ae.Message
			fields = ae.Fields()
		case errors.As(err, &fe):
			status = fe.Code
			message = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		return c.Status(status).JSON(ErrorResponse{
			Success: false,
			Message: message,
			Error: ErrorBody{
				Code:        status,
				Description: message,
				Fields:      fields,
			},
		})
	}
}
