package handler

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/campaignforge/telemetry/internal/pkg/errors"
	"github.com/campaignforge/telemetry/internal/validator"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string                     `json:"error"`
	Message string                     `json:"message"`
	Fields  validator.ValidationErrors `json:"fields,omitempty"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   errorName(statusCode),
		Message: message,
	})
}

// appErrorResponse renders an AppError, or a 500 for any other error.
func appErrorResponse(c *fiber.Ctx, err error) error {
	status := apperrors.GetStatusCode(err)
	message := "An unexpected error occurred"
	if appErr := apperrors.GetAppError(err); appErr != nil {
		message = appErr.Message
	}
	return errorResponse(c, status, message)
}

// validationErrorResponse renders field errors with status 400.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	fields, _ := err.(validator.ValidationErrors)
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   errorName(fiber.StatusBadRequest),
		Message: "Validation failed",
		Fields:  fields,
	})
}

func errorName(statusCode int) string {
	switch statusCode {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	}
	return "Error"
}

// NotFound is the fallback handler for unmatched routes
func NotFound(c *fiber.Ctx) error {
	return appErrorResponse(c, apperrors.NotFound("Route "+c.Method()+" "+c.Path()))
}
