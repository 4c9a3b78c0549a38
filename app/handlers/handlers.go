// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// getValidationErrorMessage converts validator errors to user-friendly messages
func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "uuid4":
		return err.Field() + " must be a valid UUID"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return err.Field() + " must be at least " + err.Param()
	case "lte":
		return err.Field() + " must be at most " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}

// validationMessages flattens a validator error into per-field messages
func validationMessages(err error) []string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, getValidationErrorMessage(fieldErr))
	}
	return messages
}

// queryInt reads an integer query parameter, falling back on parse failure
func queryInt(c fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
