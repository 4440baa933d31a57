package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"solace/internal/database"
	"solace/internal/services"
)

// respondErr maps domain errors onto HTTP statuses.
func respondErr(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, database.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrNoUsableKey):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrStaleKeyRow):
		status = fiber.StatusConflict
	case errors.Is(err, database.ErrIncompatibleVersion):
		status = fiber.StatusConflict
	case errors.Is(err, database.ErrStorageAborted):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, database.ErrStorageUnavailable):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
