package handler

import (
	"errors"

	"go-inventory-insights/internal/middleware"
	"go-inventory-insights/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func getStoreID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(middleware.LocalStoreID).(uuid.UUID)
	return id
}

// getUserID returns nil when the token carries no user.
func getUserID(c *fiber.Ctx) *uuid.UUID {
	id, ok := c.Locals(middleware.LocalUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	return &id
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(name))
}

// respondError maps service errors onto HTTP statuses. Unexpected errors are
// logged and hidden behind fallback.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrNotificationNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSettings):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	log.Error().Err(err).Str("path", c.Path()).Str("store_id", getStoreID(c).String()).Msg(fallback)
	return c.Status(500).JSON(fiber.Map{"error": fallback})
}
