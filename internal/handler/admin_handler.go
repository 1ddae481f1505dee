package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// RefreshTrigger starts a background refresh unless one is already running.
type RefreshTrigger interface {
	Trigger(ctx context.Context) bool
}

type AdminHandler struct {
	refresh RefreshTrigger
}

func NewAdminHandler(refresh RefreshTrigger) *AdminHandler {
	return &AdminHandler{refresh: refresh}
}

// TriggerRefresh starts a warm-up run outside the regular interval
func (h *AdminHandler) TriggerRefresh(c *fiber.Ctx) error {
	if !h.refresh.Trigger(context.WithoutCancel(c.UserContext())) {
		return c.Status(409).JSON(fiber.Map{"error": "Refresh already running"})
	}
	return c.Status(202).JSON(fiber.Map{"message": "Refresh started"})
}
