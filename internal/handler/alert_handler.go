package handler

import (
	"go-inventory-insights/internal/service"
	"go-inventory-insights/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AlertHandler struct {
	settings      service.AlertSettingsService
	notifications service.NotificationService
}

func NewAlertHandler(settings service.AlertSettingsService, notifications service.NotificationService) *AlertHandler {
	return &AlertHandler{settings: settings, notifications: notifications}
}

func (h *AlertHandler) GetSettings(c *fiber.Ctx) error {
	s, err := h.settings.Get(c.UserContext(), getStoreID(c))
	if err != nil {
		return respondError(c, err, "Failed to fetch alert settings")
	}
	return c.JSON(s)
}

func (h *AlertHandler) UpdateSettings(c *fiber.Ctx) error {
	var req service.UpdateAlertSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	s, err := h.settings.Update(c.UserContext(), getStoreID(c), getUserID(c), req)
	if err != nil {
		return respondError(c, err, "Failed to update alert settings")
	}
	return c.JSON(fiber.Map{"message": "Alert settings updated", "data": s})
}

type acknowledgeRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"uuid_required"`
}

// Acknowledge marks every unread notification about a product as read
func (h *AlertHandler) Acknowledge(c *fiber.Ctx) error {
	var req acknowledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}

	n, err := h.notifications.Acknowledge(c.UserContext(), getStoreID(c), req.ProductID)
	if err != nil {
		return respondError(c, err, "Failed to acknowledge alerts")
	}
	return c.JSON(fiber.Map{"message": "Alerts acknowledged", "updated": n})
}
