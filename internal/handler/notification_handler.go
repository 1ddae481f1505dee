package handler

import (
	"go-inventory-insights/internal/service"

	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	service service.NotificationService
}

func NewNotificationHandler(s service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: s}
}

// GetUnread lists unread, undismissed, unexpired notifications, most urgent first
func (h *NotificationHandler) GetUnread(c *fiber.Ctx) error {
	list, err := h.service.GetUnread(c.UserContext(), getStoreID(c), getUserID(c))
	if err != nil {
		return respondError(c, err, "Failed to fetch notifications")
	}
	return c.JSON(fiber.Map{"data": list, "count": len(list)})
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	n, err := h.service.GetUnreadCount(c.UserContext(), getStoreID(c), getUserID(c))
	if err != nil {
		return respondError(c, err, "Failed to count notifications")
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid notification ID"})
	}
	if err := h.service.MarkAsRead(c.UserContext(), getStoreID(c), getUserID(c), id); err != nil {
		return respondError(c, err, "Failed to update notification")
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

func (h *NotificationHandler) Dismiss(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid notification ID"})
	}
	if err := h.service.Dismiss(c.UserContext(), getStoreID(c), getUserID(c), id); err != nil {
		return respondError(c, err, "Failed to dismiss notification")
	}
	return c.JSON(fiber.Map{"message": "Notification dismissed"})
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	n, err := h.service.MarkAllAsRead(c.UserContext(), getStoreID(c), getUserID(c))
	if err != nil {
		return respondError(c, err, "Failed to update notifications")
	}
	return c.JSON(fiber.Map{"message": "All notifications marked as read", "updated": n})
}
