package handler

import (
	"go-inventory-insights/internal/middleware"
	"go-inventory-insights/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Analytics     *AnalyticsHandler
	Predictions   *PredictionHandler
	Alerts        *AlertHandler
	Notifications *NotificationHandler
	WS            *WSHandler
	Admin         *AdminHandler
}

// RegisterRoutes mounts the store-scoped API under /api/v1, author-only
// operations under /admin and the websocket at /ws.
func RegisterRoutes(app *fiber.App, verifier *jwt.Verifier, h Handlers) {
	api := app.Group("/api/v1", middleware.RequireAuth(verifier), middleware.RequireStore())

	analytics := api.Group("/analytics")
	analytics.Get("/dashboard", h.Analytics.GetDashboard)
	analytics.Get("/product/:id", h.Analytics.GetProduct)
	analytics.Get("/by-category", h.Analytics.GetByCategory)

	predictions := api.Group("/predictions")
	predictions.Post("/batch", h.Predictions.Batch)
	predictions.Post("/:productId/recompute", h.Predictions.Recompute)

	alerts := api.Group("/alerts")
	alerts.Get("/settings", h.Alerts.GetSettings)
	alerts.Put("/settings", h.Alerts.UpdateSettings)
	alerts.Post("/acknowledge", h.Alerts.Acknowledge)

	notifications := api.Group("/notifications")
	notifications.Get("/", h.Notifications.GetUnread)
	notifications.Get("/count", h.Notifications.GetUnreadCount)
	notifications.Patch("/read-all", h.Notifications.MarkAllAsRead)
	notifications.Patch("/:id/read", h.Notifications.MarkAsRead)
	notifications.Patch("/:id/dismiss", h.Notifications.Dismiss)

	if h.Admin != nil {
		admin := app.Group("/admin", middleware.RequireAuth(verifier), middleware.RequireRole(jwt.RoleAuthor))
		admin.Post("/refresh", h.Admin.TriggerRefresh)
	}

	if h.WS != nil {
		app.Use("/ws", middleware.RequireAuth(verifier), h.WS.Upgrade)
		app.Get("/ws", h.WS.Serve())
	}
}
