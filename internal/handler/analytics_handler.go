package handler

import (
	"go-inventory-insights/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AnalyticsHandler struct {
	insights    service.InsightsService
	predictions service.PredictionService
}

func NewAnalyticsHandler(insights service.InsightsService, predictions service.PredictionService) *AnalyticsHandler {
	return &AnalyticsHandler{insights: insights, predictions: predictions}
}

// GetDashboard returns the store's quick insights
func (h *AnalyticsHandler) GetDashboard(c *fiber.Ctx) error {
	view, err := h.insights.GetQuickInsights(c.UserContext(), getStoreID(c))
	if err != nil {
		return respondError(c, err, "Failed to fetch dashboard insights")
	}
	return c.JSON(view)
}

// GetProduct returns the product's current prediction, computing it when absent
func (h *AnalyticsHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	p, err := h.predictions.GetPrediction(c.UserContext(), getStoreID(c), id)
	if err != nil {
		return respondError(c, err, "Failed to fetch product prediction")
	}
	return c.JSON(p)
}

// GetByCategory returns one category's insights, or every category's when
// the category query param is absent
func (h *AnalyticsHandler) GetByCategory(c *fiber.Ctx) error {
	storeID := getStoreID(c)
	if category := c.Query("category"); category != "" {
		view, err := h.insights.GetCategoryInsights(c.UserContext(), storeID, category)
		if err != nil {
			return respondError(c, err, "Failed to fetch category insights")
		}
		return c.JSON(view)
	}

	views, err := h.insights.ListCategoryInsights(c.UserContext(), storeID)
	if err != nil {
		return respondError(c, err, "Failed to fetch category insights")
	}
	return c.JSON(fiber.Map{"categories": views})
}
