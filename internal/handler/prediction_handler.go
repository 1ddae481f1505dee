package handler

import (
	"go-inventory-insights/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxBatchSize = 500

type PredictionHandler struct {
	service service.PredictionService
}

func NewPredictionHandler(s service.PredictionService) *PredictionHandler {
	return &PredictionHandler{service: s}
}

func (h *PredictionHandler) Recompute(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "productId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	p, err := h.service.Recompute(c.UserContext(), getStoreID(c), id)
	if err != nil {
		return respondError(c, err, "Failed to recompute prediction")
	}
	return c.JSON(fiber.Map{"message": "Prediction updated", "data": p})
}

type batchRequest struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}

func (h *PredictionHandler) Batch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if len(req.ProductIDs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "productIds is required"})
	}
	if len(req.ProductIDs) > maxBatchSize {
		return c.Status(400).JSON(fiber.Map{"error": "Too many productIds"})
	}

	res := h.service.BatchRecompute(c.UserContext(), getStoreID(c), req.ProductIDs)
	return c.JSON(res)
}
