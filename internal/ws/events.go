package ws

import (
	"encoding/json"
	"time"

	"go-inventory-insights/internal/model"
	"go-inventory-insights/pkg/jwt"

	"github.com/google/uuid"
)

const (
	EventPredictionUpdate = "prediction:update"
	EventDashboardUpdate  = "dashboard:update"
	EventCategoryUpdate   = "category:update"
	EventNotificationNew  = "notification:new"
	EventAlertUrgent      = "alert:urgent"
)

const (
	GlobalRoom = "global"
	// RoleAuthor receives every store's events through GlobalRoom.
	RoleAuthor = jwt.RoleAuthor
)

func StoreRoom(storeID uuid.UUID) string {
	return "store:" + storeID.String()
}

// Message is an event addressed to a room. It is also the payload relayed
// between instances over a Bus.
type Message struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// frame is what a websocket client receives.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (m Message) Frame() ([]byte, error) {
	return json.Marshal(frame{Event: m.Event, Data: m.Data})
}

type PredictionPayload struct {
	Forecast        model.Forecast         `json:"forecast"`
	Metrics         model.Metrics          `json:"metrics"`
	Recommendations []model.Recommendation `json:"recommendations"`
	Warning         *string                `json:"warning"`
}

type PredictionUpdate struct {
	ProductID  uuid.UUID         `json:"productId"`
	Prediction PredictionPayload `json:"prediction"`
	Timestamp  time.Time         `json:"timestamp"`
}

func NewPredictionUpdate(p *model.Prediction, ts time.Time) PredictionUpdate {
	return PredictionUpdate{
		ProductID: p.ProductID,
		Prediction: PredictionPayload{
			Forecast:        p.Forecast,
			Metrics:         p.Metrics,
			Recommendations: p.Recommendations,
			Warning:         p.Warning,
		},
		Timestamp: ts,
	}
}

type DashboardUpdate struct {
	Insights  model.QuickInsights `json:"insights"`
	Timestamp time.Time           `json:"timestamp"`
}

type CategoryPayload struct {
	Summary          model.CategorySummary `json:"summary"`
	TopPerformers    []model.InsightItem   `json:"topPerformers"`
	BottomPerformers []model.InsightItem   `json:"bottomPerformers"`
}

type CategoryUpdate struct {
	Category  string          `json:"category"`
	Insights  CategoryPayload `json:"insights"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewCategoryUpdate(ci *model.CategoryInsights, ts time.Time) CategoryUpdate {
	return CategoryUpdate{
		Category: ci.Category,
		Insights: CategoryPayload{
			Summary:          ci.Summary,
			TopPerformers:    ci.TopPerformers,
			BottomPerformers: ci.BottomPerformers,
		},
		Timestamp: ts,
	}
}

type NotificationNew struct {
	Notification *model.Notification `json:"notification"`
	Timestamp    time.Time           `json:"timestamp"`
}

type AlertUrgent struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ProductID *uuid.UUID     `json:"productId,omitempty"`
	Priority  model.Priority `json:"priority"`
	Timestamp time.Time      `json:"timestamp"`
}
