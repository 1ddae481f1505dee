package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Priority is shared by recommendations and notifications.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities ascending from most to least urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type RecommendationAction string

const (
	ActionUrgentMarkdown   RecommendationAction = "urgent_markdown"
	ActionModerateMarkdown RecommendationAction = "moderate_markdown"
	ActionRestockSoon      RecommendationAction = "restock_soon"
	ActionReduceOrder      RecommendationAction = "reduce_order"
	ActionOverstocked      RecommendationAction = "overstocked"
	ActionMonitorClosely   RecommendationAction = "monitor_closely"
)

type Recommendation struct {
	Action          RecommendationAction `json:"action"`
	Priority        Priority             `json:"priority"`
	Message         string               `json:"message"`
	Icon            string               `json:"icon"`
	DiscountPercent int                  `json:"discountPercent,omitempty"`
}

type Forecast struct {
	Next7Days  int        `json:"next7Days"`
	Next14Days int        `json:"next14Days"`
	Next30Days int        `json:"next30Days"`
	Confidence Confidence `gorm:"type:varchar(10)" json:"confidence"`
}

type Metrics struct {
	Velocity          float64 `json:"velocity"`
	MovingAverage     float64 `json:"movingAverage"`
	Trend             Trend   `gorm:"type:varchar(12)" json:"trend"`
	RiskScore         int     `gorm:"index" json:"riskScore"`
	DaysUntilStockout int     `json:"daysUntilStockout"`
	SalesLast30Days   int     `json:"salesLast30Days"`
}

type PredictionMetadata struct {
	UsedCategoryFallback bool `json:"usedCategoryFallback"`
	OriginalDataPoints   int  `json:"originalDataPoints"`
}

// Prediction is the single current record for a (store, product) pair.
// It is replaced wholesale on every recompute.
type Prediction struct {
	BaseModel
	StoreID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_predictions_store_product" json:"storeId"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_predictions_store_product" json:"productId"`
	ProductName string    `gorm:"type:varchar(255)" json:"productName"`
	Category    string    `gorm:"type:varchar(100);index" json:"category"`

	Forecast        Forecast                            `gorm:"embedded;embeddedPrefix:forecast_" json:"forecast"`
	Metrics         Metrics                             `gorm:"embedded;embeddedPrefix:metric_" json:"metrics"`
	Recommendations datatypes.JSONSlice[Recommendation] `json:"recommendations"`
	CalculatedAt    time.Time                           `gorm:"index" json:"calculatedAt"`
	DataPoints      int                                 `json:"dataPoints"`
	Warning         *string                             `json:"warning"`
	Metadata        PredictionMetadata                  `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
}

// Primary is the recommendation downstream consumers act on.
func (p *Prediction) Primary() (Recommendation, bool) {
	if len(p.Recommendations) == 0 {
		return Recommendation{}, false
	}
	return p.Recommendations[0], true
}
