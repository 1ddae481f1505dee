package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InsightItem is the compact per-product row used by the aggregate views.
type InsightItem struct {
	ProductID         uuid.UUID            `json:"productId"`
	ProductName       string               `json:"productName"`
	Category          string               `json:"category"`
	RiskScore         int                  `json:"riskScore"`
	DaysUntilStockout int                  `json:"daysUntilStockout"`
	Velocity          float64              `json:"velocity"`
	Trend             Trend                `json:"trend"`
	PrimaryAction     RecommendationAction `json:"primaryAction,omitempty"`
}

func NewInsightItem(p *Prediction) InsightItem {
	item := InsightItem{
		ProductID:         p.ProductID,
		ProductName:       p.ProductName,
		Category:          p.Category,
		RiskScore:         p.Metrics.RiskScore,
		DaysUntilStockout: p.Metrics.DaysUntilStockout,
		Velocity:          p.Metrics.Velocity,
		Trend:             p.Metrics.Trend,
	}
	if r, ok := p.Primary(); ok {
		item.PrimaryAction = r.Action
	}
	return item
}

type QuickInsights struct {
	UrgentCount   int           `json:"urgentCount"`
	CriticalItems []InsightItem `json:"criticalItems"`
	LastUpdate    time.Time     `json:"lastUpdate"`
}

type CategorySummary struct {
	TotalProducts       int             `json:"totalProducts"`
	AverageRiskScore    float64         `json:"averageRiskScore"`
	AtRiskCount         int             `json:"atRiskCount"`
	TotalForecast30Days int             `json:"totalForecast30Days"`
	RevenueLast30Days   decimal.Decimal `json:"revenueLast30Days"`
}

type CategoryInsights struct {
	Category         string          `json:"category"`
	Summary          CategorySummary `json:"summary"`
	TopPerformers    []InsightItem   `json:"topPerformers"`
	BottomPerformers []InsightItem   `json:"bottomPerformers"`
	LastUpdate       time.Time       `json:"lastUpdate"`
}
