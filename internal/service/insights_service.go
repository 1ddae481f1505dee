package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-inventory-insights/internal/cache"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/repository"
	"go-inventory-insights/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	viewDashboard = "dashboard"
	viewCategory  = "category"

	criticalItemsLimit = 10
	performersLimit    = 5
	revenueWindow      = 30 * 24 * time.Hour

	// A product is urgent when it is this risky or this close to running out.
	urgentRiskScore = 65
	urgentDays      = 7
)

// QuickInsightsView is the dashboard view plus where it was served from.
type QuickInsightsView struct {
	model.QuickInsights
	cache.Meta
}

type CategoryInsightsView struct {
	model.CategoryInsights
	cache.Meta
}

type InsightsService interface {
	GetQuickInsights(ctx context.Context, storeID uuid.UUID) (*QuickInsightsView, error)
	GetCategoryInsights(ctx context.Context, storeID uuid.UUID, category string) (*CategoryInsightsView, error)
	ListCategoryInsights(ctx context.Context, storeID uuid.UUID) ([]CategoryInsightsView, error)
	// Invalidate drops the store's dashboard and the given category views.
	Invalidate(ctx context.Context, storeID uuid.UUID, categories ...string)
	PublishDashboard(ctx context.Context, storeID uuid.UUID)
	PublishCategory(ctx context.Context, storeID uuid.UUID, category string)
}

type insightsService struct {
	predictions repository.PredictionRepository
	sales       repository.SaleRepository
	loader      *cache.Loader
	publisher   ws.Publisher
	now         func() time.Time
}

func NewInsightsService(predictions repository.PredictionRepository, sales repository.SaleRepository, loader *cache.Loader, publisher ws.Publisher) InsightsService {
	return &insightsService{
		predictions: predictions,
		sales:       sales,
		loader:      loader,
		publisher:   publisher,
		now:         time.Now,
	}
}

func (s *insightsService) GetQuickInsights(ctx context.Context, storeID uuid.UUID) (*QuickInsightsView, error) {
	key := cache.Key(viewDashboard, storeID)
	qi, meta, err := cache.GetOrCompute(ctx, s.loader, viewDashboard, key, func(ctx context.Context) (model.QuickInsights, error) {
		return s.computeQuickInsights(ctx, storeID)
	})
	if err != nil {
		return nil, err
	}
	return &QuickInsightsView{QuickInsights: qi, Meta: meta}, nil
}

func (s *insightsService) computeQuickInsights(ctx context.Context, storeID uuid.UUID) (model.QuickInsights, error) {
	preds, err := s.predictions.ListByStore(ctx, storeID)
	if err != nil {
		return model.QuickInsights{}, fmt.Errorf("list predictions: %w", err)
	}

	qi := model.QuickInsights{CriticalItems: []model.InsightItem{}}
	for i := range preds {
		p := &preds[i]
		if isUrgent(p) {
			qi.UrgentCount++
		}
		if p.CalculatedAt.After(qi.LastUpdate) {
			qi.LastUpdate = p.CalculatedAt
		}
	}
	// ListByStore is ordered by risk, highest first.
	for i := 0; i < len(preds) && i < criticalItemsLimit; i++ {
		qi.CriticalItems = append(qi.CriticalItems, model.NewInsightItem(&preds[i]))
	}
	return qi, nil
}

func isUrgent(p *model.Prediction) bool {
	return p.Metrics.RiskScore >= urgentRiskScore || p.Metrics.DaysUntilStockout <= urgentDays
}

func (s *insightsService) GetCategoryInsights(ctx context.Context, storeID uuid.UUID, category string) (*CategoryInsightsView, error) {
	key := cache.Key(viewCategory, storeID, category)
	ci, meta, err := cache.GetOrCompute(ctx, s.loader, viewCategory, key, func(ctx context.Context) (model.CategoryInsights, error) {
		return s.computeCategoryInsights(ctx, storeID, category)
	})
	if err != nil {
		return nil, err
	}
	return &CategoryInsightsView{CategoryInsights: ci, Meta: meta}, nil
}

func (s *insightsService) computeCategoryInsights(ctx context.Context, storeID uuid.UUID, category string) (model.CategoryInsights, error) {
	preds, err := s.predictions.ListByCategory(ctx, storeID, category)
	if err != nil {
		return model.CategoryInsights{}, fmt.Errorf("list category predictions: %w", err)
	}
	sales, err := s.sales.CategorySalesSince(ctx, storeID, category, s.now().Add(-revenueWindow))
	if err != nil {
		return model.CategoryInsights{}, fmt.Errorf("category sales: %w", err)
	}

	ci := model.CategoryInsights{
		Category:         category,
		TopPerformers:    []model.InsightItem{},
		BottomPerformers: []model.InsightItem{},
	}
	ci.Summary.TotalProducts = len(preds)
	ci.Summary.RevenueLast30Days = sales.Revenue

	riskSum := 0
	for i := range preds {
		p := &preds[i]
		riskSum += p.Metrics.RiskScore
		ci.Summary.TotalForecast30Days += p.Forecast.Next30Days
		if isUrgent(p) {
			ci.Summary.AtRiskCount++
		}
		if p.CalculatedAt.After(ci.LastUpdate) {
			ci.LastUpdate = p.CalculatedAt
		}
	}
	if len(preds) > 0 {
		ci.Summary.AverageRiskScore = math.Round(float64(riskSum)/float64(len(preds))*100) / 100
	}

	// ListByCategory is ordered by velocity, fastest first.
	for i := 0; i < len(preds) && i < performersLimit; i++ {
		ci.TopPerformers = append(ci.TopPerformers, model.NewInsightItem(&preds[i]))
	}
	for i := len(preds) - 1; i >= 0 && len(ci.BottomPerformers) < performersLimit; i-- {
		ci.BottomPerformers = append(ci.BottomPerformers, model.NewInsightItem(&preds[i]))
	}
	return ci, nil
}

func (s *insightsService) ListCategoryInsights(ctx context.Context, storeID uuid.UUID) ([]CategoryInsightsView, error) {
	categories, err := s.predictions.ListCategories(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]CategoryInsightsView, 0, len(categories))
	for _, c := range categories {
		view, err := s.GetCategoryInsights(ctx, storeID, c)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

func (s *insightsService) Invalidate(ctx context.Context, storeID uuid.UUID, categories ...string) {
	keys := []string{cache.Key(viewDashboard, storeID)}
	for _, c := range categories {
		keys = append(keys, cache.Key(viewCategory, storeID, c))
	}
	s.loader.Invalidate(ctx, keys...)
}

func (s *insightsService) PublishDashboard(ctx context.Context, storeID uuid.UUID) {
	view, err := s.GetQuickInsights(ctx, storeID)
	if err != nil {
		log.Warn().Err(err).Str("store_id", storeID.String()).Msg("dashboard update skipped")
		return
	}
	s.publisher.Publish(storeID, ws.EventDashboardUpdate, ws.DashboardUpdate{
		Insights:  view.QuickInsights,
		Timestamp: s.now(),
	})
}

func (s *insightsService) PublishCategory(ctx context.Context, storeID uuid.UUID, category string) {
	view, err := s.GetCategoryInsights(ctx, storeID, category)
	if err != nil {
		log.Warn().Err(err).Str("store_id", storeID.String()).Str("category", category).Msg("category update skipped")
		return
	}
	s.publisher.Publish(storeID, ws.EventCategoryUpdate, ws.NewCategoryUpdate(&view.CategoryInsights, s.now()))
}
