package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-inventory-insights/internal/forecast"
	"go-inventory-insights/internal/metrics"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/repository"
	"go-inventory-insights/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultBatchConcurrency = 4
	DefaultBulkAlertMin     = 3
	DefaultWarmupTopN       = 20

	// postBatchTimeout bounds the fan-out that follows a batch, which still
	// runs when the batch itself was cancelled.
	postBatchTimeout = 10 * time.Second
)

type BatchFailure struct {
	ProductID uuid.UUID `json:"productId"`
	Error     string    `json:"error"`
}

type BatchResult struct {
	Succeeded []uuid.UUID    `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

type PredictionService interface {
	// Recompute rebuilds and stores the product's prediction, replacing any
	// previous one. Calling it twice on unchanged data yields the same record.
	Recompute(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error)
	BatchRecompute(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) BatchResult
	// GetPrediction returns the stored prediction, computing it first when absent.
	GetPrediction(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error)
	// Warmup recomputes every store's most recently sold products.
	Warmup(ctx context.Context) error
}

type PredictionOptions struct {
	Forecast         forecast.Config
	Rules            []forecast.Rule
	BatchConcurrency int
	BulkAlertMin     int
	WarmupTopN       int
}

func (o *PredictionOptions) withDefaults() {
	if o.Forecast.WindowDays == 0 {
		o.Forecast = forecast.DefaultConfig()
	}
	if o.Rules == nil {
		o.Rules = forecast.DefaultRules
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = DefaultBatchConcurrency
	}
	if o.BulkAlertMin <= 0 {
		o.BulkAlertMin = DefaultBulkAlertMin
	}
	if o.WarmupTopN <= 0 {
		o.WarmupTopN = DefaultWarmupTopN
	}
}

type predictionService struct {
	products      repository.ProductRepository
	sales         repository.SaleRepository
	predictions   repository.PredictionRepository
	insights      InsightsService
	notifications NotificationService
	publisher     ws.Publisher
	opts          PredictionOptions
	now           func() time.Time
}

func NewPredictionService(
	products repository.ProductRepository,
	sales repository.SaleRepository,
	predictions repository.PredictionRepository,
	insights InsightsService,
	notifications NotificationService,
	publisher ws.Publisher,
	opts PredictionOptions,
) PredictionService {
	opts.withDefaults()
	return &predictionService{
		products:      products,
		sales:         sales,
		predictions:   predictions,
		insights:      insights,
		notifications: notifications,
		publisher:     publisher,
		opts:          opts,
		now:           time.Now,
	}
}

func (s *predictionService) Recompute(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error) {
	start := time.Now()
	p, product, err := s.recompute(ctx, storeID, productID)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RecomputeTotal.WithLabelValues("ok").Inc()

	s.insights.Invalidate(ctx, storeID, p.Category)

	if _, err := s.notifications.Evaluate(ctx, p, product); err != nil {
		log.Error().Err(err).
			Str("store_id", storeID.String()).
			Str("product_id", productID.String()).
			Msg("notification evaluation failed")
	}

	s.publisher.Publish(storeID, ws.EventPredictionUpdate, ws.NewPredictionUpdate(p, s.now()))
	return p, nil
}

func (s *predictionService) recompute(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, *model.Product, error) {
	product, err := s.products.FindByID(ctx, storeID, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// the product left the catalog; its last prediction must not linger in views
		if old, ferr := s.predictions.FindByProduct(ctx, storeID, productID); ferr == nil {
			if derr := s.predictions.DeleteByProduct(ctx, storeID, productID); derr != nil {
				log.Warn().Err(derr).Str("product_id", productID.String()).Msg("drop orphan prediction")
			} else {
				s.insights.Invalidate(ctx, storeID, old.Category)
			}
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load product: %w", err)
	}

	asOf := s.now()
	since := asOf.AddDate(0, 0, -s.opts.Forecast.WindowDays)
	sales, err := s.sales.FindByProductSince(ctx, storeID, productID, since)
	if err != nil {
		return nil, nil, fmt.Errorf("load sales: %w", err)
	}

	var categoryVelocity float64
	if len(sales) < s.opts.Forecast.MinDataPoints && product.Category != "" {
		cs, err := s.sales.CategorySalesSince(ctx, storeID, product.Category, since)
		if err != nil {
			return nil, nil, fmt.Errorf("load category sales: %w", err)
		}
		if cs.ProductCount > 0 {
			categoryVelocity = float64(cs.Quantity) / float64(s.opts.Forecast.WindowDays) / float64(cs.ProductCount)
		}
	}

	res := forecast.Compute(forecast.Input{
		Product:          *product,
		Sales:            sales,
		CategoryVelocity: categoryVelocity,
		AsOf:             asOf,
	}, s.opts.Forecast)
	recs := forecast.RecommendWith(s.opts.Rules, forecast.SignalsFrom(res.Metrics, product.IsPerishable))

	p := &model.Prediction{
		StoreID:         storeID,
		ProductID:       productID,
		ProductName:     product.Name,
		Category:        product.Category,
		Forecast:        res.Forecast,
		Metrics:         res.Metrics,
		Recommendations: recs,
		CalculatedAt:    asOf,
		DataPoints:      res.DataPoints,
		Warning:         res.Warning,
		Metadata:        res.Metadata,
	}
	if err := s.predictions.Upsert(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("save prediction: %w", err)
	}
	return p, product, nil
}

func (s *predictionService) BatchRecompute(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) BatchResult {
	ids := uniqueIDs(productIDs)
	type outcome struct {
		prediction *model.Prediction
		err        error
	}
	outcomes := make([]outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(s.opts.BatchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			// Items not started before cancellation are reported, not attempted.
			if err := ctx.Err(); err != nil {
				outcomes[i].err = err
				return nil
			}
			p, err := s.Recompute(ctx, storeID, id)
			outcomes[i] = outcome{prediction: p, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Succeeded: []uuid.UUID{}, Failed: []BatchFailure{}}
	var succeeded []*model.Prediction
	for i, o := range outcomes {
		if o.err != nil {
			result.Failed = append(result.Failed, BatchFailure{ProductID: ids[i], Error: o.err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, ids[i])
		succeeded = append(succeeded, o.prediction)
	}

	if len(succeeded) > 0 {
		postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postBatchTimeout)
		defer cancel()
		s.afterBatch(postCtx, storeID, succeeded)
	}

	log.Info().
		Str("store_id", storeID.String()).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("batch recompute finished")
	return result
}

func (s *predictionService) afterBatch(ctx context.Context, storeID uuid.UUID, preds []*model.Prediction) {
	categories := map[string]struct{}{}
	var critical []uuid.UUID
	for _, p := range preds {
		if p.Category != "" {
			categories[p.Category] = struct{}{}
		}
		if r, ok := p.Primary(); ok && r.Priority == model.PriorityCritical {
			critical = append(critical, p.ProductID)
		}
	}

	s.insights.PublishDashboard(ctx, storeID)
	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		s.insights.PublishCategory(ctx, storeID, c)
	}

	if len(critical) >= s.opts.BulkAlertMin {
		if _, err := s.notifications.CreateBulkAlert(ctx, storeID, critical); err != nil {
			log.Error().Err(err).Str("store_id", storeID.String()).Msg("bulk alert failed")
		}
	}
}

func (s *predictionService) GetPrediction(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error) {
	p, err := s.predictions.FindByProduct(ctx, storeID, productID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load prediction: %w", err)
	}
	return s.Recompute(ctx, storeID, productID)
}

func (s *predictionService) Warmup(ctx context.Context) error {
	stores, err := s.products.ListStoreIDs(ctx)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}

	failed := 0
	for _, storeID := range stores {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := s.sales.RecentProductIDs(ctx, storeID, s.opts.WarmupTopN)
		if err != nil {
			log.Warn().Err(err).Str("store_id", storeID.String()).Msg("warmup: list recent products")
			continue
		}
		if len(ids) == 0 {
			if _, err := s.insights.GetQuickInsights(ctx, storeID); err != nil {
				log.Warn().Err(err).Str("store_id", storeID.String()).Msg("warmup: quick insights")
			}
			continue
		}
		res := s.BatchRecompute(ctx, storeID, ids)
		failed += len(res.Failed)
	}

	log.Info().Int("stores", len(stores)).Int("failed", failed).Msg("warmup finished")
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
