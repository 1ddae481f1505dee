package repository

import (
	"context"

	"go-inventory-insights/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PredictionRepository interface {
	Upsert(ctx context.Context, p *model.Prediction) error
	FindByProduct(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]model.Prediction, error)
	ListByCategory(ctx context.Context, storeID uuid.UUID, category string) ([]model.Prediction, error)
	ListCategories(ctx context.Context, storeID uuid.UUID) ([]string, error)
	DeleteByProduct(ctx context.Context, storeID, productID uuid.UUID) error
}

type predictionRepo struct {
	db *gorm.DB
}

func NewPredictionRepo(db *gorm.DB) PredictionRepository {
	return &predictionRepo{db}
}

// upsertColumns is everything a recompute overwrites.
var upsertColumns = []string{
	"product_name", "category",
	"forecast_next7_days", "forecast_next14_days", "forecast_next30_days", "forecast_confidence",
	"metric_velocity", "metric_moving_average", "metric_trend", "metric_risk_score",
	"metric_days_until_stockout", "metric_sales_last30_days",
	"recommendations", "calculated_at", "data_points", "warning",
	"meta_used_category_fallback", "meta_original_data_points",
	"updated_at",
}

// Upsert writes the prediction in a single INSERT .. ON CONFLICT statement
// keyed by (store_id, product_id). Concurrent recomputes of the same product
// are last-write-wins. p is reloaded so its ID matches the stored row.
func (r *predictionRepo) Upsert(ctx context.Context, p *model.Prediction) error {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(p).Error
	if err != nil {
		return err
	}
	return db.First(p, "store_id = ? AND product_id = ?", p.StoreID, p.ProductID).Error
}

func (r *predictionRepo) FindByProduct(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error) {
	var p model.Prediction
	err := r.db.WithContext(ctx).First(&p, "store_id = ? AND product_id = ?", storeID, productID).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *predictionRepo) ListByStore(ctx context.Context, storeID uuid.UUID) ([]model.Prediction, error) {
	var out []model.Prediction
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("metric_risk_score DESC, calculated_at DESC").
		Find(&out).Error
	return out, err
}

func (r *predictionRepo) ListByCategory(ctx context.Context, storeID uuid.UUID, category string) ([]model.Prediction, error) {
	var out []model.Prediction
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND category = ?", storeID, category).
		Order("metric_velocity DESC").
		Find(&out).Error
	return out, err
}

func (r *predictionRepo) ListCategories(ctx context.Context, storeID uuid.UUID) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&model.Prediction{}).
		Where("store_id = ? AND category <> ''", storeID).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &out).Error
	return out, err
}

func (r *predictionRepo) DeleteByProduct(ctx context.Context, storeID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		Delete(&model.Prediction{}).Error
}
