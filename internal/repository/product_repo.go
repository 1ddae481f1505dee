package repository

import (
	"context"

	"go-inventory-insights/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductRepository reads the catalog owned by the product service. Every
// lookup is scoped to a store.
type ProductRepository interface {
	FindByID(ctx context.Context, storeID, id uuid.UUID) (*model.Product, error)
	ListStoreIDs(ctx context.Context) ([]uuid.UUID, error)
	FindCategory(ctx context.Context, storeID uuid.UUID, name string) (*model.Category, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) FindByID(ctx context.Context, storeID, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Batches").
		First(&product, "id = ? AND store_id = ?", id, storeID).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) ListStoreIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Distinct("store_id").
		Pluck("store_id", &ids).Error
	return ids, err
}

func (r *productRepo) FindCategory(ctx context.Context, storeID uuid.UUID, name string) (*model.Category, error) {
	var category model.Category
	err := r.db.WithContext(ctx).First(&category, "store_id = ? AND name = ?", storeID, name).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}
