package repository

import (
	"context"
	"time"

	"go-inventory-insights/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleRepository interface {
	FindByProductSince(ctx context.Context, storeID, productID uuid.UUID, since time.Time) ([]model.Sale, error)
	CategorySalesSince(ctx context.Context, storeID uuid.UUID, category string, since time.Time) (*CategorySales, error)
	RecentProductIDs(ctx context.Context, storeID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// CategorySales aggregates a category's sales over a window.
type CategorySales struct {
	Quantity     int64           `json:"quantity"`
	Revenue      decimal.Decimal `json:"revenue"`
	ProductCount int64           `json:"productCount"`
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) FindByProductSince(ctx context.Context, storeID, productID uuid.UUID, since time.Time) ([]model.Sale, error) {
	var sales []model.Sale
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ? AND sale_date > ?", storeID, productID, since).
		Order("sale_date ASC").
		Find(&sales).Error
	return sales, err
}

func (r *saleRepo) CategorySalesSince(ctx context.Context, storeID uuid.UUID, category string, since time.Time) (*CategorySales, error) {
	var out CategorySales

	// Product count covers the whole category, sold or not, so the average
	// velocity is per catalog item.
	if err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("store_id = ? AND category = ?", storeID, category).
		Count(&out.ProductCount).Error; err != nil {
		return nil, err
	}

	row := struct {
		Quantity int64
		Revenue  decimal.Decimal
	}{}
	err := r.db.WithContext(ctx).Table("sales").
		Select("COALESCE(SUM(sales.quantity_sold), 0) AS quantity, COALESCE(SUM(sales.quantity_sold * sales.price_at_sale), 0) AS revenue").
		Joins("JOIN products ON products.id = sales.product_id AND products.store_id = sales.store_id").
		Where("sales.store_id = ? AND products.category = ? AND sales.sale_date > ?", storeID, category, since).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	out.Quantity = row.Quantity
	out.Revenue = row.Revenue
	return &out, nil
}

// RecentProductIDs returns the store's products ordered by their latest sale.
func (r *saleRepo) RecentProductIDs(ctx context.Context, storeID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Select("product_id").
		Where("store_id = ?", storeID).
		Group("product_id").
		Order("MAX(sale_date) DESC").
		Limit(limit).
		Pluck("product_id", &ids).Error
	return ids, err
}
