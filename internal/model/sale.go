package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is an append-only fact written by the sales flow. Source of truth for
// every metric the engine computes.
type Sale struct {
	BaseModel
	StoreID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"storeId"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_sales_product_date" json:"productId"`
	QuantitySold int             `gorm:"not null" json:"quantitySold"`
	PriceAtSale  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"priceAtSale"`
	SaleDate     time.Time       `gorm:"not null;index:idx_sales_product_date" json:"saleDate"`
}
