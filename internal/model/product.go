package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is owned by the catalog service; the insights engine only reads it.
type Product struct {
	BaseModel
	StoreID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_products_store_barcode;index" json:"storeId"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Barcode        string    `gorm:"type:varchar(64);uniqueIndex:idx_products_store_barcode" json:"barcode"`
	Category       string    `gorm:"type:varchar(100);index" json:"category"`
	IsPerishable   bool      `gorm:"default:false" json:"isPerishable"`
	ThresholdValue int       `gorm:"default:0" json:"thresholdValue"`
	TotalQuantity  int       `gorm:"default:0" json:"totalQuantity"`

	Batches []ProductBatch `gorm:"foreignKey:ProductID" json:"batches,omitempty"`
}

// ProductBatch is one received lot of a product.
type ProductBatch struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"productId"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	ExpiryDate   *time.Time      `json:"expiryDate,omitempty"`
	ReceivedDate time.Time       `json:"receivedDate"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
}

// CurrentStock sums batch quantities. Falls back to TotalQuantity when
// batches were not loaded.
func (p *Product) CurrentStock() int {
	if len(p.Batches) == 0 {
		return p.TotalQuantity
	}
	total := 0
	for _, b := range p.Batches {
		total += b.Quantity
	}
	return total
}

// EarliestExpiry returns the nearest expiry among batches that still hold stock.
func (p *Product) EarliestExpiry() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, b := range p.Batches {
		if b.Quantity <= 0 || b.ExpiryDate == nil {
			continue
		}
		if !found || b.ExpiryDate.Before(earliest) {
			earliest = *b.ExpiryDate
			found = true
		}
	}
	return earliest, found
}

func (b *ProductBatch) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
