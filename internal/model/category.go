package model

import "github.com/google/uuid"

// Category may override the store alert thresholds for its products.
type Category struct {
	BaseModel
	StoreID               uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_categories_store_name" json:"storeId"`
	Name                  string           `gorm:"type:varchar(100);not null;uniqueIndex:idx_categories_store_name" json:"name"`
	CustomAlertThresholds CustomThresholds `gorm:"embedded;embeddedPrefix:custom_" json:"customAlertThresholds"`
}

// CustomThresholds are only consulted when Enabled is set.
type CustomThresholds struct {
	Enabled      bool `gorm:"default:false" json:"enabled"`
	Critical     int  `json:"critical"`
	HighUrgency  int  `json:"highUrgency"`
	EarlyWarning int  `json:"earlyWarning"`
}
