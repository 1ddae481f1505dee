package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationCriticalRisk    NotificationType = "critical_risk"
	NotificationStockoutWarning NotificationType = "stockout_warning"
	NotificationBulkAlert       NotificationType = "bulk_alert"
	NotificationRestockReminder NotificationType = "restock_reminder"
)

// NotificationTTL is how long a notification stays visible after creation.
const NotificationTTL = 7 * 24 * time.Hour

type NotificationMetadata struct {
	RiskScore           int `json:"riskScore"`
	DaysUntilStockout   int `json:"daysUntilStockout"`
	RecommendedDiscount int `json:"recommendedDiscount"`
}

// Notification read/dismissed are independent flags: dismissed hides the
// notification regardless of read, and nothing clears dismissed.
type Notification struct {
	BaseModel
	StoreID      uuid.UUID            `gorm:"type:uuid;not null;index:idx_notifications_scope" json:"storeId"`
	UserID       *uuid.UUID           `gorm:"type:uuid;index:idx_notifications_scope" json:"userId,omitempty"`
	Type         NotificationType     `gorm:"type:varchar(32);not null" json:"type"`
	Priority     Priority             `gorm:"type:varchar(10);not null" json:"priority"`
	PriorityRank int                  `gorm:"not null" json:"-"`
	Title        string               `gorm:"type:varchar(255)" json:"title"`
	Message      string               `gorm:"type:text" json:"message"`
	ProductID    *uuid.UUID           `gorm:"type:uuid;index" json:"productId,omitempty"`
	Actionable   Actionable           `gorm:"type:jsonb;serializer:json" json:"actionable"`
	Read         bool                 `gorm:"not null;default:false" json:"read"`
	Dismissed    bool                 `gorm:"not null;default:false" json:"dismissed"`
	Metadata     NotificationMetadata `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
	ExpiresAt    time.Time            `gorm:"not null;index" json:"expiresAt"`
}

// Visible reports whether the notification still counts as unread at now.
func (n *Notification) Visible(now time.Time) bool {
	return !n.Read && !n.Dismissed && n.ExpiresAt.After(now)
}

// NotificationDedupKey holds the last creation time per (store, product, type).
// Claiming it with a conditional upsert makes the 24h dedup window atomic.
type NotificationDedupKey struct {
	StoreID       uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ProductID     uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Type          NotificationType `gorm:"type:varchar(32);primaryKey"`
	LastCreatedAt time.Time        `gorm:"not null"`
}
