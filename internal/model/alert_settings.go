package model

import "github.com/google/uuid"

// Defaults for AlertSettings. Thresholds are in days.
const (
	DefaultCriticalDays     = 7
	DefaultHighUrgencyDays  = 14
	DefaultEarlyWarningDays = 30
	DefaultRiskCutoff       = 80
)

type AlertThresholds struct {
	Critical     int `json:"critical" validate:"min=1,max=30"`
	HighUrgency  int `json:"highUrgency" validate:"min=1,max=60"`
	EarlyWarning int `json:"earlyWarning" validate:"min=1,max=90"`
}

type AlertLevels struct {
	Critical     bool `json:"critical"`
	HighUrgency  bool `json:"highUrgency"`
	EarlyWarning bool `json:"earlyWarning"`
}

// AlertSettings is a per-store singleton read on every threshold evaluation.
type AlertSettings struct {
	BaseModel
	StoreID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"storeId"`
	UserID     *uuid.UUID      `gorm:"type:uuid" json:"userId,omitempty"`
	Thresholds AlertThresholds `gorm:"embedded;embeddedPrefix:threshold_" json:"thresholds"`
	Enabled    AlertLevels     `gorm:"embedded;embeddedPrefix:enabled_" json:"enabled"`
	RiskCutoff int             `gorm:"not null" json:"riskCutoff" validate:"min=1,max=100"`
}

func DefaultAlertSettings(storeID uuid.UUID) AlertSettings {
	return AlertSettings{
		StoreID: storeID,
		Thresholds: AlertThresholds{
			Critical:     DefaultCriticalDays,
			HighUrgency:  DefaultHighUrgencyDays,
			EarlyWarning: DefaultEarlyWarningDays,
		},
		Enabled:    AlertLevels{Critical: true, HighUrgency: true, EarlyWarning: true},
		RiskCutoff: DefaultRiskCutoff,
	}
}

// EffectiveThresholds applies a category override when it is enabled.
func (s AlertSettings) EffectiveThresholds(c *Category) AlertThresholds {
	if c != nil && c.CustomAlertThresholds.Enabled {
		return AlertThresholds{
			Critical:     c.CustomAlertThresholds.Critical,
			HighUrgency:  c.CustomAlertThresholds.HighUrgency,
			EarlyWarning: c.CustomAlertThresholds.EarlyWarning,
		}
	}
	return s.Thresholds
}
