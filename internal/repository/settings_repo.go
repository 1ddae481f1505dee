package repository

import (
	"context"

	"go-inventory-insights/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertSettingsRepository interface {
	FindByStore(ctx context.Context, storeID uuid.UUID) (*model.AlertSettings, error)
	Upsert(ctx context.Context, s *model.AlertSettings) error
}

type alertSettingsRepo struct {
	db *gorm.DB
}

func NewAlertSettingsRepo(db *gorm.DB) AlertSettingsRepository {
	return &alertSettingsRepo{db}
}

func (r *alertSettingsRepo) FindByStore(ctx context.Context, storeID uuid.UUID) (*model.AlertSettings, error) {
	var s model.AlertSettings
	if err := r.db.WithContext(ctx).First(&s, "store_id = ?", storeID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *alertSettingsRepo) Upsert(ctx context.Context, s *model.AlertSettings) error {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"threshold_critical", "threshold_high_urgency", "threshold_early_warning",
			"enabled_critical", "enabled_high_urgency", "enabled_early_warning",
			"risk_cutoff", "updated_at",
		}),
	}).Create(s).Error
	if err != nil {
		return err
	}
	return db.First(s, "store_id = ?", s.StoreID).Error
}
