package service

import (
	"context"
	"errors"
	"fmt"

	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/repository"
	"go-inventory-insights/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlertSettingsService interface {
	// Get returns the store's settings, or the defaults when none were saved.
	Get(ctx context.Context, storeID uuid.UUID) (*model.AlertSettings, error)
	Update(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, req UpdateAlertSettingsRequest) (*model.AlertSettings, error)
}

type UpdateAlertSettingsRequest struct {
	Thresholds model.AlertThresholds `json:"thresholds"`
	Enabled    model.AlertLevels     `json:"enabled"`
	RiskCutoff int                   `json:"riskCutoff" validate:"min=1,max=100"`
}

type alertSettingsService struct {
	repo       repository.AlertSettingsRepository
	riskCutoff int
}

// NewAlertSettingsService serves riskCutoff as the default for stores that
// never saved settings. Zero keeps model.DefaultRiskCutoff.
func NewAlertSettingsService(repo repository.AlertSettingsRepository, riskCutoff int) AlertSettingsService {
	if riskCutoff <= 0 {
		riskCutoff = model.DefaultRiskCutoff
	}
	return &alertSettingsService{repo: repo, riskCutoff: riskCutoff}
}

func (s *alertSettingsService) Get(ctx context.Context, storeID uuid.UUID) (*model.AlertSettings, error) {
	settings, err := s.repo.FindByStore(ctx, storeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := model.DefaultAlertSettings(storeID)
		defaults.RiskCutoff = s.riskCutoff
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load alert settings: %w", err)
	}
	return settings, nil
}

func (s *alertSettingsService) Update(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, req UpdateAlertSettingsRequest) (*model.AlertSettings, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSettings, validator.Join(errs))
	}

	settings := &model.AlertSettings{
		StoreID:    storeID,
		UserID:     userID,
		Thresholds: req.Thresholds,
		Enabled:    req.Enabled,
		RiskCutoff: req.RiskCutoff,
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("save alert settings: %w", err)
	}
	return settings, nil
}
