// Package app wires repositories and services for the API server and the CLI.
package app

import (
	"go-inventory-insights/internal/cache"
	"go-inventory-insights/internal/config"
	"go-inventory-insights/internal/repository"
	"go-inventory-insights/internal/service"
	"go-inventory-insights/internal/ws"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Services struct {
	Settings      service.AlertSettingsService
	Notifications service.NotificationService
	Insights      service.InsightsService
	Predictions   service.PredictionService
	Locker        service.Locker
}

// NewServices builds the service graph. rdb may be nil, in which case the
// insight cache lives in process and the refresh lock is skipped.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client, publisher ws.Publisher) *Services {
	productRepo := repository.NewProductRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	predictionRepo := repository.NewPredictionRepo(db)
	notificationRepo := repository.NewNotificationRepo(db)
	settingsRepo := repository.NewAlertSettingsRepo(db)

	var store cache.Store = cache.NewMemoryStore()
	var locker service.Locker
	if rdb != nil {
		store = cache.NewRedisStore(rdb)
		locker = service.NewRedisLocker(rdb)
	}
	loader := cache.NewLoader(store, cfg.CacheTTL())

	settings := service.NewAlertSettingsService(settingsRepo, cfg.RiskCutoff)
	notifications := service.NewNotificationService(notificationRepo, productRepo, settings, publisher)
	insights := service.NewInsightsService(predictionRepo, saleRepo, loader, publisher)
	predictions := service.NewPredictionService(
		productRepo, saleRepo, predictionRepo, insights, notifications, publisher,
		service.PredictionOptions{
			Forecast:         cfg.Forecast(),
			BatchConcurrency: cfg.BatchConcurrency,
			BulkAlertMin:     cfg.BulkAlertMin,
			WarmupTopN:       cfg.WarmupTopN,
		},
	)

	return &Services{
		Settings:      settings,
		Notifications: notifications,
		Insights:      insights,
		Predictions:   predictions,
		Locker:        locker,
	}
}

// OpenRedis connects to url, returning nil when url is empty.
func OpenRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
