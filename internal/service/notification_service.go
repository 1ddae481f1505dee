package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-inventory-insights/internal/metrics"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/repository"
	"go-inventory-insights/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DedupWindow is how long a notification of one type for one product
// suppresses another of the same kind.
const DedupWindow = 24 * time.Hour

const unreadLimit = 50

type NotificationService interface {
	// Evaluate raises the threshold and risk notifications a fresh prediction
	// calls for and returns the ones actually created.
	Evaluate(ctx context.Context, p *model.Prediction, product *model.Product) ([]model.Notification, error)
	CreateBulkAlert(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) (*model.Notification, error)

	GetUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) ([]model.Notification, error)
	GetUnreadCount(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error
	Dismiss(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error)
	Acknowledge(ctx context.Context, storeID, productID uuid.UUID) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	products  repository.ProductRepository
	settings  AlertSettingsService
	publisher ws.Publisher
	now       func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, products repository.ProductRepository, settings AlertSettingsService, publisher ws.Publisher) NotificationService {
	return &notificationService{
		repo:      repo,
		products:  products,
		settings:  settings,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *notificationService) Evaluate(ctx context.Context, p *model.Prediction, product *model.Product) ([]model.Notification, error) {
	settings, err := s.settings.Get(ctx, p.StoreID)
	if err != nil {
		return nil, err
	}
	category, err := s.products.FindCategory(ctx, p.StoreID, p.Category)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load category: %w", err)
	}
	thresholds := settings.EffectiveThresholds(category)

	var candidates []*model.Notification
	if n := s.stockoutNotification(p, product, thresholds, settings.Enabled); n != nil {
		candidates = append(candidates, n)
	}
	if p.Metrics.RiskScore > settings.RiskCutoff {
		candidates = append(candidates, s.riskNotification(p))
	}

	var created []model.Notification
	for _, n := range candidates {
		ok, err := s.create(ctx, n)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, *n)
		}
	}
	return created, nil
}

func (s *notificationService) stockoutNotification(p *model.Prediction, product *model.Product, t model.AlertThresholds, enabled model.AlertLevels) *model.Notification {
	days := p.Metrics.DaysUntilStockout
	var (
		typ      model.NotificationType
		priority model.Priority
		title    string
	)
	switch {
	case enabled.Critical && days <= t.Critical:
		typ, priority, title = model.NotificationStockoutWarning, model.PriorityCritical, "Stock running out: "+p.ProductName
	case enabled.HighUrgency && days <= t.HighUrgency:
		typ, priority, title = model.NotificationStockoutWarning, model.PriorityHigh, "Low stock: "+p.ProductName
	case enabled.EarlyWarning && days <= t.EarlyWarning:
		typ, priority, title = model.NotificationRestockReminder, model.PriorityMedium, "Plan a restock: "+p.ProductName
	default:
		return nil
	}

	msg := fmt.Sprintf("%s will run out in about %d days at %.2f units/day.", p.ProductName, days, p.Metrics.Velocity)
	if days == 0 {
		msg = fmt.Sprintf("%s is out of stock.", p.ProductName)
	}
	return s.newNotification(p, typ, priority, title, msg,
		model.RestockParams{ProductID: p.ProductID, SuggestedQuantity: suggestedQuantity(p, product)})
}

func (s *notificationService) riskNotification(p *model.Prediction) *model.Notification {
	msg := fmt.Sprintf("Risk score %d/100.", p.Metrics.RiskScore)
	var params model.ActionParams = model.ReviewProductParams{ProductID: p.ProductID}
	if primary, ok := p.Primary(); ok {
		msg += " " + primary.Message
		if primary.DiscountPercent > 0 {
			params = model.ApplyDiscountParams{ProductID: p.ProductID, DiscountPercent: primary.DiscountPercent}
		}
	}
	return s.newNotification(p, model.NotificationCriticalRisk, model.PriorityCritical, "High risk: "+p.ProductName, msg, params)
}

func (s *notificationService) newNotification(p *model.Prediction, typ model.NotificationType, priority model.Priority, title, msg string, params model.ActionParams) *model.Notification {
	productID := p.ProductID
	n := &model.Notification{
		StoreID:      p.StoreID,
		Type:         typ,
		Priority:     priority,
		PriorityRank: priority.Rank(),
		Title:        title,
		Message:      msg,
		ProductID:    &productID,
		Actionable:   model.NewActionable(params),
		Metadata: model.NotificationMetadata{
			RiskScore:         p.Metrics.RiskScore,
			DaysUntilStockout: p.Metrics.DaysUntilStockout,
		},
	}
	if primary, ok := p.Primary(); ok {
		n.Metadata.RecommendedDiscount = primary.DiscountPercent
	}
	return n
}

// suggestedQuantity covers the next 30 days of demand, never less than the
// product's reorder threshold.
func suggestedQuantity(p *model.Prediction, product *model.Product) int {
	stock := 0
	threshold := 0
	if product != nil {
		stock = product.CurrentStock()
		threshold = product.ThresholdValue
	}
	qty := p.Forecast.Next30Days - stock
	if qty < threshold {
		qty = threshold
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

func (s *notificationService) CreateBulkAlert(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) (*model.Notification, error) {
	ids := append([]uuid.UUID(nil), productIDs...)
	n := &model.Notification{
		StoreID:      storeID,
		Type:         model.NotificationBulkAlert,
		Priority:     model.PriorityCritical,
		PriorityRank: model.PriorityCritical.Rank(),
		Title:        fmt.Sprintf("%d products need urgent attention", len(ids)),
		Message:      fmt.Sprintf("%d products reached critical risk in the last refresh. Review inventory to plan markdowns and restocks.", len(ids)),
		Actionable:   model.NewActionable(model.ReviewInventoryParams{ProductIDs: ids}),
	}
	ok, err := s.create(ctx, n)
	if err != nil || !ok {
		return nil, err
	}
	return n, nil
}

// create applies the dedup window and publishes what was stored. The
// ExistsSimilar read skips the transaction in the common case; the
// conditional claim inside CreateIfNoSimilar is what closes the race.
func (s *notificationService) create(ctx context.Context, n *model.Notification) (bool, error) {
	now := s.now()
	exists, err := s.repo.ExistsSimilar(ctx, n.StoreID, n.ProductID, n.Type, now.Add(-DedupWindow))
	if err != nil {
		return false, fmt.Errorf("check similar notification: %w", err)
	}
	if exists {
		metrics.NotificationsSuppressed.WithLabelValues(string(n.Type)).Inc()
		return false, nil
	}

	n.CreatedAt = now
	n.UpdatedAt = now
	n.ExpiresAt = now.Add(model.NotificationTTL)
	created, err := s.repo.CreateIfNoSimilar(ctx, n, DedupWindow)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	if !created {
		metrics.NotificationsSuppressed.WithLabelValues(string(n.Type)).Inc()
		return false, nil
	}

	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	log.Info().
		Str("store_id", n.StoreID.String()).
		Str("type", string(n.Type)).
		Str("priority", string(n.Priority)).
		Msg("notification created")

	s.publisher.Publish(n.StoreID, ws.EventNotificationNew, ws.NotificationNew{Notification: n, Timestamp: now})
	if n.Priority == model.PriorityCritical || n.Priority == model.PriorityHigh {
		s.publisher.Publish(n.StoreID, ws.EventAlertUrgent, ws.AlertUrgent{
			Title:     n.Title,
			Message:   n.Message,
			ProductID: n.ProductID,
			Priority:  n.Priority,
			Timestamp: now,
		})
	}
	return true, nil
}

func (s *notificationService) GetUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) ([]model.Notification, error) {
	return s.repo.ListUnread(ctx, storeID, userID, s.now(), unreadLimit)
}

func (s *notificationService) GetUnreadCount(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, storeID, userID, s.now())
}

func (s *notificationService) MarkAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error {
	return notFound(s.repo.MarkAsRead(ctx, storeID, userID, id))
}

func (s *notificationService) Dismiss(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error {
	return notFound(s.repo.Dismiss(ctx, storeID, userID, id))
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, storeID, userID)
}

func (s *notificationService) Acknowledge(ctx context.Context, storeID, productID uuid.UUID) (int64, error) {
	return s.repo.MarkProductAsRead(ctx, storeID, productID)
}

func (s *notificationService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", err)
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("expired notifications purged")
	}
	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
