package repository

import (
	"context"
	"time"

	"go-inventory-insights/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	// ExistsSimilar reports whether a notification of the same type for the
	// same product was created strictly after since.
	ExistsSimilar(ctx context.Context, storeID uuid.UUID, productID *uuid.UUID, typ model.NotificationType, since time.Time) (bool, error)
	// CreateIfNoSimilar inserts n unless one of the same (store, product, type)
	// was created within window before n.CreatedAt. The check and the insert
	// are a single atomic step.
	CreateIfNoSimilar(ctx context.Context, n *model.Notification, window time.Duration) (bool, error)
	ListUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, now time.Time, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, now time.Time) (int64, error)
	MarkAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error
	Dismiss(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error)
	MarkProductAsRead(ctx context.Context, storeID, productID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type notificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db}
}

// dedupProductKey maps store-wide notifications (no product) to uuid.Nil so
// they share one dedup slot per type.
func dedupProductKey(productID *uuid.UUID) uuid.UUID {
	if productID == nil {
		return uuid.Nil
	}
	return *productID
}

// scope restricts a query to one store and to notifications addressed to the
// user or to the whole store.
func scope(db *gorm.DB, storeID uuid.UUID, userID *uuid.UUID) *gorm.DB {
	db = db.Where("store_id = ?", storeID)
	if userID != nil {
		db = db.Where("(user_id = ? OR user_id IS NULL)", *userID)
	}
	return db
}

func (r *notificationRepo) ExistsSimilar(ctx context.Context, storeID uuid.UUID, productID *uuid.UUID, typ model.NotificationType, since time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("store_id = ? AND type = ? AND created_at > ?", storeID, typ, since)
	if productID == nil {
		q = q.Where("product_id IS NULL")
	} else {
		q = q.Where("product_id = ?", *productID)
	}
	var count int64
	if err := q.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *notificationRepo) CreateIfNoSimilar(ctx context.Context, n *model.Notification, window time.Duration) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := model.NotificationDedupKey{
			StoreID:       n.StoreID,
			ProductID:     dedupProductKey(n.ProductID),
			Type:          n.Type,
			LastCreatedAt: n.CreatedAt,
		}
		// Claim the slot: insert, or move last_created_at forward only when the
		// previous one is at least window old. Zero rows means a similar
		// notification already owns the window.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "product_id"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_created_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "notification_dedup_keys.last_created_at <= ?", Vars: []interface{}{n.CreatedAt.Add(-window)}},
			}},
		}).Create(&key)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *notificationRepo) ListUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, now time.Time, limit int) ([]model.Notification, error) {
	var out []model.Notification
	err := scope(r.db.WithContext(ctx), storeID, userID).
		Where("read = ? AND dismissed = ? AND expires_at > ?", false, false, now).
		Order("priority_rank ASC, created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *notificationRepo) CountUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := scope(r.db.WithContext(ctx).Model(&model.Notification{}), storeID, userID).
		Where("read = ? AND dismissed = ? AND expires_at > ?", false, false, now).
		Count(&count).Error
	return count, err
}

func (r *notificationRepo) MarkAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error {
	res := scope(r.db.WithContext(ctx).Model(&model.Notification{}), storeID, userID).
		Where("id = ?", id).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepo) Dismiss(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error {
	res := scope(r.db.WithContext(ctx).Model(&model.Notification{}), storeID, userID).
		Where("id = ?", id).
		Update("dismissed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllAsRead flips read on every unread notification, dismissed or not.
// dismissed itself is never touched.
func (r *notificationRepo) MarkAllAsRead(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error) {
	res := scope(r.db.WithContext(ctx).Model(&model.Notification{}), storeID, userID).
		Where("read = ?", false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *notificationRepo) MarkProductAsRead(ctx context.Context, storeID, productID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("store_id = ? AND product_id = ? AND read = ?", storeID, productID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *notificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}
