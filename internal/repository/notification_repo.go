package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

const (
	defaultNotificationPage = 50
	maxNotificationPage     = 100
)

// NotificationFilter narrows a recipient's notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationRepository stores notifications. Every query is scoped to the
// recipient, so one user can never read or flip another user's rows.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id uint, userID uint) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func recipient(userID uint, unreadOnly bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if unreadOnly {
			db = db.Where("is_read = ?", false)
		}
		return db
	}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListByUser returns newest first; the page size is clamped to 1..100.
func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxNotificationPage {
		limit = defaultNotificationPage
	}

	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Scopes(recipient(userID, filter.UnreadOnly)).
		Order("created_at DESC, id DESC").
		Offset(max(filter.Offset, 0)).
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Scopes(recipient(userID, true)).
		Count(&count).Error
	return count, err
}

// MarkRead flips the flag if needed and returns the row. A row owned by
// someone else reports gorm.ErrRecordNotFound.
func (r *notificationRepository) MarkRead(ctx context.Context, id uint, userID uint) (models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(recipient(userID, false)).First(&notification, id).Error; err != nil {
			return err
		}
		if notification.IsRead {
			return nil
		}
		notification.IsRead = true
		return tx.Model(&notification).Update("is_read", true).Error
	})
	if err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Scopes(recipient(userID, true)).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
