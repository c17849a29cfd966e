package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"bandscan-backend/internal/notification/domain"
)

// gormNotificationRepository implements NotificationRepository using GORM
type gormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based NotificationRepository
func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(n *domain.Notification) error {
	return r.db.Create(n).Error
}

func (r *gormNotificationRepository) GetByID(id string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *gormNotificationRepository) ListByBand(bandID string, limit, offset int) ([]domain.Notification, int64, error) {
	var notifications []domain.Notification
	var total int64

	query := r.db.Model(&domain.Notification{}).Where("band_id = ?", bandID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&notifications).Error

	return notifications, total, err
}

// ClaimForDispatch is a single guarded UPDATE, so a concurrent Cancel and a
// claim resolve to exactly one winner.
func (r *gormNotificationRepository) ClaimForDispatch(id string) (bool, error) {
	res := r.db.Model(&domain.Notification{}).
		Where("id = ? AND status = ?", id, domain.StatusAccepted).
		Update("status", domain.StatusDispatching)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) Cancel(id string) (bool, error) {
	res := r.db.Model(&domain.Notification{}).
		Where("id = ? AND status = ?", id, domain.StatusAccepted).
		Update("status", domain.StatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) FinalizeSummary(id string, sent, failed, skipped int, at time.Time) error {
	return r.db.Model(&domain.Notification{}).
		Where("id = ? AND status = ?", id, domain.StatusDispatching).
		Updates(map[string]interface{}{
			"status":        domain.StatusCompleted,
			"sent_count":    sent,
			"failed_count":  failed,
			"skipped_count": skipped,
			"completed_at":  at,
		}).Error
}

func (r *gormNotificationRepository) FindStaleAccepted(olderThan time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&domain.Notification{}).
		Where("status = ? AND created_at < ?", domain.StatusAccepted, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
