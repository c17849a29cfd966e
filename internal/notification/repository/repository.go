package repository

import (
	"time"

	"bandscan-backend/internal/notification/domain"
)

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// Create persists an accepted notification
	Create(n *domain.Notification) error

	// GetByID finds a notification by its ID
	GetByID(id string) (*domain.Notification, error)

	// ListByBand returns a band's notification history, newest first
	ListByBand(bandID string, limit, offset int) ([]domain.Notification, int64, error)

	// ClaimForDispatch flips accepted to dispatching. Reports false when the
	// notification was cancelled or already claimed.
	ClaimForDispatch(id string) (bool, error)

	// Cancel flips accepted to cancelled. Reports false once a worker
	// claimed the notification.
	Cancel(id string) (bool, error)

	// FinalizeSummary records the delivery counts and completes the
	// notification
	FinalizeSummary(id string, sent, failed, skipped int, at time.Time) error

	// FindStaleAccepted returns ids of accepted notifications older than the
	// cutoff, oldest first
	FindStaleAccepted(olderThan time.Time, limit int) ([]string, error)
}
