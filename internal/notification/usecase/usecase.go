package usecase

import (
	"bandscan-backend/internal/notification/domain"
)

// NotificationUsecase defines the business logic for notifications
type NotificationUsecase interface {
	// Send accepts a notification for background dispatch and returns it
	// immediately. Callers poll the history for the delivery summary.
	Send(bandID, senderEmail, title, body string, recipientUIDs []string, data map[string]string) (*domain.Notification, error)

	// ListByBand returns a band's notification history, newest first
	ListByBand(bandID string, limit, offset int) ([]domain.Notification, int64, error)

	// GetByID retrieves a notification (with band ownership check)
	GetByID(bandID, id string) (*domain.Notification, error)

	// Cancel withdraws an accepted notification. Reports false once
	// dispatch claimed it.
	Cancel(bandID, id string) (bool, error)
}

// DispatchEnqueuer hands accepted notifications to the background dispatcher
type DispatchEnqueuer interface {
	Enqueue(id string)
}
