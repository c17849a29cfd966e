package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandscan-backend/internal/notification/domain"
	"bandscan-backend/internal/notification/repository"
)

// notificationUsecase implements NotificationUsecase interface
type notificationUsecase struct {
	notificationRepo repository.NotificationRepository
	dispatcher       DispatchEnqueuer
	logger           zerolog.Logger
}

// NewNotificationUsecase creates a new instance of notificationUsecase
func NewNotificationUsecase(notificationRepo repository.NotificationRepository, dispatcher DispatchEnqueuer, logger zerolog.Logger) NotificationUsecase {
	return &notificationUsecase{
		notificationRepo: notificationRepo,
		dispatcher:       dispatcher,
		logger:           logger.With().Str("component", "notification").Logger(),
	}
}

func (u *notificationUsecase) Send(bandID, senderEmail, title, body string, recipientUIDs []string, data map[string]string) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:          uuid.New().String(),
		BandID:      bandID,
		SenderEmail: senderEmail,
		Title:       title,
		Body:        body,
		Status:      domain.StatusAccepted,
		CreatedAt:   time.Now(),
	}
	n.SetRecipients(recipientUIDs)
	if err := n.SetData(data); err != nil {
		return nil, err
	}

	// Create must succeed before the caller gets an id back; the rescan
	// loop redelivers anything the intake channel drops.
	if err := u.notificationRepo.Create(n); err != nil {
		return nil, err
	}
	u.dispatcher.Enqueue(n.ID)

	u.logger.Info().
		Str("notification_id", n.ID).
		Str("band_id", bandID).
		Int("recipients", len(recipientUIDs)).
		Msg("notification accepted")
	return n, nil
}

func (u *notificationUsecase) ListByBand(bandID string, limit, offset int) ([]domain.Notification, int64, error) {
	return u.notificationRepo.ListByBand(bandID, limit, offset)
}

func (u *notificationUsecase) GetByID(bandID, id string) (*domain.Notification, error) {
	n, err := u.notificationRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if n.BandID != bandID {
		return nil, domain.ErrBandMismatch
	}
	return n, nil
}

func (u *notificationUsecase) Cancel(bandID, id string) (bool, error) {
	if _, err := u.GetByID(bandID, id); err != nil {
		return false, err
	}
	return u.notificationRepo.Cancel(id)
}
