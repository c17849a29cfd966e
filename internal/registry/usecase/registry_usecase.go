package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"bandscan-backend/internal/registry/domain"
	"bandscan-backend/internal/registry/repository"
)

// registryUsecase implements RegistryUsecase interface
type registryUsecase struct {
	tokens    repository.DeviceTokenRepository
	staleness time.Duration
	logger    zerolog.Logger
}

// NewRegistryUsecase creates a new instance of registryUsecase
func NewRegistryUsecase(tokens repository.DeviceTokenRepository, staleness time.Duration, logger zerolog.Logger) RegistryUsecase {
	return &registryUsecase{
		tokens:    tokens,
		staleness: staleness,
		logger:    logger.With().Str("component", "registry").Logger(),
	}
}

func (u *registryUsecase) Register(ctx context.Context, token, studentUID, bandID, platform string) (*domain.DeviceToken, error) {
	now := time.Now()
	record := &domain.DeviceToken{
		Token:      token,
		StudentUID: studentUID,
		BandID:     bandID,
		Platform:   platform,
		Active:     true,
		CreatedAt:  now,
		LastSeen:   now,
	}

	previous, err := u.tokens.Upsert(ctx, record)
	if err != nil {
		return nil, err
	}
	if previous != nil && previous.StudentUID != studentUID {
		u.logger.Info().
			Str("student_uid", studentUID).
			Str("previous_uid", previous.StudentUID).
			Msg("token reassigned")
	}
	return record, nil
}

func (u *registryUsecase) Unregister(ctx context.Context, token string) error {
	_, err := u.tokens.Delete(ctx, token)
	return err
}

func (u *registryUsecase) Ping(ctx context.Context, token string) error {
	_, err := u.tokens.Touch(ctx, token, time.Now())
	return err
}

func (u *registryUsecase) Resolve(ctx context.Context, bandID string, studentUIDs []string) (map[string][]domain.DeviceToken, error) {
	staleBefore := time.Now().Add(-u.staleness)
	return u.tokens.ResolveActive(ctx, bandID, studentUIDs, staleBefore)
}

func (u *registryUsecase) Deactivate(ctx context.Context, token, reason string) error {
	updated, err := u.tokens.Deactivate(ctx, token)
	if errors.Is(err, domain.ErrTokenNotFound) {
		// Unregistered while the push was in flight. Nothing left to do.
		return nil
	}
	if err != nil {
		return err
	}

	u.logger.Info().
		Str("student_uid", updated.StudentUID).
		Str("reason", reason).
		Msg("token deactivated")
	return nil
}
