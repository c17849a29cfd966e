package usecase

import (
	"context"

	"bandscan-backend/internal/registry/domain"
)

// RegistryUsecase defines the business logic of the device token registry
type RegistryUsecase interface {
	// Register stores or reassigns a device token (newest registration wins)
	Register(ctx context.Context, token, studentUID, bandID, platform string) (*domain.DeviceToken, error)

	// Unregister removes a token; unknown tokens succeed silently
	Unregister(ctx context.Context, token string) error

	// Ping refreshes a token's last-seen timestamp
	Ping(ctx context.Context, token string) error

	// Resolve returns the usable tokens of each student, keyed by UID.
	// Students without usable tokens have no entry.
	Resolve(ctx context.Context, bandID string, studentUIDs []string) (map[string][]domain.DeviceToken, error)

	// Deactivate marks a token dead after a permanent provider rejection
	Deactivate(ctx context.Context, token, reason string) error
}
