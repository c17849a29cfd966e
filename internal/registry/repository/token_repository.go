package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	registrydomain "bandscan-backend/internal/registry/domain"
)

// DeviceTokenRepository defines the storage operations of the token
// registry. Mutations return the affected row so callers can invalidate any
// per-student caches.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *registrydomain.DeviceToken) (previous *registrydomain.DeviceToken, err error)
	Delete(ctx context.Context, token string) (deleted *registrydomain.DeviceToken, err error)
	Touch(ctx context.Context, token string, at time.Time) (*registrydomain.DeviceToken, error)
	ResolveActive(ctx context.Context, bandID string, studentUIDs []string, staleBefore time.Time) (map[string][]registrydomain.DeviceToken, error)
	Deactivate(ctx context.Context, token string) (*registrydomain.DeviceToken, error)
}

// deviceTokenRepository implements DeviceTokenRepository on gorm
type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new instance of deviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{
		db: db,
	}
}

// Upsert registers a token, silently reassigning it when another student
// already owns it. Atomic INSERT ... ON CONFLICT (token) DO UPDATE; returns
// the row the token pointed at before, or nil for a first registration.
func (r *deviceTokenRepository) Upsert(ctx context.Context, token *registrydomain.DeviceToken) (*registrydomain.DeviceToken, error) {
	var previous *registrydomain.DeviceToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing registrydomain.DeviceToken
		err := tx.Where("token = ?", token.Token).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			previous = &existing
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"student_uid", "band_id", "platform", "active", "last_seen"}),
		}).Create(token).Error
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// Delete removes a token if present and returns the deleted row, or nil when
// the token was already gone.
func (r *deviceTokenRepository) Delete(ctx context.Context, token string) (*registrydomain.DeviceToken, error) {
	var deleted *registrydomain.DeviceToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing registrydomain.DeviceToken
		err := tx.Where("token = ?", token).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = &existing
		return tx.Where("token = ?", token).Delete(&registrydomain.DeviceToken{}).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Touch refreshes last-seen for a known token.
func (r *deviceTokenRepository) Touch(ctx context.Context, token string, at time.Time) (*registrydomain.DeviceToken, error) {
	var updated registrydomain.DeviceToken
	res := r.db.WithContext(ctx).Model(&updated).
		Clauses(clause.Returning{}).
		Where("token = ?", token).
		Update("last_seen", at)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, registrydomain.ErrTokenNotFound
	}
	return &updated, nil
}

// ResolveActive returns the usable tokens of each student, grouped by
// student UID. Active tokens that fell out of the staleness window are
// deactivated in the same transaction so later resolves skip them cheaply.
func (r *deviceTokenRepository) ResolveActive(ctx context.Context, bandID string, studentUIDs []string, staleBefore time.Time) (map[string][]registrydomain.DeviceToken, error) {
	if len(studentUIDs) == 0 {
		return map[string][]registrydomain.DeviceToken{}, nil
	}

	var tokens []registrydomain.DeviceToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&registrydomain.DeviceToken{}).
			Where("band_id = ? AND student_uid IN ? AND active = ? AND last_seen < ?",
				bandID, studentUIDs, true, staleBefore).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Where("band_id = ? AND student_uid IN ? AND active = ?", bandID, studentUIDs, true).
			Order("created_at ASC").
			Find(&tokens).Error
	})
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]registrydomain.DeviceToken)
	for _, t := range tokens {
		grouped[t.StudentUID] = append(grouped[t.StudentUID], t)
	}
	return grouped, nil
}

// Deactivate clears the active flag and returns the updated row so the
// caller knows which student the token belonged to.
func (r *deviceTokenRepository) Deactivate(ctx context.Context, token string) (*registrydomain.DeviceToken, error) {
	var updated registrydomain.DeviceToken
	res := r.db.WithContext(ctx).Model(&updated).
		Clauses(clause.Returning{}).
		Where("token = ?", token).
		Update("active", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, registrydomain.ErrTokenNotFound
	}
	return &updated, nil
}
