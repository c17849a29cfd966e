package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bandscan-backend/internal/request/domain"
)

// gormRequestRepository implements RequestRepository using GORM
type gormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GORM-based RequestRepository
func NewGormRequestRepository(db *gorm.DB) RequestRepository {
	return &gormRequestRepository{db: db}
}

func (r *gormRequestRepository) Create(req *domain.StudentRequest) error {
	return r.db.Create(req).Error
}

// ClaimNext picks the oldest eligible item with SELECT ... FOR UPDATE SKIP
// LOCKED, so concurrent claimers never block on or double-claim the same
// row, then stamps the lease inside the same transaction.
func (r *gormRequestRepository) ClaimNext(owner string, now time.Time, lease time.Duration) (*domain.StudentRequest, error) {
	var claimed *domain.StudentRequest
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var item domain.StudentRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND lease_expires_at <= ?)",
				domain.StatusPending, now, domain.StatusInProgress, now).
			Order("queued_at ASC, seq ASC").
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		expires := now.Add(lease)
		if err := tx.Model(&domain.StudentRequest{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"status":           domain.StatusInProgress,
				"lease_owner":      owner,
				"lease_expires_at": expires,
			}).Error; err != nil {
			return err
		}

		item.Status = domain.StatusInProgress
		item.LeaseOwner = owner
		item.LeaseExpiresAt = &expires
		claimed = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *gormRequestRepository) MarkSucceeded(id, owner string, at time.Time) (bool, error) {
	return r.finish(id, owner, map[string]interface{}{
		"status":       domain.StatusSucceeded,
		"processed_at": at,
	})
}

func (r *gormRequestRepository) ScheduleRetry(id, owner string, attempts int, nextAttemptAt time.Time, lastError string) (bool, error) {
	return r.finish(id, owner, map[string]interface{}{
		"status":          domain.StatusPending,
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt,
		"last_error":      lastError,
	})
}

func (r *gormRequestRepository) MarkFailed(id, owner string, at time.Time, attempts int, lastError string) (bool, error) {
	return r.finish(id, owner, map[string]interface{}{
		"status":       domain.StatusFailed,
		"attempts":     attempts,
		"processed_at": at,
		"last_error":   lastError,
	})
}

func (r *gormRequestRepository) MarkDead(id, owner string, at time.Time, attempts int, lastError string) (bool, error) {
	return r.finish(id, owner, map[string]interface{}{
		"status":       domain.StatusDead,
		"attempts":     attempts,
		"processed_at": at,
		"last_error":   lastError,
	})
}

// finish advances an in_progress item while the caller still holds its
// lease and releases the lease in the same UPDATE. A reclaimed item's late
// finisher matches zero rows and is discarded.
func (r *gormRequestRepository) finish(id, owner string, updates map[string]interface{}) (bool, error) {
	updates["lease_owner"] = ""
	updates["lease_expires_at"] = nil

	res := r.db.Model(&domain.StudentRequest{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, domain.StatusInProgress, owner).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRequestRepository) Cancel(id string) (bool, error) {
	res := r.db.Model(&domain.StudentRequest{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("status", domain.StatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRequestRepository) Stats() (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := r.db.Model(&domain.StudentRequest{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := map[string]int64{
		domain.StatusPending:    0,
		domain.StatusInProgress: 0,
		domain.StatusSucceeded:  0,
		domain.StatusFailed:     0,
		domain.StatusDead:       0,
		domain.StatusCancelled:  0,
	}
	var total int64
	for _, row := range rows {
		stats[row.Status] = row.Count
		total += row.Count
	}
	stats["total"] = total
	return stats, nil
}
