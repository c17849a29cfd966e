package repository

import (
	"time"

	"bandscan-backend/internal/request/domain"
)

// RequestRepository defines the interface for queue item data access.
// The finish operations (MarkSucceeded, ScheduleRetry, MarkFailed, MarkDead)
// are lease-guarded: they report false without touching the row when the
// caller no longer holds the lease.
type RequestRepository interface {
	// Create persists a new pending item
	Create(req *domain.StudentRequest) error

	// ClaimNext leases the oldest eligible item to owner, or returns nil
	// when nothing is eligible. Eligible means pending and due, or
	// in_progress with an expired lease. Exactly one claimer wins a given
	// item under contention.
	ClaimNext(owner string, now time.Time, lease time.Duration) (*domain.StudentRequest, error)

	// MarkSucceeded finishes an item without touching its attempts count
	MarkSucceeded(id, owner string, at time.Time) (bool, error)

	// ScheduleRetry returns an item to pending with its next attempt time
	ScheduleRetry(id, owner string, attempts int, nextAttemptAt time.Time, lastError string) (bool, error)

	// MarkFailed terminates an item after a permanent apply error
	MarkFailed(id, owner string, at time.Time, attempts int, lastError string) (bool, error)

	// MarkDead terminates an item that exhausted its attempts
	MarkDead(id, owner string, at time.Time, attempts int, lastError string) (bool, error)

	// Cancel withdraws a pending item. Claimed and terminal items refuse.
	Cancel(id string) (bool, error)

	// Stats counts items per status plus a total
	Stats() (map[string]int64, error)
}
