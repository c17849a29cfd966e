package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bandscan-backend/internal/request/domain"
)

// Applier applies one operation descriptor to the external system. A plain
// error means transient; wrap with domain.Permanent to stop retrying.
type Applier interface {
	Apply(ctx context.Context, operation string) error
}

// RequestQueue is the repository surface the worker needs.
type RequestQueue interface {
	ClaimNext(owner string, now time.Time, lease time.Duration) (*domain.StudentRequest, error)
	MarkSucceeded(id, owner string, at time.Time) (bool, error)
	ScheduleRetry(id, owner string, attempts int, nextAttemptAt time.Time, lastError string) (bool, error)
	MarkFailed(id, owner string, at time.Time, attempts int, lastError string) (bool, error)
	MarkDead(id, owner string, at time.Time, attempts int, lastError string) (bool, error)
}

// Config holds the queue worker tuning knobs.
type Config struct {
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	Jitter       float64
	ApplyTimeout time.Duration
}

// QueueWorker drains the offline retry queue. Each worker goroutine claims
// one item at a time under a lease and advances it through the state
// machine based on the apply outcome.
type QueueWorker struct {
	queue   RequestQueue
	applier Applier
	cfg     Config
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewQueueWorker creates a worker pool over the given queue and applier.
func NewQueueWorker(queue RequestQueue, applier Applier, cfg Config, logger zerolog.Logger) *QueueWorker {
	return &QueueWorker{
		queue:   queue,
		applier: applier,
		cfg:     cfg,
		logger:  logger.With().Str("component", "queue_worker").Logger(),
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (w *QueueWorker) Start(ctx context.Context) {
	w.logger.Info().Int("workers", w.cfg.Workers).Msg("queue workers starting")
	for i := 0; i < w.cfg.Workers; i++ {
		// Owners must be unique across restarts, or a late finish from a
		// dead process could pass another worker's lease guard.
		owner := uuid.New().String()
		w.wg.Add(1)
		go w.run(ctx, owner)
	}
}

// Stop waits for the workers to drain after ctx cancellation.
func (w *QueueWorker) Stop() {
	w.wg.Wait()
}

func (w *QueueWorker) run(ctx context.Context, owner string) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := w.queue.ClaimNext(owner, time.Now(), w.cfg.Lease)
		if err != nil {
			w.logger.Error().Err(err).Msg("claim failed")
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}
		if item == nil {
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}
		w.process(ctx, owner, item)
	}
}

func (w *QueueWorker) process(ctx context.Context, owner string, item *domain.StudentRequest) {
	applyCtx, cancel := context.WithTimeout(ctx, w.cfg.ApplyTimeout)
	err := w.applier.Apply(applyCtx, item.Operation)
	cancel()

	now := time.Now()
	var (
		held    bool
		markErr error
	)
	switch {
	case err == nil:
		held, markErr = w.queue.MarkSucceeded(item.ID, owner, now)
		if held {
			w.logger.Info().Str("request_id", item.ID).Int("attempts", item.Attempts).Msg("request applied")
		}
	case domain.IsPermanent(err):
		held, markErr = w.queue.MarkFailed(item.ID, owner, now, item.Attempts+1, err.Error())
		if held {
			w.logger.Warn().Str("request_id", item.ID).Err(err).Msg("request failed permanently")
		}
	default:
		attempts := item.Attempts + 1
		if attempts >= w.cfg.MaxAttempts {
			held, markErr = w.queue.MarkDead(item.ID, owner, now, attempts, err.Error())
			if held {
				w.logger.Error().Str("request_id", item.ID).Int("attempts", attempts).Err(err).Msg("request dead")
			}
		} else {
			next := now.Add(w.backoff(attempts))
			held, markErr = w.queue.ScheduleRetry(item.ID, owner, attempts, next, err.Error())
			if held {
				w.logger.Warn().
					Str("request_id", item.ID).
					Int("attempts", attempts).
					Time("next_attempt_at", next).
					Err(err).
					Msg("request retry scheduled")
			}
		}
	}

	if markErr != nil {
		w.logger.Error().Err(markErr).Str("request_id", item.ID).Msg("finish failed")
		return
	}
	if !held {
		// The lease expired mid-apply and someone reclaimed the item; that
		// claimer owns the outcome now.
		w.logger.Debug().Str("request_id", item.ID).Msg("lease lost, outcome discarded")
	}
}

// backoff doubles from the base per prior attempt, caps, then jitters
// so synchronized retries spread out.
func (w *QueueWorker) backoff(attempts int) time.Duration {
	d := w.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.BackoffCap {
			d = w.cfg.BackoffCap
			break
		}
	}
	if w.cfg.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + w.cfg.Jitter*(2*rand.Float64()-1)))
	}
	return d
}

func (w *QueueWorker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
