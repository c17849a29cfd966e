package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bandscan-backend/internal/notification/domain"
	registrydomain "bandscan-backend/internal/registry/domain"
	"bandscan-backend/pkg/push"
)

// rescanBatch caps how many stale notifications one rescan pass requeues.
const rescanBatch = 64

// Store is the notification persistence surface the dispatcher needs.
type Store interface {
	GetByID(id string) (*domain.Notification, error)
	ClaimForDispatch(id string) (bool, error)
	FinalizeSummary(id string, sent, failed, skipped int, at time.Time) error
	FindStaleAccepted(olderThan time.Time, limit int) ([]string, error)
}

// TokenResolver is the registry surface the dispatcher needs.
type TokenResolver interface {
	Resolve(ctx context.Context, bandID string, studentUIDs []string) (map[string][]registrydomain.DeviceToken, error)
	Deactivate(ctx context.Context, token, reason string) error
}

// Config holds the dispatch tuning knobs.
type Config struct {
	Workers      int
	BatchLimit   int
	MaxRetries   int
	BackoffBase  time.Duration
	RescanPeriod time.Duration
}

// Dispatcher fans accepted notifications out to the per-platform providers
// from a bounded worker pool. Acceptance is durable, so a full intake
// channel or a crash only delays delivery until the periodic rescan.
type Dispatcher struct {
	store     Store
	registry  TokenResolver
	providers map[string]push.Provider
	cfg       Config
	intake    chan string
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given providers, keyed by the
// platform each one serves.
func NewDispatcher(store Store, registry TokenResolver, providers []push.Provider, cfg Config, logger zerolog.Logger) *Dispatcher {
	byPlatform := make(map[string]push.Provider, len(providers))
	for _, p := range providers {
		byPlatform[p.Platform()] = p
	}

	return &Dispatcher{
		store:     store,
		registry:  registry,
		providers: byPlatform,
		cfg:       cfg,
		intake:    make(chan string, 64),
		logger:    logger.With().Str("component", "dispatch").Logger(),
	}
}

// Enqueue hands a notification id to the worker pool without blocking the
// caller.
func (d *Dispatcher) Enqueue(id string) {
	select {
	case d.intake <- id:
	default:
		d.logger.Warn().Str("notification_id", id).Msg("intake full, deferring to rescan")
	}
}

// Start launches the worker pool and the rescan loop. They run until ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Int("providers", len(d.providers)).
		Msg("dispatcher starting")

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	d.wg.Add(1)
	go d.rescanLoop(ctx)
}

// Stop waits for the workers to drain after ctx cancellation.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.intake:
			d.process(ctx, id)
		}
	}
}

func (d *Dispatcher) rescanLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.RescanPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.rescan()
		}
	}
}

// rescan requeues accepted notifications nobody claimed within one rescan
// period, so acceptance survives dropped intake sends and process crashes.
func (d *Dispatcher) rescan() {
	ids, err := d.store.FindStaleAccepted(time.Now().Add(-d.cfg.RescanPeriod), rescanBatch)
	if err != nil {
		d.logger.Error().Err(err).Msg("rescan failed")
		return
	}
	for _, id := range ids {
		d.Enqueue(id)
	}
	if len(ids) > 0 {
		d.logger.Info().Int("count", len(ids)).Msg("requeued stale notifications")
	}
}

// process runs one notification to completion. The claim is what loses
// against a concurrent cancel, so a cancelled notification never reaches a
// provider.
func (d *Dispatcher) process(ctx context.Context, id string) {
	claimed, err := d.store.ClaimForDispatch(id)
	if err != nil {
		d.logger.Error().Err(err).Str("notification_id", id).Msg("claim failed")
		return
	}
	if !claimed {
		return
	}

	n, err := d.store.GetByID(id)
	if err != nil {
		d.logger.Error().Err(err).Str("notification_id", id).Msg("load failed")
		return
	}

	recipients := n.Recipients()
	resolved, err := d.registry.Resolve(ctx, n.BandID, recipients)
	if err != nil {
		d.logger.Error().Err(err).Str("notification_id", id).Msg("token resolve failed")
		return
	}

	byPlatform := make(map[string][]string)
	for _, tokens := range resolved {
		for _, t := range tokens {
			byPlatform[t.Platform] = append(byPlatform[t.Platform], t.Token)
		}
	}

	payload := push.Payload{Title: n.Title, Body: n.Body, Data: n.DataMap()}
	delivered := make(map[string]bool)
	for platform, tokens := range byPlatform {
		provider, ok := d.providers[platform]
		if !ok {
			d.logger.Warn().Str("platform", platform).Int("tokens", len(tokens)).Msg("no provider configured")
			continue
		}
		for token := range d.sendWithRetry(ctx, provider, tokens, payload) {
			delivered[token] = true
		}
	}

	// A member counts as sent when at least one of their devices got the
	// push, failed when they had devices and none did, and skipped when
	// they had no usable device at all.
	var sent, failed, skipped int
	for _, uid := range recipients {
		tokens := resolved[uid]
		if len(tokens) == 0 {
			skipped++
			continue
		}
		reached := false
		for _, t := range tokens {
			if delivered[t.Token] {
				reached = true
				break
			}
		}
		if reached {
			sent++
		} else {
			failed++
		}
	}

	if err := d.store.FinalizeSummary(id, sent, failed, skipped, time.Now()); err != nil {
		d.logger.Error().Err(err).Str("notification_id", id).Msg("finalize failed")
		return
	}

	d.logger.Info().
		Str("notification_id", id).
		Int("sent", sent).
		Int("failed", failed).
		Int("skipped", skipped).
		Msg("dispatch complete")
}

// sendWithRetry pushes to one platform, retrying the transiently failed
// tokens up to the retry budget with exponential backoff. Returns the set
// of delivered tokens. Invalid tokens are deactivated as soon as the
// provider reports them.
func (d *Dispatcher) sendWithRetry(ctx context.Context, provider push.Provider, tokens []string, payload push.Payload) map[string]bool {
	delivered := make(map[string]bool, len(tokens))
	pending := tokens

	for attempt := 0; ; attempt++ {
		var retry []string
		for _, batch := range chunk(pending, d.cfg.BatchLimit) {
			for _, res := range provider.Send(ctx, batch, payload) {
				switch res.Status {
				case push.StatusDelivered:
					delivered[res.Token] = true
				case push.StatusInvalid:
					if err := d.registry.Deactivate(ctx, res.Token, res.Reason); err != nil {
						d.logger.Error().Err(err).Msg("deactivate failed")
					}
				case push.StatusRetry:
					retry = append(retry, res.Token)
				}
			}
		}

		if len(retry) == 0 || attempt >= d.cfg.MaxRetries {
			if len(retry) > 0 {
				d.logger.Warn().
					Str("platform", provider.Platform()).
					Int("tokens", len(retry)).
					Msg("retry budget exhausted")
			}
			return delivered
		}

		select {
		case <-ctx.Done():
			return delivered
		case <-time.After(d.cfg.BackoffBase << attempt):
		}
		pending = retry
	}
}

// chunk splits tokens into provider-call sized batches.
func chunk(tokens []string, size int) [][]string {
	if size <= 0 || len(tokens) <= size {
		return [][]string{tokens}
	}
	var batches [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batches = append(batches, tokens[start:end])
	}
	return batches
}
