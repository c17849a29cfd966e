package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	registrydomain "bandscan-backend/internal/registry/domain"
	"bandscan-backend/internal/registry/repository"
)

// CachedDeviceTokenRepository decorates a DeviceTokenRepository with
// read-aside caching of per-student token sets. Cache failures degrade to
// the database, never to an error; empty sets are cached too so students
// with no devices do not hit the database on every notification.
type CachedDeviceTokenRepository struct {
	inner  repository.DeviceTokenRepository
	cache  CacheClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedDeviceTokenRepository creates the decorator.
func NewCachedDeviceTokenRepository(inner repository.DeviceTokenRepository, cache CacheClient, ttl time.Duration, logger zerolog.Logger) *CachedDeviceTokenRepository {
	return &CachedDeviceTokenRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "token_cache").Logger(),
	}
}

// ResolveActive serves each student from the cache when possible and asks
// the inner repository only for the misses.
func (c *CachedDeviceTokenRepository) ResolveActive(ctx context.Context, bandID string, studentUIDs []string, staleBefore time.Time) (map[string][]registrydomain.DeviceToken, error) {
	result := make(map[string][]registrydomain.DeviceToken, len(studentUIDs))
	var misses []string

	for _, uid := range studentUIDs {
		var cached []registrydomain.DeviceToken
		err := c.cache.Get(ctx, c.cacheKey(bandID, uid), &cached)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				c.logger.Warn().Err(err).Msg("cache read failed")
			}
			misses = append(misses, uid)
			continue
		}

		// The cached copy can outlive the staleness boundary by at most
		// one TTL, so re-check it here.
		var usable []registrydomain.DeviceToken
		for _, t := range cached {
			if t.Usable(staleBefore) {
				usable = append(usable, t)
			}
		}
		if len(usable) > 0 {
			result[uid] = usable
		}
	}

	if len(misses) > 0 {
		fresh, err := c.inner.ResolveActive(ctx, bandID, misses, staleBefore)
		if err != nil {
			return nil, err
		}
		for _, uid := range misses {
			tokens := fresh[uid]
			if len(tokens) > 0 {
				result[uid] = tokens
			}
			// Caching is an optimization, not a transaction.
			if err := c.cache.Set(ctx, c.cacheKey(bandID, uid), tokens, c.ttl); err != nil {
				c.logger.Warn().Err(err).Msg("cache write failed")
			}
		}
	}

	return result, nil
}

// Upsert writes through and invalidates both the new owner and, on a
// reassignment, the previous one.
func (c *CachedDeviceTokenRepository) Upsert(ctx context.Context, token *registrydomain.DeviceToken) (*registrydomain.DeviceToken, error) {
	previous, err := c.inner.Upsert(ctx, token)
	if err != nil {
		return nil, err
	}

	keys := []string{c.cacheKey(token.BandID, token.StudentUID)}
	if previous != nil && (previous.StudentUID != token.StudentUID || previous.BandID != token.BandID) {
		keys = append(keys, c.cacheKey(previous.BandID, previous.StudentUID))
	}
	c.invalidate(ctx, keys...)
	return previous, nil
}

func (c *CachedDeviceTokenRepository) Delete(ctx context.Context, token string) (*registrydomain.DeviceToken, error) {
	deleted, err := c.inner.Delete(ctx, token)
	if err != nil {
		return nil, err
	}
	if deleted != nil {
		c.invalidate(ctx, c.cacheKey(deleted.BandID, deleted.StudentUID))
	}
	return deleted, nil
}

func (c *CachedDeviceTokenRepository) Touch(ctx context.Context, token string, at time.Time) (*registrydomain.DeviceToken, error) {
	updated, err := c.inner.Touch(ctx, token, at)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.cacheKey(updated.BandID, updated.StudentUID))
	return updated, nil
}

func (c *CachedDeviceTokenRepository) Deactivate(ctx context.Context, token string) (*registrydomain.DeviceToken, error) {
	updated, err := c.inner.Deactivate(ctx, token)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.cacheKey(updated.BandID, updated.StudentUID))
	return updated, nil
}

// invalidate deletes keys after a successful write. A failed delete only
// delays consistency until the TTL, so it is logged and swallowed.
func (c *CachedDeviceTokenRepository) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Del(ctx, keys...); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func (c *CachedDeviceTokenRepository) cacheKey(bandID, studentUID string) string {
	return fmt.Sprintf("registry:tokens:%s:%s", bandID, studentUID)
}
