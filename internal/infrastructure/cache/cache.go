package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

// Events receives cache activity for observability. Implementations must
// be safe for concurrent use.
type Events interface {
	RecordCacheEvent(event string)
}

// FingerprintCache maps request fingerprints to pipeline results and
// coordinates duplicate concurrent requests: for one fingerprint at most
// one computation runs, and every concurrent caller observes its outcome.
// The backing store is pluggable; the coordination is always in-process.
type FingerprintCache struct {
	store  ports.ResultStore
	ttl    time.Duration
	events Events

	group singleflight.Group
}

func New(store ports.ResultStore, ttl time.Duration, events Events) *FingerprintCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &FingerprintCache{
		store:  store,
		ttl:    ttl,
		events: events,
	}
}

// Lookup is a non-blocking read. A backing store failure degrades to a
// miss: the pipeline recomputes rather than failing the request.
func (c *FingerprintCache) Lookup(ctx context.Context, fingerprint string) *domain.PipelineResult {
	result, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		slog.Warn("cache_lookup_failed", "fingerprint", fingerprint, "error", err)
		c.record("error")
		return nil
	}
	if result == nil {
		c.record("miss")
		return nil
	}
	c.record("hit")
	return result
}

// ComputeOrJoin runs compute unless a computation for the same
// fingerprint is already in flight, in which case the caller suspends and
// receives that computation's outcome. Cacheable results are stored
// before the in-flight registration clears, so a fresh request arriving
// right after completion reads the cache instead of recomputing.
// Failures, including cancellation of the executing caller, wake every
// waiter with the same error. The second return value reports whether
// this caller joined another caller's computation.
func (c *FingerprintCache) ComputeOrJoin(
	ctx context.Context,
	fingerprint string,
	compute func(context.Context) (domain.PipelineResult, error),
) (domain.PipelineResult, bool, error) {
	value, err, shared := c.group.Do(fingerprint, func() (interface{}, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if result.Cacheable() {
			if storeErr := c.store.Set(ctx, fingerprint, result, c.ttl); storeErr != nil {
				slog.Warn("cache_store_failed", "fingerprint", fingerprint, "error", storeErr)
			} else {
				c.record("store")
			}
		}
		return result, nil
	})
	if shared {
		c.record("join")
	}
	if err != nil {
		return domain.PipelineResult{}, shared, err
	}
	return value.(domain.PipelineResult), shared, nil
}

// Invalidate removes a cached entry and forgets any in-flight
// registration so the next request recomputes.
func (c *FingerprintCache) Invalidate(ctx context.Context, fingerprint string) error {
	c.group.Forget(fingerprint)
	if err := c.store.Delete(ctx, fingerprint); err != nil {
		return err
	}
	c.record("invalidate")
	return nil
}

func (c *FingerprintCache) record(event string) {
	if c.events != nil {
		c.events.RecordCacheEvent(event)
	}
}
