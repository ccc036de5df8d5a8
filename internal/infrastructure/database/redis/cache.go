package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// Get returns the raw value for a key.  A missing key is
// errors.ErrCodeNotFound; transport failures are ErrCodeCacheError.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err == goredis.Nil {
		return "", errors.NotFound("cache key not found")
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCacheError, "cache read failed")
	}
	return val, nil
}

// Set writes a value with the given TTL.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

// Delete removes a key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache delete failed")
	}
	return nil
}

// kv is the store subset the estimate cache needs; tests substitute a fake.
type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// EstimateCache caches synthesized estimates by request fingerprint.  Cache
// failures never fail a request: a broken cache degrades to computing every
// time.
type EstimateCache struct {
	store  kv
	ttl    time.Duration
	group  singleflight.Group
	logger logging.Logger
}

// NewEstimateCache builds a cache with the given base TTL.
func NewEstimateCache(store kv, ttl time.Duration, logger logging.Logger) *EstimateCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EstimateCache{store: store, ttl: ttl, logger: logger.Named("estimate_cache")}
}

// Get returns a cached estimate for the fingerprint, or false.
func (c *EstimateCache) Get(ctx context.Context, fingerprint string) (*estimate.SynthesizedEstimate, bool) {
	raw, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeNotFound) {
			c.logger.Warn("cache read failed", logging.Err(err))
		}
		return nil, false
	}

	var est estimate.SynthesizedEstimate
	if err := json.Unmarshal([]byte(raw), &est); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", logging.Err(err))
		return nil, false
	}
	return &est, true
}

// Put stores an estimate.  The TTL is jittered ±10% so entries created in a
// burst do not expire together.
func (c *EstimateCache) Put(ctx context.Context, fingerprint string, est *estimate.SynthesizedEstimate) {
	raw, err := json.Marshal(est)
	if err != nil {
		c.logger.Warn("estimate marshal failed", logging.Err(err))
		return
	}
	if err := c.store.Set(ctx, fingerprint, string(raw), jitterTTL(c.ttl)); err != nil {
		c.logger.Warn("cache write failed", logging.Err(err))
	}
}

// GetOrCompute returns the cached estimate for fingerprint, or runs compute
// exactly once across all concurrent callers with the same fingerprint.
// The computation outlives any single caller's cancellation so that other
// waiters still get its result; the canceled caller itself receives
// ctx.Err() and its result is discarded.
func (c *EstimateCache) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	compute func(ctx context.Context) (*estimate.SynthesizedEstimate, error),
) (*estimate.SynthesizedEstimate, bool, error) {
	if est, ok := c.Get(ctx, fingerprint); ok {
		return est, true, nil
	}

	ch := c.group.DoChan(fingerprint, func() (interface{}, error) {
		est, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Put(context.WithoutCancel(ctx), fingerprint, est)
		return est, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*estimate.SynthesizedEstimate), false, nil
	}
}

func jitterTTL(base time.Duration) time.Duration {
	jitter := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(base) * jitter)
}
