// Package redis provides the estimate result cache.  Entries are keyed by
// the request fingerprint and carry a bounded, jittered TTL; a singleflight
// group guarantees at most one underlying computation per fingerprint at a
// time.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// Config holds Redis connection parameters.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DefaultTTL   time.Duration
	KeyPrefix    string
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 15 * time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "portcost:"
	}
}

// Client wraps the go-redis client with process conventions: key prefixing
// and typed unavailability errors.
type Client struct {
	rdb    redis.UniversalClient
	cfg    Config
	logger logging.Logger
}

// NewClient connects and verifies the connection with one ping.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "redis: address is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("redis")

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis connection failed")
	}

	logger.Info("connected", logging.String("addr", cfg.Addr))
	return &Client{rdb: rdb, cfg: cfg, logger: logger}, nil
}

// Ping reports connectivity for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis ping failed")
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) key(k string) string {
	return c.cfg.KeyPrefix + k
}
