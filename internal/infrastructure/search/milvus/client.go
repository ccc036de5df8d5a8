// Package milvus implements the similarity-index contract on top of a
// Milvus vector database.  Historical record vectors live in one collection
// keyed by record id, with the normalized port stored alongside for
// metadata-filtered retrieval.
package milvus

import (
	"context"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// api is the subset of the Milvus SDK client this package uses.  Tests
// substitute a fake; production uses the gRPC client returned by connect.
type api interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Delete(ctx context.Context, collName string, partitionName string, expr string) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

// connect is swappable for tests.
var connect = func(ctx context.Context, cfg client.Config) (api, error) {
	return client.NewClient(ctx, cfg)
}

// Config holds connection and collection parameters.
type Config struct {
	Addr           string
	Username       string
	Password       string
	DBName         string
	Collection     string
	EmbeddingDim   int
	MetricType     string // "L2" | "IP"
	DefaultTopK    int
	SearchTimeout  time.Duration
	ConnectTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "fda_records"
	}
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = 768
	}
	if c.MetricType == "" {
		c.MetricType = "L2"
	}
	if c.DefaultTopK == 0 {
		c.DefaultTopK = 10
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 5 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c Config) metricType() entity.MetricType {
	if c.MetricType == "IP" {
		return entity.IP
	}
	return entity.L2
}

// Client owns the Milvus connection for the process.
type Client struct {
	mc     api
	cfg    Config
	logger logging.Logger
}

// NewClient connects to Milvus within the configured timeout.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus: address is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	mc, err := connect(ctx, client.Config{
		Address:  cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus connection failed")
	}

	logger = logger.Named("milvus")
	logger.Info("connected", logging.String("addr", cfg.Addr), logging.String("collection", cfg.Collection))
	return &Client{mc: mc, cfg: cfg, logger: logger}, nil
}

// Ping reports whether the record collection is reachable, for readiness
// checks.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.mc.HasCollection(ctx, c.cfg.Collection); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus ping failed")
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.mc.Close()
}
