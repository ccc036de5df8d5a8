// Package kafka consumes record-ingestion events.  When an upstream
// pipeline lands a new historical record, a message on the ingestion topic
// tells the worker to embed the record and upsert it into the vector index
// without waiting for the periodic reindex pass.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// reader is the kafka-go subset in use; tests substitute a fake.
type reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config holds consumer connection parameters.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	// AutoOffsetReset is "earliest" or "latest".
	AutoOffsetReset string
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

func (c *Config) applyDefaults() {
	if c.Topic == "" {
		c.Topic = "portcost.records.ingested"
	}
	if c.GroupID == "" {
		c.GroupID = "portcost-worker"
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "latest"
	}
	if c.MinBytes == 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxWait == 0 {
		c.MaxWait = 3 * time.Second
	}
}

func (c Config) startOffset() int64 {
	if c.AutoOffsetReset == "earliest" {
		return kafkago.FirstOffset
	}
	return kafkago.LastOffset
}

// RecordIngestedEvent is the payload on the ingestion topic.
type RecordIngestedEvent struct {
	RecordID string `json:"record_id"`
	Port     string `json:"port"`
}

// Handler processes one ingestion event.  A non-nil error leaves the
// message uncommitted so it is redelivered.
type Handler func(ctx context.Context, event RecordIngestedEvent) error

// Consumer runs a fetch-handle-commit loop over the ingestion topic.
type Consumer struct {
	reader  reader
	handler Handler
	logger  logging.Logger
}

// newReader is swappable for tests.
var newReader = func(cfg Config) reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: cfg.startOffset(),
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
	})
}

// NewConsumer builds a Consumer for the ingestion topic.
func NewConsumer(cfg Config, handler Handler, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka: at least one broker is required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "kafka: handler is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cfg.applyDefaults()

	return &Consumer{
		reader:  newReader(cfg),
		handler: handler,
		logger:  logger.Named("kafka"),
	}, nil
}

// Run consumes until ctx is canceled.  Malformed payloads are committed
// and skipped; handler failures leave the offset uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "kafka fetch failed")
		}

		var event RecordIngestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("skipping malformed ingestion event",
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "kafka commit failed")
			}
			continue
		}

		if err := c.handler(ctx, event); err != nil {
			c.logger.Error("ingestion event handler failed",
				logging.String("record_id", event.RecordID),
				logging.Err(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "kafka commit failed")
		}
		c.logger.Debug("ingestion event processed",
			logging.String("record_id", event.RecordID),
			logging.String("port", event.Port))
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
