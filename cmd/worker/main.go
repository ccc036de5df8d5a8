// Command worker keeps the estimation service's shared state fresh: it
// consumes record-ingestion events to index new history into the vector
// index, and runs a periodic reconciliation pass over recent records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harborintel/portcost/internal/config"
	"github.com/harborintel/portcost/internal/infrastructure/database/postgres"
	"github.com/harborintel/portcost/internal/infrastructure/database/postgres/repositories"
	"github.com/harborintel/portcost/internal/infrastructure/messaging/kafka"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/internal/infrastructure/search/milvus"
	"github.com/harborintel/portcost/internal/intelligence/genai"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		return err
	}
	logger.Info("starting portcost worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := repositories.NewRecordRepository(pool, cfg.Database.QueryTimeout, logger)

	milvusClient, err := milvus.NewClient(milvus.Config{
		Addr:           cfg.Milvus.Addr,
		DBName:         cfg.Milvus.DBName,
		Collection:     cfg.Milvus.Collection,
		EmbeddingDim:   cfg.Milvus.EmbeddingDim,
		MetricType:     cfg.Milvus.MetricType,
		DefaultTopK:    cfg.Milvus.DefaultTopK,
		SearchTimeout:  cfg.Milvus.SearchTimeout,
		ConnectTimeout: cfg.Milvus.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		return err
	}

	genaiClient, err := genai.NewClient(genai.Config{
		BaseURL:         cfg.GenAI.BaseURL,
		APIKey:          cfg.GenAI.APIKey,
		EmbedModel:      cfg.GenAI.EmbedModel,
		EmbedDim:        cfg.GenAI.EmbedDim,
		EmbedTimeout:    cfg.GenAI.EmbedTimeout,
		GenerateModel:   cfg.GenAI.GenerateModel,
		GenerateTimeout: cfg.GenAI.GenerateTimeout,
		MaxOutputTokens: cfg.GenAI.MaxOutputTokens,
		Temperature:     cfg.GenAI.Temperature,
	}, logger)
	if err != nil {
		return err
	}

	indexer := NewIndexer(store, genaiClient, milvusClient, logger)

	g, ctx := errgroup.WithContext(ctx)

	// Event-driven indexing.
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(kafka.Config{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			GroupID:         cfg.Kafka.GroupID,
			AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		}, indexer.HandleIngested, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(ctx) })
	} else {
		logger.Warn("no kafka brokers configured, event-driven indexing disabled")
	}

	// Periodic reconciliation.
	g.Go(func() error {
		return runReindexLoop(ctx, indexer, cfg.Worker.SampleRefreshInterval, cfg.Worker.SampleLimit, logger)
	})

	return g.Wait()
}

func runReindexLoop(ctx context.Context, indexer *Indexer, interval time.Duration, limit int, logger logging.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := indexer.ReindexRecent(ctx, limit); err != nil && ctx.Err() == nil {
			logger.Warn("reindex pass failed, retrying next tick", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
