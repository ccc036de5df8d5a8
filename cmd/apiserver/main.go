// Command apiserver runs the estimation API: it assembles the engine with
// its upstream adapters and serves the HTTP surface until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harborintel/portcost/internal/application/quotation"
	"github.com/harborintel/portcost/internal/config"
	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/database/postgres"
	"github.com/harborintel/portcost/internal/infrastructure/database/postgres/repositories"
	"github.com/harborintel/portcost/internal/infrastructure/database/redis"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/prometheus"
	"github.com/harborintel/portcost/internal/infrastructure/search/milvus"
	"github.com/harborintel/portcost/internal/infrastructure/storage/minio"
	"github.com/harborintel/portcost/internal/intelligence/genai"
	httpserver "github.com/harborintel/portcost/internal/interfaces/http"
	"github.com/harborintel/portcost/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
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
	logger.Info("starting portcost api server", logging.Int("port", cfg.Server.Port))

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "portcost",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Historical record store.
	pgCfg := postgres.Config{
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
	}
	if cfg.Database.MigrationPath != "" {
		if err := postgres.NewMigrator(cfg.Database.MigrationPath, pgCfg, logger).Up(); err != nil {
			return err
		}
	}
	pool, err := postgres.NewPool(ctx, pgCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := repositories.NewRecordRepository(pool, cfg.Database.QueryTimeout, logger)

	// Estimate cache.
	redisClient, err := redis.NewClient(redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		DefaultTTL:   cfg.Redis.DefaultTTL,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	}, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cache := redis.NewEstimateCache(redisClient, cfg.Engine.CacheTTL, logger)

	// Similarity index.
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
	index := milvus.NewIndex(milvusClient)

	// Embedding and narrative provider.
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

	// Narrative step, optional.  Supporting documents come from object
	// storage when an endpoint is configured.
	var narrator *quotation.Narrator
	if cfg.Engine.NarrativeEnabled {
		if cfg.MinIO.Endpoint != "" {
			docs, err := minio.NewClient(minio.Config{
				Endpoint:  cfg.MinIO.Endpoint,
				AccessKey: cfg.MinIO.AccessKey,
				SecretKey: cfg.MinIO.SecretKey,
				Bucket:    cfg.MinIO.Bucket,
				UseSSL:    cfg.MinIO.UseSSL,
			}, logger)
			if err != nil {
				return err
			}
			narrator = quotation.NewNarrator(genaiClient, docs, cfg.GenAI.GenerateTimeout, logger)
		} else {
			narrator = quotation.NewNarrator(genaiClient, nil, cfg.GenAI.GenerateTimeout, logger)
		}
	}

	// Fallback sample, refreshed in-process.
	sample := quotation.NewFallbackSample(store, cfg.Worker.SampleLimit, metrics, logger)
	go func() {
		if err := sample.Run(ctx, cfg.Worker.SampleRefreshInterval); err != nil && ctx.Err() == nil {
			logger.Error("fallback sample refresher stopped", logging.Err(err))
		}
	}()

	aggCfg := estimate.DefaultAggregatorConfig()
	aggCfg.Currency = cfg.Engine.Currency
	aggCfg.QuotationTopItems = cfg.Engine.QuotationTopItems

	engine, err := quotation.NewEngine(
		quotation.Config{
			TopK:              cfg.Engine.TopK,
			EmbedRetries:      cfg.Engine.EmbedRetries,
			IndexRetries:      cfg.Engine.IndexRetries,
			RetryBackoff:      cfg.Engine.RetryBackoff,
			StoreTimeout:      cfg.Engine.StoreTimeout,
			EmbedModelVersion: cfg.GenAI.EmbedModel,
			NarrativeEnabled:  cfg.Engine.NarrativeEnabled,
		},
		genaiClient, index, store,
		estimate.NewAggregator(aggCfg),
		narrator, sample, cache, metrics, logger,
	)
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		EstimateHandler: handlers.NewEstimateHandler(engine, logger),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": pool.Ping,
			"redis":    redisClient.Ping,
			"milvus":   milvusClient.Ping,
		}, logger),
		MetricsCollector: collector,
		Metrics:          metrics,
		Logger:           logger,
	})
	srv := httpserver.NewServer("", cfg.Server.Port, router, logger)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}
