// Package config defines all configuration structures for the portcost
// estimation platform.  No I/O or parsing logic lives here — only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the historical
// record store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the estimate cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MilvusConfig holds Milvus vector-index connection parameters.
type MilvusConfig struct {
	Addr           string        `mapstructure:"addr"`
	DBName         string        `mapstructure:"db_name"`
	Collection     string        `mapstructure:"collection"`
	EmbeddingDim   int           `mapstructure:"embedding_dim"`
	MetricType     string        `mapstructure:"metric_type"` // "L2" | "IP"
	DefaultTopK    int           `mapstructure:"default_top_k"`
	SearchTimeout  time.Duration `mapstructure:"search_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters for
// source-document reads.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig holds consumer parameters for record-ingested events.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	Topic           string        `mapstructure:"topic"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	SessionTimeout  time.Duration `mapstructure:"session_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
}

// GenAIConfig holds parameters for the embedding / narrative provider
// (an OpenAI-compatible HTTP API).
type GenAIConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	EmbedModel       string        `mapstructure:"embed_model"`
	EmbedDim         int           `mapstructure:"embed_dim"`
	EmbedTimeout     time.Duration `mapstructure:"embed_timeout"`
	GenerateModel    string        `mapstructure:"generate_model"`
	GenerateTimeout  time.Duration `mapstructure:"generate_timeout"`
	MaxOutputTokens  int           `mapstructure:"max_output_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
}

// EngineConfig holds quotation-engine tunables.
type EngineConfig struct {
	TopK              int           `mapstructure:"top_k"`
	Currency          string        `mapstructure:"currency"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	EmbedRetries      int           `mapstructure:"embed_retries"`
	IndexRetries      int           `mapstructure:"index_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`
	NarrativeEnabled  bool          `mapstructure:"narrative_enabled"`
	QuotationTopItems int           `mapstructure:"quotation_top_items"`
}

// WorkerConfig holds background-worker execution parameters for the fallback
// sample refresher.
type WorkerConfig struct {
	SampleRefreshInterval time.Duration `mapstructure:"sample_refresh_interval"`
	SampleLimit           int           `mapstructure:"sample_limit"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Milvus   MilvusConfig   `mapstructure:"milvus"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Milvus
	if c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required")
	}
	if c.Milvus.EmbeddingDim < 1 {
		return fmt.Errorf("config: milvus.embedding_dim must be ≥ 1, got %d", c.Milvus.EmbeddingDim)
	}
	switch c.Milvus.MetricType {
	case "L2", "IP":
	default:
		return fmt.Errorf("config: milvus.metric_type %q is invalid; expected L2|IP", c.Milvus.MetricType)
	}

	// GenAI
	if c.GenAI.BaseURL == "" {
		return fmt.Errorf("config: genai.base_url is required")
	}
	if c.GenAI.EmbedDim < 1 {
		return fmt.Errorf("config: genai.embed_dim must be ≥ 1, got %d", c.GenAI.EmbedDim)
	}
	if c.GenAI.EmbedDim != c.Milvus.EmbeddingDim {
		return fmt.Errorf("config: genai.embed_dim %d does not match milvus.embedding_dim %d",
			c.GenAI.EmbedDim, c.Milvus.EmbeddingDim)
	}

	// Engine
	if c.Engine.TopK < 1 {
		return fmt.Errorf("config: engine.top_k must be ≥ 1, got %d", c.Engine.TopK)
	}
	if c.Engine.Currency == "" {
		return fmt.Errorf("config: engine.currency is required")
	}

	// Worker
	if c.Worker.SampleLimit < 1 {
		return fmt.Errorf("config: worker.sample_limit must be ≥ 1, got %d", c.Worker.SampleLimit)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
