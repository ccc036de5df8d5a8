package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "portcost"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisTTL       = 15 * time.Minute
	DefaultRedisKeyPrefix = "portcost:"

	DefaultMilvusAddr       = "localhost:19530"
	DefaultMilvusCollection = "fda_records"
	DefaultEmbeddingDim     = 768
	DefaultMetricType       = "L2"
	DefaultTopK             = 10

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "portcost-docs"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "portcost-worker"
	DefaultKafkaTopic   = "portcost.records.ingested"

	DefaultGenAIEmbedModel     = "text-embedding-3-small"
	DefaultGenAIGenerateModel  = "gpt-4o-mini"
	DefaultGenAIEmbedTimeout   = 4 * time.Second
	DefaultGenAIGenTimeout     = 45 * time.Second
	DefaultGenAIMaxOutput      = 1024

	DefaultEngineCurrency     = "THB"
	DefaultEngineCacheTTL     = 30 * time.Minute
	DefaultEngineRetryBackoff = 250 * time.Millisecond
	DefaultQuotationTopItems  = 5

	DefaultSampleRefreshInterval = 10 * time.Minute
	DefaultSampleLimit           = 5000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate() so that
// optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = 5 * time.Second
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}

	// Milvus
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = DefaultMilvusCollection
	}
	if cfg.Milvus.EmbeddingDim == 0 {
		cfg.Milvus.EmbeddingDim = DefaultEmbeddingDim
	}
	if cfg.Milvus.MetricType == "" {
		cfg.Milvus.MetricType = DefaultMetricType
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultTopK
	}
	if cfg.Milvus.SearchTimeout == 0 {
		cfg.Milvus.SearchTimeout = 5 * time.Second
	}
	if cfg.Milvus.ConnectTimeout == 0 {
		cfg.Milvus.ConnectTimeout = 10 * time.Second
	}

	// MinIO
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "latest"
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = time.Second
	}

	// GenAI
	if cfg.GenAI.EmbedModel == "" {
		cfg.GenAI.EmbedModel = DefaultGenAIEmbedModel
	}
	if cfg.GenAI.EmbedDim == 0 {
		cfg.GenAI.EmbedDim = cfg.Milvus.EmbeddingDim
	}
	if cfg.GenAI.EmbedTimeout == 0 {
		cfg.GenAI.EmbedTimeout = DefaultGenAIEmbedTimeout
	}
	if cfg.GenAI.GenerateModel == "" {
		cfg.GenAI.GenerateModel = DefaultGenAIGenerateModel
	}
	if cfg.GenAI.GenerateTimeout == 0 {
		cfg.GenAI.GenerateTimeout = DefaultGenAIGenTimeout
	}
	if cfg.GenAI.MaxOutputTokens == 0 {
		cfg.GenAI.MaxOutputTokens = DefaultGenAIMaxOutput
	}

	// Engine
	if cfg.Engine.TopK == 0 {
		cfg.Engine.TopK = DefaultTopK
	}
	if cfg.Engine.Currency == "" {
		cfg.Engine.Currency = DefaultEngineCurrency
	}
	if cfg.Engine.CacheTTL == 0 {
		cfg.Engine.CacheTTL = DefaultEngineCacheTTL
	}
	if cfg.Engine.EmbedRetries == 0 {
		cfg.Engine.EmbedRetries = 1
	}
	if cfg.Engine.IndexRetries == 0 {
		cfg.Engine.IndexRetries = 2
	}
	if cfg.Engine.RetryBackoff == 0 {
		cfg.Engine.RetryBackoff = DefaultEngineRetryBackoff
	}
	if cfg.Engine.StoreTimeout == 0 {
		cfg.Engine.StoreTimeout = 5 * time.Second
	}
	if cfg.Engine.QuotationTopItems == 0 {
		cfg.Engine.QuotationTopItems = DefaultQuotationTopItems
	}

	// Worker
	if cfg.Worker.SampleRefreshInterval == 0 {
		cfg.Worker.SampleRefreshInterval = DefaultSampleRefreshInterval
	}
	if cfg.Worker.SampleLimit == 0 {
		cfg.Worker.SampleLimit = DefaultSampleLimit
	}
	if cfg.Worker.ShutdownTimeout == 0 {
		cfg.Worker.ShutdownTimeout = 10 * time.Second
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
