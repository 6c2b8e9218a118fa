// Package config loads the application configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/tracing"
)

// Config is the application configuration, one section per subsystem.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Tracing   tracing.Config  `yaml:"tracing"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Insight   InsightConfig   `yaml:"insight"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Address string   `yaml:"address"`  // listen address, e.g. ":8080"
	APIKeys []string `yaml:"api_keys"` // accepted keys for the keyauth middleware
}

// EmbeddingConfig configures the text embedding provider (OpenAI-compatible
// HTTP endpoint). Dimensions fixes the vector size for the whole deployment;
// mixing dimensions is rejected downstream.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_seconds"`
	// RateLimitQPM caps provider calls per minute; zero disables pacing.
	RateLimitQPM int `yaml:"rate_limit_qpm"`
}

// InsightConfig configures the optional LLM narrative layer. Disabled by
// default; scoring never depends on it.
type InsightConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// QdrantConfig configures the vector index.
type QdrantConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
	TimeoutSec int    `yaml:"timeout_seconds"`
}

// MySQLConfig configures the relational metadata store.
type MySQLConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel        string `yaml:"log_level"`
}

// DSN builds the MySQL connection string.
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig configures the cache layer.
type RedisConfig struct {
	Address      string `yaml:"address"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns"`
	DialTimeout  int    `yaml:"dial_timeout_seconds"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	DedupTTLDays int    `yaml:"dedup_ttl_days"` // raw-file MD5 retention
}

// MinIOConfig configures object storage for raw files and parsed text.
type MinIOConfig struct {
	Endpoint         string `yaml:"endpoint"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	UseSSL           bool   `yaml:"use_ssl"`
	Location         string `yaml:"location"`
	OriginalsBucket  string `yaml:"originals_bucket"`
	ParsedTextBucket string `yaml:"parsed_text_bucket"`
}

// RabbitMQConfig configures the async indexing queue.
type RabbitMQConfig struct {
	URL              string `yaml:"url"`
	UploadExchange   string `yaml:"upload_exchange"`
	UploadQueue      string `yaml:"upload_queue"`
	UploadRoutingKey string `yaml:"upload_routing_key"`
	PrefetchCount    int    `yaml:"prefetch_count"`
}

// ScoringConfig holds the composite weights. Weights are configuration, not
// hardcoded business logic; zero values fall back to the validated defaults.
type ScoringConfig struct {
	SemanticWeight   float64 `yaml:"semantic_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight"`
	TitleWeight      float64 `yaml:"title_weight"`
	ExperienceWeight float64 `yaml:"experience_weight"`
}

// RetrievalConfig bounds the candidate pool per ranking call.
type RetrievalConfig struct {
	TopK        int `yaml:"top_k"`
	ResultCount int `yaml:"result_count"`
	// ScoreWorkers bounds the goroutines scoring one candidate batch.
	ScoreWorkers int `yaml:"score_workers"`
}

// LoadConfig reads the file at configPath, falling back to conventional
// locations when empty, then applies env overrides and defaults.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-match", "config.yaml"),
		}
		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("INSIGHT_API_KEY"); v != "" {
		c.Insight.APIKey = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.MySQL.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.MinIO.SecretAccessKey = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "resumes"
	}
	if c.Qdrant.Dimension <= 0 {
		c.Qdrant.Dimension = c.Embedding.Dimensions
	}
	if c.MinIO.OriginalsBucket == "" {
		c.MinIO.OriginalsBucket = "resume-originals"
	}
	if c.MinIO.ParsedTextBucket == "" {
		c.MinIO.ParsedTextBucket = "resume-parsed-text"
	}
	if c.RabbitMQ.UploadExchange == "" {
		c.RabbitMQ.UploadExchange = "resume.events"
	}
	if c.RabbitMQ.UploadQueue == "" {
		c.RabbitMQ.UploadQueue = "resume.uploaded"
	}
	if c.RabbitMQ.UploadRoutingKey == "" {
		c.RabbitMQ.UploadRoutingKey = "resume.uploaded"
	}
	if c.RabbitMQ.PrefetchCount <= 0 {
		c.RabbitMQ.PrefetchCount = 10
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 50
	}
	if c.Retrieval.ResultCount <= 0 {
		c.Retrieval.ResultCount = 20
	}
	if c.Retrieval.ScoreWorkers <= 0 {
		c.Retrieval.ScoreWorkers = 8
	}
}

func (c *Config) validate() error {
	// The embedding dimension is fixed per deployment; the index must agree
	// with the provider or every upsert would be rejected downstream anyway.
	if c.Qdrant.Dimension != c.Embedding.Dimensions {
		return fmt.Errorf("qdrant dimension (%d) does not match embedding dimensions (%d)",
			c.Qdrant.Dimension, c.Embedding.Dimensions)
	}
	if c.Retrieval.ResultCount > c.Retrieval.TopK {
		return fmt.Errorf("result_count (%d) cannot exceed top_k (%d)",
			c.Retrieval.ResultCount, c.Retrieval.TopK)
	}
	return nil
}
