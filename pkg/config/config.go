// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, OpenAI, Pipeline, Market, Postgres, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Market   MarketConfig   `yaml:"market"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. WriteTimeout defaults to zero
// because the progress endpoint streams server-sent events over long-lived
// responses.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// OpenAIConfig holds the language-model service endpoint, credentials, and
// the model tier used for each task class.
type OpenAIConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	APIKey         string        `yaml:"apiKey"`
	FastModel      string        `yaml:"fastModel"`
	StrongModel    string        `yaml:"strongModel"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// PipelineConfig controls document chunking thresholds and the lifecycle of
// in-memory pipeline state.
type PipelineConfig struct {
	MaxChunkTokens int           `yaml:"maxChunkTokens"`
	ChunkThreshold int           `yaml:"chunkThreshold"`
	PendingTTL     time.Duration `yaml:"pendingTtl"`
	ProgressTTL    time.Duration `yaml:"progressTtl"`
}

// MarketConfig holds the market-data endpoint, the quote cache TTL, and the
// fixed company watchlist.
type MarketConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	CacheTTL  time.Duration `yaml:"cacheTtl"`
	Watchlist []Company     `yaml:"watchlist"`
}

// Company is one watchlist entry.
type Company struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

// PostgresConfig holds PostgreSQL connection parameters for report storage.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the quote cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds the analytics event stream settings. An empty broker
// list disables event publishing entirely.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether event publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0,
			ShutdownTimeout: 15 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			FastModel:      "gpt-3.5-turbo",
			StrongModel:    "gpt-4",
			EmbeddingModel: "text-embedding-3-small",
			RequestTimeout: 0,
		},
		Pipeline: PipelineConfig{
			MaxChunkTokens: 2000,
			ChunkThreshold: 3000,
			PendingTTL:     30 * time.Minute,
			ProgressTTL:    5 * time.Minute,
		},
		Market: MarketConfig{
			BaseURL:  "https://query1.finance.yahoo.com",
			CacheTTL: 300 * time.Second,
			Watchlist: []Company{
				{Symbol: "NVDA", Name: "NVIDIA"},
				{Symbol: "GOOGL", Name: "Alphabet"},
				{Symbol: "MSFT", Name: "Microsoft"},
				{Symbol: "META", Name: "Meta"},
				{Symbol: "AMD", Name: "AMD"},
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "inference",
			User:            "inference",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers: nil,
			Topic:   "research-events",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{
				"http://localhost:3000",
				"https://inference-ai.vercel.app",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads INF_* environment variables and overrides the
// corresponding config fields. The OpenAI key also falls back to the
// conventional OPENAI_API_KEY variable.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INF_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("INF_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("INF_OPENAI_FAST_MODEL"); v != "" {
		cfg.OpenAI.FastModel = v
	}
	if v := os.Getenv("INF_OPENAI_STRONG_MODEL"); v != "" {
		cfg.OpenAI.StrongModel = v
	}
	if v := os.Getenv("INF_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("INF_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("INF_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("INF_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("INF_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("INF_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("INF_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("INF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("INF_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("INF_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("INF_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("INF_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INF_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("INF_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
