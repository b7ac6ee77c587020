package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Engine configuration (window geometry, batching, answer limits)
	Engine EngineConfig `mapstructure:"engine"`

	// Scorer configuration
	Scorer ScorerConfig `mapstructure:"scorer"`

	// Retriever configuration
	Retriever RetrieverConfig `mapstructure:"retriever"`

	// Embedding configuration (dense retrieval)
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Cache configuration (embeddings and run checkpoints)
	Cache CacheConfig `mapstructure:"cache"`

	// Dataset configuration (batch run inputs)
	Dataset DatasetConfig `mapstructure:"dataset"`

	// Output configuration (batch run artifacts)
	Output OutputConfig `mapstructure:"output"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration (batch run failure notifications)
	Alert AlertConfig `mapstructure:"alert"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EngineConfig holds the answering pipeline configuration
type EngineConfig struct {
	MaxLength       int `mapstructure:"max_length"`
	Stride          int `mapstructure:"stride"`
	BatchSize       int `mapstructure:"batch_size"`
	NBestSize       int `mapstructure:"n_best_size"`
	MaxAnswerLength int `mapstructure:"max_answer_length"`
}

// ScorerConfig holds configuration for the span scoring backend
type ScorerConfig struct {
	Provider   string `mapstructure:"provider"` // http, mock
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"`     // in seconds
	MaxRetries int    `mapstructure:"max_retries"` // retries per scoring batch
}

// RetrieverConfig holds configuration for passage retrieval
type RetrieverConfig struct {
	Provider     string  `mapstructure:"provider"` // bm25, dense, hybrid, static
	TopK         int     `mapstructure:"top_k"`
	K1           float64 `mapstructure:"k1"`
	B            float64 `mapstructure:"b"`
	Delta        float64 `mapstructure:"delta"`
	RankConstant int     `mapstructure:"rank_constant"`
	Workers      int     `mapstructure:"workers"`
	SaveResults  bool    `mapstructure:"save_results"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai, embedeverything, mock
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// CacheConfig holds configuration for the badger store. The cache is active
// when a path is set or in-memory mode is on; checkpoints additionally
// require the checkpoints flag.
type CacheConfig struct {
	Path        string `mapstructure:"path"`
	InMemory    bool   `mapstructure:"in_memory"`
	Checkpoints bool   `mapstructure:"checkpoints"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// Enabled reports whether a cache store should be opened at all.
func (c *CacheConfig) Enabled() bool {
	return c.InMemory || c.Path != ""
}

// DatasetConfig holds the input paths for a batch run
type DatasetConfig struct {
	Corpus     string `mapstructure:"corpus"`
	Questions  string `mapstructure:"questions"`
	Retrievals string `mapstructure:"retrievals"`
}

// OutputConfig holds the artifact paths for a batch run
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	RetrievalsFile string `mapstructure:"retrievals_file"`
}

// TelemetryConfig holds error tracking configuration. An empty path
// disables capture.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Engine defaults
	viper.SetDefault("engine.max_length", 384)
	viper.SetDefault("engine.stride", 128)
	viper.SetDefault("engine.batch_size", 8)
	viper.SetDefault("engine.n_best_size", 20)
	viper.SetDefault("engine.max_answer_length", 30)

	// Scorer defaults
	viper.SetDefault("scorer.provider", "http")
	viper.SetDefault("scorer.endpoint", "http://localhost:8500")
	viper.SetDefault("scorer.timeout", 30)
	viper.SetDefault("scorer.max_retries", 3)

	// Retriever defaults
	viper.SetDefault("retriever.provider", "bm25")
	viper.SetDefault("retriever.top_k", 10)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")

	// Cache defaults
	viper.SetDefault("cache.max_attempts", 3)

	// Output defaults
	viper.SetDefault("output.dir", "./outputs")
	viper.SetDefault("output.retrievals_file", "retrievals.parquet")

	// Alert defaults
	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.smtp_port", 587)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Scorer settings
	if endpoint := os.Getenv("RISPOSTA_SCORER_ENDPOINT"); endpoint != "" {
		config.Scorer.Endpoint = endpoint
	}
	if apiKey := os.Getenv("RISPOSTA_SCORER_API_KEY"); apiKey != "" {
		config.Scorer.APIKey = apiKey
	}

	// Embedding credentials
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	// Server settings
	if host := os.Getenv("RISPOSTA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("RISPOSTA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Run settings
	if dir := os.Getenv("RISPOSTA_OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}
	if path := os.Getenv("RISPOSTA_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}
	if level := os.Getenv("RISPOSTA_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
