package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig  `toml:"logging"`
	Crawler     CrawlerConfig  `toml:"crawler"`
	Chunker     ChunkerConfig  `toml:"chunker"`
	Quality     QualityConfig  `toml:"quality"`
	Vault       VaultConfig    `toml:"vault"`
	Rollback    RollbackConfig `toml:"rollback"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Vector      VectorConfig   `toml:"vector"`
	Sources     SourcesConfig  `toml:"sources"`
	Output      OutputConfig   `toml:"output"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// CrawlerConfig contains fetch engine settings. Per-source overrides of
// ConcurrentLimit and the delay range live in the source definitions file.
type CrawlerConfig struct {
	UserAgentRotation  bool          `toml:"user_agent_rotation"`
	ConcurrentLimit    int           `toml:"concurrent_limit" validate:"gte=1"`
	MinDelay           time.Duration `toml:"min_delay"`
	MaxDelay           time.Duration `toml:"max_delay"`
	RequestTimeout     time.Duration `toml:"request_timeout" validate:"gt=0"`
	MaxRetries         int           `toml:"max_retries" validate:"gte=0"`
	MaxRetryDelay      time.Duration `toml:"max_retry_delay"`
	RateLimitCooldown  time.Duration `toml:"rate_limit_cooldown"`
	SmartJumpThreshold int           `toml:"smart_jump_threshold" validate:"gte=1"`
	BatchSize          int           `toml:"batch_size" validate:"gte=1"`
	// TimeoutAsNotFound classifies request timeouts as NOT_FOUND rather than
	// BLOCKED. Speeds up sweeps over dense invalid ID ranges; may mask genuine
	// failures on slow networks.
	TimeoutAsNotFound bool   `toml:"timeout_as_not_found"`
	Schedule          string `toml:"schedule"` // optional cron expression for periodic auto-crawl
	ScheduleCount     int    `toml:"schedule_count"`
}

type ChunkerConfig struct {
	TargetLength          int `toml:"target_length" validate:"gte=1"`
	MinLength             int `toml:"min_length" validate:"gte=1"`
	ShortArticleThreshold int `toml:"short_article_threshold" validate:"gte=1"`
	SummaryMaxLength      int `toml:"summary_max_length" validate:"gte=1"`
}

type QualityConfig struct {
	MinBodyLength int     `toml:"min_body_length" validate:"gte=1"`
	MaxHTMLRatio  float64 `toml:"max_html_ratio" validate:"gte=0,lte=1"`
	CJKCheck      bool    `toml:"cjk_check"`
	MinCJKRatio   float64 `toml:"min_cjk_ratio" validate:"gte=0,lte=1"`
	BufferPath    string  `toml:"buffer_path"`
}

type VaultConfig struct {
	Path             string `toml:"path"`
	WALMode          bool   `toml:"wal_mode"`
	CacheSizeMB      int    `toml:"cache_size_mb"`
	BusyTimeoutMS    int    `toml:"busy_timeout_ms"`
	CompressionLevel int    `toml:"compression_level" validate:"gte=1,lte=9"`
	ShortCompression int    `toml:"short_compression" validate:"gte=1,lte=9"`
	LongCompression  int    `toml:"long_compression" validate:"gte=1,lte=9"`
	ShortThreshold   int    `toml:"short_threshold" validate:"gte=1"`
	LongThreshold    int    `toml:"long_threshold" validate:"gte=1"`
}

type RollbackConfig struct {
	Path string `toml:"path"`
}

type PipelineConfig struct {
	CheckpointInterval int `toml:"checkpoint_interval" validate:"gte=1"`
}

type VectorConfig struct {
	// Enabled turns on the Map handoff: indexed chunks are embedded and
	// upserted to Qdrant as the pipeline runs.
	Enabled     bool   `toml:"enabled"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Collection  string `toml:"collection"`
	UseTLS      bool   `toml:"use_tls"`
	EmbedderURL string `toml:"embedder_url"`
}

// SourcesConfig points at the source definitions file (YAML).
type SourcesConfig struct {
	Path string `toml:"path"`
}

// OutputConfig controls where the crawler writes its TSV and URL logs.
type OutputConfig struct {
	Dir string `toml:"dir"`
}

// DateNavConfig holds binary-search bounds for the date navigator.
// Technical parameters, not exposed in gazette.toml.
type DateNavConfig struct {
	MaxSkipAttempts     int
	MaxSearchIterations int
	SearchToleranceDays int
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			UserAgentRotation:  true,
			ConcurrentLimit:    3,
			MinDelay:           500 * time.Millisecond,
			MaxDelay:           2 * time.Second,
			RequestTimeout:     30 * time.Second,
			MaxRetries:         3,
			MaxRetryDelay:      30 * time.Second,
			RateLimitCooldown:  60 * time.Second,
			SmartJumpThreshold: 100,
			BatchSize:          10,
			TimeoutAsNotFound:  true,
			Schedule:           "", // disabled unless set
			ScheduleCount:      50,
		},
		Chunker: ChunkerConfig{
			TargetLength:          500,
			MinLength:             100,
			ShortArticleThreshold: 300,
			SummaryMaxLength:      200,
		},
		Quality: QualityConfig{
			MinBodyLength: 50,
			MaxHTMLRatio:  0.05,
			CJKCheck:      true,
			MinCJKRatio:   0.3,
			BufferPath:    "./data/quality/buffered.jsonl",
		},
		Vault: VaultConfig{
			Path:             "./data/vault/vault.db",
			WALMode:          true,
			CacheSizeMB:      64,
			BusyTimeoutMS:    5000,
			CompressionLevel: 6,
			ShortCompression: 1,
			LongCompression:  9,
			ShortThreshold:   500,
			LongThreshold:    5000,
		},
		Rollback: RollbackConfig{
			Path: "./data/indexing/rollback.db",
		},
		Pipeline: PipelineConfig{
			CheckpointInterval: 10,
		},
		Vector: VectorConfig{
			Enabled:     false,
			Host:        "localhost",
			Port:        6334,
			Collection:  "gazette_chunks",
			EmbedderURL: "http://localhost:8091/embed",
		},
		Sources: SourcesConfig{
			Path: "./sources.yaml",
		},
		Output: OutputConfig{
			Dir: "./data/crawls",
		},
	}
}

// NewDefaultDateNavConfig returns the date navigator search bounds.
func NewDefaultDateNavConfig() DateNavConfig {
	return DateNavConfig{
		MaxSkipAttempts:     5,
		MaxSearchIterations: 50,
		SearchToleranceDays: 1,
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GAZETTE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("GAZETTE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("GAZETTE_VAULT_PATH"); path != "" {
		config.Vault.Path = path
	}
	if path := os.Getenv("GAZETTE_ROLLBACK_PATH"); path != "" {
		config.Rollback.Path = path
	}
	if path := os.Getenv("GAZETTE_SOURCES_PATH"); path != "" {
		config.Sources.Path = path
	}
	if dir := os.Getenv("GAZETTE_OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}
	if host := os.Getenv("GAZETTE_QDRANT_HOST"); host != "" {
		config.Vector.Host = host
	}
	if port := os.Getenv("GAZETTE_QDRANT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Vector.Port = p
		}
	}
	if url := os.Getenv("GAZETTE_EMBEDDER_URL"); url != "" {
		config.Vector.EmbedderURL = url
	}
}
