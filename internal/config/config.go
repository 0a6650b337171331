package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the wardrobe services.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Vision    VisionConfig
	Transform TransformConfig
	Trimmer   TrimmerConfig
	Pipeline  PipelineConfig
	Sweeper   SweeperConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type QueueConfig struct {
	URL         string
	MaxAttempts int
	Prefetch    int
}

type VisionConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type TransformConfig struct {
	BaseURL string
	Timeout time.Duration
}

type TrimmerConfig struct {
	BaseURL string
	Port    int
	Timeout time.Duration
}

// PipelineConfig carries the ingestion tunables. The duplicate threshold
// and trim constants are empirically chosen; they are configuration, not
// derived values.
type PipelineConfig struct {
	DuplicateThreshold int
	AlphaFloor         int
	PaddingPercent     float64
	PaddingMinPx       int
	MinCropPx          int
	BatchConcurrency   int
}

type SweeperConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("WARDROBE_PORT", 8080),
			Env:  envString("WARDROBE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "wardrobe"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Queue: QueueConfig{
			URL:         os.Getenv("AMQP_URL"),
			MaxAttempts: envInt("QUEUE_MAX_ATTEMPTS", 3),
			Prefetch:    envInt("QUEUE_PREFETCH", 5),
		},
		Vision: VisionConfig{
			Provider:         envString("VISION_PROVIDER", "anthropic"),
			InferenceTimeout: envDuration("VISION_INFERENCE_TIMEOUT", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			},
		},
		Transform: TransformConfig{
			BaseURL: os.Getenv("TRANSFORM_BASE_URL"),
			Timeout: envDuration("TRANSFORM_TIMEOUT", 60*time.Second),
		},
		Trimmer: TrimmerConfig{
			BaseURL: envString("TRIMMER_BASE_URL", "http://localhost:8081"),
			Port:    envInt("TRIMMER_PORT", 8081),
			Timeout: envDuration("TRIMMER_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			DuplicateThreshold: envInt("DUPLICATE_THRESHOLD_BITS", 10),
			AlphaFloor:         envInt("TRIM_ALPHA_FLOOR", 10),
			PaddingPercent:     envFloat("TRIM_PADDING_PERCENT", 0.05),
			PaddingMinPx:       envInt("TRIM_PADDING_MIN_PX", 5),
			MinCropPx:          envInt("TRIM_MIN_CROP_PX", 300),
			BatchConcurrency:   envInt("BATCH_CONCURRENCY", 6),
		},
		Sweeper: SweeperConfig{
			Interval: envDuration("SWEEP_INTERVAL", time.Hour),
			MaxAge:   envDuration("SWEEP_MAX_AGE", 4*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("MINIO_ENDPOINT is required")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}

	if c.Queue.URL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1, got %d", c.Queue.MaxAttempts)
	}

	if !validProviders[c.Vision.Provider] {
		return fmt.Errorf("VISION_PROVIDER must be one of openai, anthropic, mock; got %q", c.Vision.Provider)
	}
	if c.Vision.Provider == "openai" && c.Vision.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when VISION_PROVIDER is openai")
	}
	if c.Vision.Provider == "anthropic" && c.Vision.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when VISION_PROVIDER is anthropic")
	}

	if c.Transform.BaseURL == "" {
		return fmt.Errorf("TRANSFORM_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Transform.BaseURL, "http://") && !strings.HasPrefix(c.Transform.BaseURL, "https://") {
		return fmt.Errorf("TRANSFORM_BASE_URL must start with http:// or https://, got %q", c.Transform.BaseURL)
	}

	if c.Pipeline.DuplicateThreshold < 0 || c.Pipeline.DuplicateThreshold > 64 {
		return fmt.Errorf("DUPLICATE_THRESHOLD_BITS must be between 0 and 64, got %d", c.Pipeline.DuplicateThreshold)
	}
	if c.Pipeline.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.Pipeline.BatchConcurrency)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
