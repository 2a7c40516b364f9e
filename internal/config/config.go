package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice transcriber service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080" validate:"required"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""` // Empty disables the gRPC health server

	// Tencent Cloud ASR configuration
	TencentSecretID    string `envconfig:"TENCENT_SECRET_ID" required:"true"`
	TencentSecretKey   string `envconfig:"TENCENT_SECRET_KEY" required:"true"`
	TencentASRRegion   string `envconfig:"TENCENT_ASR_REGION" default:"ap-guangzhou" validate:"required"`
	TencentASREndpoint string `envconfig:"TENCENT_ASR_ENDPOINT" default:"asr.tencentcloudapi.com" validate:"required"`
	ASREngineType      string `envconfig:"ASR_ENGINE_TYPE" default:"16k_zh" validate:"oneof=8k_zh 8k_en 16k_zh 16k_zh-PY 16k_zh_medical 16k_en 16k_yue 16k_ja 16k_ko 16k_vi 16k_ms 16k_id 16k_fil 16k_th 16k_pt 16k_tr 16k_ar 16k_es 16k_hi 16k_fr 16k_de 16k_zh_dialect"`
	ASRPollInterval    int    `envconfig:"ASR_POLL_INTERVAL_MS" default:"618" validate:"gt=0"` // milliseconds between task status queries
	ASRTaskMaxWait     int    `envconfig:"ASR_TASK_MAX_WAIT" default:"1800" validate:"gt=0"`   // seconds before a task is considered stalled

	// Duration probing
	FFmpegPath   string `envconfig:"FFMPEG_PATH" default:"ffmpeg" validate:"required"`
	ProbeTimeout int    `envconfig:"PROBE_TIMEOUT" default:"60" validate:"gt=0"` // seconds

	// Outbound HTTP (Discord attachments, OneBot API)
	HTTPFetchTimeout int `envconfig:"HTTP_FETCH_TIMEOUT" default:"30" validate:"gt=0"` // seconds

	// OneBot adapter. An empty API URL disables the onebot platform.
	OneBotAPIURL      string `envconfig:"ONEBOT_API_URL" default:"" validate:"omitempty,url"`
	OneBotWSURL       string `envconfig:"ONEBOT_WS_URL" default:"" validate:"omitempty,url"`
	OneBotAccessToken string `envconfig:"ONEBOT_ACCESS_TOKEN" default:""`
	AutoRecognize     bool   `envconfig:"AUTO_RECOGNIZE" default:"false"` // Reply to every OneBot voice message with its transcript

	// Localization of caller-visible strings
	Locale string `envconfig:"LOCALE" default:"zh" validate:"oneof=zh en"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5" validate:"gt=0"` // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"`              // Seconds before attempting recovery
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"0" validate:"gte=0"`     // 0 reconnects until shutdown
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`                        // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints that envconfig cannot express
func (c *Config) Validate() error {
	if c.TencentSecretID == "" || c.TencentSecretKey == "" {
		return fmt.Errorf("TENCENT_SECRET_ID and TENCENT_SECRET_KEY are required")
	}
	if c.AutoRecognize && (c.OneBotWSURL == "" || c.OneBotAPIURL == "") {
		return fmt.Errorf("AUTO_RECOGNIZE requires ONEBOT_WS_URL and ONEBOT_API_URL")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PollInterval is the fixed delay between task status queries
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ASRPollInterval) * time.Millisecond
}

// TaskMaxWait bounds how long an asynchronous task is polled
func (c *Config) TaskMaxWait() time.Duration {
	return time.Duration(c.ASRTaskMaxWait) * time.Second
}

// ProbeDeadline bounds a single ffmpeg run
func (c *Config) ProbeDeadline() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

// FetchTimeout bounds outbound HTTP calls
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTPFetchTimeout) * time.Second
}
