package config

import (
	"time"

	"github.com/vietddude/vinspect/internal/infra/pdf"
	"github.com/vietddude/vinspect/internal/infra/postgres"
	"github.com/vietddude/vinspect/internal/infra/rediscache"
	"github.com/vietddude/vinspect/internal/infra/sms"
	"github.com/vietddude/vinspect/internal/infra/vin"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
	Database  postgres.Config   `yaml:"database"`
	Redis     rediscache.Config `yaml:"redis"`
	SMS       sms.Config        `yaml:"sms"`
	VIN       vin.Config        `yaml:"vin"`
	PDF       pdf.Config        `yaml:"pdf"`
	Breakers  BreakersConfig    `yaml:"breakers"`
	Retry     RetryConfig       `yaml:"retry"`
	Analytics AnalyticsConfig   `yaml:"analytics"`
	Alerting  AlertingConfig    `yaml:"alerting"`
}

// ServerConfig holds HTTP server settings for the health endpoints.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BreakerConfig holds thresholds for one circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenProbes   int           `yaml:"half_open_probes"`
}

// BreakersConfig holds the default breaker settings plus per-dependency
// overrides keyed by dependency name.
type BreakersConfig struct {
	Defaults  BreakerConfig            `yaml:"defaults"`
	Overrides map[string]BreakerConfig `yaml:"overrides"`
}

// RetryConfig holds retry executor settings.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	NoJitter          bool          `yaml:"no_jitter"`
}

// AnalyticsConfig holds alert rule thresholds.
type AnalyticsConfig struct {
	SpikeThreshold  int           `yaml:"spike_threshold"`
	SpikeWindow     time.Duration `yaml:"spike_window"`
	RateThreshold   float64       `yaml:"rate_threshold"`
	RateWindow      time.Duration `yaml:"rate_window"`
	RateMinAttempts int           `yaml:"rate_min_attempts"`
}

// AlertingConfig holds notification channel settings. A channel with an
// empty endpoint is not registered.
type AlertingConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Pager   PagerConfig   `yaml:"pager"`
	Email   EmailConfig   `yaml:"email"`
}

type WebhookConfig struct {
	URL string `yaml:"url"`
}

type PagerConfig struct {
	URL        string `yaml:"url"`
	RoutingKey string `yaml:"routing_key"`
}

type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}
