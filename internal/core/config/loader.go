package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Breakers.Defaults.FailureThreshold == 0 {
		cfg.Breakers.Defaults.FailureThreshold = 5
	}
	if cfg.Breakers.Defaults.SuccessThreshold == 0 {
		cfg.Breakers.Defaults.SuccessThreshold = 3
	}
	if cfg.Breakers.Defaults.Timeout == 0 {
		cfg.Breakers.Defaults.Timeout = 60 * time.Second
	}
	if cfg.Breakers.Defaults.HalfOpenProbes == 0 {
		cfg.Breakers.Defaults.HalfOpenProbes = 1
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}

	if cfg.Analytics.SpikeThreshold == 0 {
		cfg.Analytics.SpikeThreshold = 10
	}
	if cfg.Analytics.SpikeWindow == 0 {
		cfg.Analytics.SpikeWindow = 60 * time.Second
	}
	if cfg.Analytics.RateThreshold == 0 {
		cfg.Analytics.RateThreshold = 0.05
	}
	if cfg.Analytics.RateWindow == 0 {
		cfg.Analytics.RateWindow = 5 * time.Minute
	}
	if cfg.Analytics.RateMinAttempts == 0 {
		cfg.Analytics.RateMinAttempts = 100
	}
}
