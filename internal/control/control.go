package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/vinspect/internal/core/config"
	"github.com/vietddude/vinspect/internal/infra/pdf"
	"github.com/vietddude/vinspect/internal/infra/postgres"
	"github.com/vietddude/vinspect/internal/infra/rediscache"
	"github.com/vietddude/vinspect/internal/infra/sms"
	"github.com/vietddude/vinspect/internal/infra/vin"
	"github.com/vietddude/vinspect/internal/resilience/alerting"
	"github.com/vietddude/vinspect/internal/resilience/analytics"
	"github.com/vietddude/vinspect/internal/resilience/breaker"
	"github.com/vietddude/vinspect/internal/resilience/health"
	"github.com/vietddude/vinspect/internal/resilience/metrics"
	"github.com/vietddude/vinspect/internal/resilience/retry"
)

// Dependency names. One breaker exists per name; the registry creates them
// lazily on first use.
const (
	DepDatabase    = "database"
	DepCache       = "cache"
	DepSMSProvider = "sms-provider"
	DepVINDecoder  = "vin-decoder"
	DepPDFRenderer = "pdf-renderer"
)

// Service wires the resilience subsystem: classifier-driven retry, one
// breaker per dependency, error analytics, alert dispatch, and the health
// server. The CRUD route layer calls the guarded operations in operations.go.
type Service struct {
	cfg config.AppConfig

	sink       *metrics.Prometheus
	engine     *analytics.Engine
	dispatcher *alerting.Dispatcher
	registry   *breaker.Registry

	db    *postgres.DB
	cache *rediscache.Client
	sms   *sms.Client
	vin   *vin.Client
	pdf   *pdf.Client

	healthServer *health.Server
}

// NewService creates the service with all dependencies initialized.
func NewService(cfg config.AppConfig) (*Service, error) {
	sink := metrics.NewPrometheus(nil)

	dispatcher := alerting.NewDispatcher(buildChannels(cfg.Alerting), sink)

	engine := analytics.NewEngine(analytics.Config{
		SpikeThreshold:  cfg.Analytics.SpikeThreshold,
		SpikeWindow:     cfg.Analytics.SpikeWindow,
		RateThreshold:   cfg.Analytics.RateThreshold,
		RateWindow:      cfg.Analytics.RateWindow,
		RateMinAttempts: cfg.Analytics.RateMinAttempts,
	}, sink, dispatcher)

	retryOpts := retry.Options{
		MaxRetries:        cfg.Retry.MaxRetries,
		BaseDelay:         cfg.Retry.BaseDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		Jitter:            !cfg.Retry.NoJitter,
	}

	overrides := breakerOverrides(cfg.Breakers.Overrides, retryOpts)
	if _, ok := overrides[DepSMSProvider]; !ok {
		// Message delivery is not idempotent; the provider call is never
		// retried, only gated.
		smsCfg := breakerConfig(cfg.Breakers.Defaults, retryOpts)
		smsCfg.Retry.MaxRetries = 0
		if overrides == nil {
			overrides = make(map[string]breaker.Config, 1)
		}
		overrides[DepSMSProvider] = smsCfg
	}

	registry := breaker.NewRegistry(
		breakerConfig(cfg.Breakers.Defaults, retryOpts),
		overrides,
		sink,
		engine,
	)

	s := &Service{
		cfg:        cfg,
		sink:       sink,
		engine:     engine,
		dispatcher: dispatcher,
		registry:   registry,
		sms:        sms.New(cfg.SMS),
		vin:        vin.New(cfg.VIN),
		pdf:        pdf.New(cfg.PDF),
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		s.db = db
		slog.Info("Database pool configured")
	} else {
		slog.Warn("No database configured, database operations disabled")
	}

	if cfg.Redis.URL != "" {
		cache, err := rediscache.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		s.cache = cache
		slog.Info("Cache client configured")
	} else {
		slog.Warn("No redis configured, cache operations disabled")
	}

	monitor := health.NewMonitor(registry, engine)
	s.healthServer = health.NewServer(monitor, sink.Registry(), cfg.Server.Port)

	return s, nil
}

// buildChannels registers only the channels that are configured.
func buildChannels(cfg config.AlertingConfig) []alerting.Channel {
	var channels []alerting.Channel
	if cfg.Webhook.URL != "" {
		channels = append(channels, alerting.NewWebhookChannel("chat-webhook", cfg.Webhook.URL))
	}
	if cfg.Pager.URL != "" && cfg.Pager.RoutingKey != "" {
		channels = append(channels, alerting.NewPagerChannel("pager", cfg.Pager.URL, cfg.Pager.RoutingKey))
	}
	if cfg.Email.Host != "" && len(cfg.Email.To) > 0 {
		channels = append(channels, alerting.NewEmailChannel(
			"email", cfg.Email.Host, cfg.Email.Port,
			cfg.Email.Username, cfg.Email.Password,
			cfg.Email.From, cfg.Email.To,
		))
	}
	return channels
}

func breakerConfig(bc config.BreakerConfig, retryOpts retry.Options) breaker.Config {
	return breaker.Config{
		FailureThreshold: bc.FailureThreshold,
		SuccessThreshold: bc.SuccessThreshold,
		Timeout:          bc.Timeout,
		HalfOpenProbes:   bc.HalfOpenProbes,
		Retry:            retryOpts,
	}
}

func breakerOverrides(overrides map[string]config.BreakerConfig, retryOpts retry.Options) map[string]breaker.Config {
	if len(overrides) == 0 {
		return nil
	}
	out := make(map[string]breaker.Config, len(overrides))
	for name, bc := range overrides {
		out[name] = breakerConfig(bc, retryOpts)
	}
	return out
}

// Start launches the health server.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		slog.Info("Health server starting", "port", s.cfg.Server.Port)
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts everything down, draining queued alerts.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.healthServer.Stop(ctx); err != nil {
		slog.Error("Failed to stop health server", "error", err)
	}

	s.dispatcher.Stop()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Error("Failed to close cache", "error", err)
		}
	}

	return nil
}

// Registry exposes the breaker registry for callers composing their own
// guarded operations.
func (s *Service) Registry() *breaker.Registry {
	return s.registry
}
