package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/lms-session/config"
	"github.com/target/lms-session/internal/adapters/tokencodec"
	"github.com/target/lms-session/internal/data"
	"github.com/target/lms-session/internal/observability/statsd"
	"github.com/target/lms-session/internal/service"
)

// ServiceContainer holds everything the HTTP layer and background loops need.
type ServiceContainer struct {
	Sessions *service.SessionService
	// OAuth is nil when no identity provider is configured.
	OAuth   *service.AuthService
	Cache   *data.SessionCache
	Codec   *tokencodec.Codec
	Metrics statsd.Sink

	metricsClient *statsd.Client
}

// ServiceDeps contains the inputs to NewServices.
type ServiceDeps struct {
	Config *config.AppConfig
	// TimeProvider defaults to the wall clock.
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// NewServices builds the session stack from configuration.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := data.DefaultTimeProvider(deps.TimeProvider)

	metricsClient := buildObservability(logger, cfg.Observability)
	var sink statsd.Sink
	if metricsClient != nil {
		sink = metricsClient
	}

	exchanger, err := BuildExchanger(AuthConfig{
		Auth:         cfg.Auth,
		Metrics:      sink,
		TimeProvider: clock,
		Logger:       logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	encryptor, err := CreateEncryptor(cfg.Session.EncryptionKeys, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	codec, err := tokencodec.New(tokencodec.Options{
		SigningKey:   []byte(cfg.Session.SigningKey),
		Encryptor:    encryptor,
		MaxAge:       cfg.Session.MaxAge,
		TimeProvider: clock,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session token codec: %w", err)
	}

	cache := data.NewSessionCache(data.SessionCacheOptions{
		TTL:          cfg.Session.CacheTTL,
		MaxEntries:   cfg.Session.CacheMaxEntries,
		TimeProvider: clock,
	})

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Exchanger: exchanger,
		Refresh: service.NewRefreshPolicy(service.RefreshPolicyOptions{
			Exchanger:                 exchanger,
			Margin:                    cfg.Session.RefreshMargin,
			Lease:                     cfg.Session.RefreshLease,
			ReuseWindow:               cfg.Session.RefreshReuseWindow,
			IgnoreRotatedRefreshToken: !cfg.Session.AdoptRotatedRefreshToken,
			TimeProvider:              clock,
			Metrics:                   sink,
			Logger:                    logger,
		}),
		Projector: service.NewProjector(service.ProjectorOptions{
			Exchanger: exchanger,
			Cache:     cache,
			Metrics:   sink,
			Logger:    logger,
		}),
		Metrics: sink,
		Logger:  logger,
	})

	providers := BuildProviders(AuthConfig{
		Auth:         cfg.Auth,
		TimeProvider: clock,
		Logger:       logger,
	})

	return ServiceContainer{
		Sessions:      sessions,
		OAuth:         BuildAuthService(providers, sessions, logger),
		Cache:         cache,
		Codec:         codec,
		Metrics:       sink,
		metricsClient: metricsClient,
	}, nil
}

// Close releases resources held by the container.
func (c ServiceContainer) Close() error {
	return c.metricsClient.Close()
}

// buildObservability returns nil when metrics are disabled or the sink cannot be reached.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) *statsd.Client {
	if !cfg.Metrics.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.Metrics.StatsdAddress,
		Prefix:     cfg.Metrics.Prefix,
		GlobalTags: cfg.Metrics.GlobalTags(),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}
