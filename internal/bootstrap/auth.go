package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/lms-session/config"
	"github.com/target/lms-session/internal/adapters/backend"
	"github.com/target/lms-session/internal/adapters/devauth"
	"github.com/target/lms-session/internal/adapters/oidc"
	"github.com/target/lms-session/internal/data"
	"github.com/target/lms-session/internal/observability/statsd"
	"github.com/target/lms-session/internal/ports"
	"github.com/target/lms-session/internal/service"
)

// AuthConfig contains configuration for the sign-in side of the service.
type AuthConfig struct {
	Auth         config.AuthConfig
	Metrics      statsd.Sink
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// BuildExchanger creates the credential exchanger for the configured auth mode:
// the LMS backend client, or the in-process dev backend in mock mode.
//
//nolint:ireturn // callers depend on the port, not the adapter.
func BuildExchanger(cfg AuthConfig) (ports.CredentialExchanger, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		b, err := devauth.NewBackend(devAuthConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("dev auth backend: %w", err)
		}
		return b, nil

	case config.AuthModeBackend:
		c, err := backend.NewClient(backend.Config{
			BaseURL:          cfg.Auth.Backend.URL,
			Timeout:          cfg.Auth.Backend.Timeout,
			ErrorMessageExpr: cfg.Auth.Backend.ErrorMessageExpr,
		}, backend.WithLogger(cfg.Logger), backend.WithMetrics(cfg.Metrics))
		if err != nil {
			return nil, fmt.Errorf("backend client: %w", err)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// BuildProviders creates the OAuth providers that are fully configured. A
// provider that fails to initialise is logged and left out.
func BuildProviders(cfg AuthConfig) []ports.AuthProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var providers []ports.AuthProvider
	if p := buildOIDCProvider(cfg.Auth.OAuth, logger); p != nil {
		providers = append(providers, p)
	}

	if cfg.Auth.Mode == config.AuthModeMock {
		prov, err := devauth.NewProvider(devAuthConfig(cfg))
		if err != nil {
			logger.Warn("failed to create dev auth provider", "error", err)
		} else {
			providers = append(providers, prov)
		}
	}
	return providers
}

func buildOIDCProvider(oauth config.OAuthConfig, logger *slog.Logger) *oidc.Provider {
	if !oauth.Enabled() {
		if oauth.ClientID != "" || oauth.DiscoveryURL != "" {
			logger.Warn("oauth provider partially configured; provider disabled",
				"provider", oauth.Provider,
				"discovery_url_empty", oauth.DiscoveryURL == "",
				"client_id_empty", oauth.ClientID == "",
				"client_secret_empty", oauth.ClientSecret == "",
			)
		}
		return nil
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		Name:         oauth.Provider,
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
	})
	if err != nil {
		logger.Warn("failed to create OIDC provider, provider disabled", "provider", oauth.Provider, "error", err)
		return nil
	}
	return prov
}

// BuildAuthService wires the OAuth flow service. It returns nil when no
// provider is configured, which disables the OAuth routes.
func BuildAuthService(providers []ports.AuthProvider, sessions *service.SessionService, logger *slog.Logger) *service.AuthService {
	if len(providers) == 0 {
		return nil
	}
	return service.NewAuthService(service.AuthServiceOptions{
		Providers: providers,
		Sessions:  sessions,
		Logger:    logger,
	})
}

func devAuthConfig(cfg AuthConfig) devauth.Config {
	dev := cfg.Auth.DevAuth
	return devauth.Config{
		UserID:       dev.UserID,
		Email:        dev.Email,
		Password:     dev.Password,
		FirstName:    dev.FirstName,
		LastName:     dev.LastName,
		Roles:        dev.Roles,
		TokenTTL:     dev.TokenTTL,
		TimeProvider: cfg.TimeProvider,
	}
}
