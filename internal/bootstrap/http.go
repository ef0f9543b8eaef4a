package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/lms-session/config"
	"github.com/target/lms-session/internal/data"
	httpx "github.com/target/lms-session/internal/http"
	"github.com/target/lms-session/internal/observability/metrics"
	"github.com/target/lms-session/internal/observability/statsd"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the HTTP server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Sessions: cfg.Services.Sessions,
		Cookies: &httpx.SessionCookies{
			Name:   appCfg.Session.CookieName,
			Domain: appCfg.Session.CookieDomain,
			Secure: appCfg.Session.CookieSecure,
			MaxAge: appCfg.Session.MaxAge,
			Codec:  cfg.Services.Codec,
		},
		PostLoginRedirect: appCfg.Auth.PostLoginRedirect,
		Logger:            logger,
	}
	// A typed nil would make the handlers think OAuth is available.
	if cfg.Services.OAuth != nil {
		services.OAuth = cfg.Services.OAuth
	}
	if cfg.Services.Cache != nil {
		services.Cache = cfg.Services.Cache
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(services),
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}

// CacheJanitorConfig configures RunCacheJanitor.
type CacheJanitorConfig struct {
	Cache    *data.SessionCache
	Interval time.Duration
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// RunCacheJanitor drops expired session views every Interval and reports the
// cache size until ctx is done.
func RunCacheJanitor(ctx context.Context, cfg CacheJanitorConfig) {
	if cfg.Cache == nil || cfg.Interval <= 0 {
		return
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := cfg.Cache.Sweep(); removed > 0 {
				logger.DebugContext(ctx, "session cache swept", "removed", removed)
			}
			metrics.EmitCacheSize(cfg.Metrics, cfg.Cache.Len())
		}
	}
}

// Run serves HTTP and runs the cache janitor until ctx is canceled or the
// server fails, then shuts the server down.
func Run(ctx context.Context, cfg *HTTPServerConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := NewHTTPServer(cfg)
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		RunCacheJanitor(gctx, CacheJanitorConfig{
			Cache:    cfg.Services.Cache,
			Interval: cfg.Config.Session.CacheSweepInterval,
			Metrics:  cfg.Services.Metrics,
			Logger:   logger,
		})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Context: context.WithoutCancel(ctx),
			Server:  server,
			Timeout: cfg.Config.HTTP.ShutdownTimeout,
			Logger:  logger,
		})
	})
	return g.Wait()
}
