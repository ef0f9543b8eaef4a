package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/target/lms-session/internal/data"
	domainauth "github.com/target/lms-session/internal/domain/auth"
	"github.com/target/lms-session/internal/observability/metrics"
	"github.com/target/lms-session/internal/observability/statsd"
	"github.com/target/lms-session/internal/ports"
)

// ProjectorOptions groups dependencies for Projector.
type ProjectorOptions struct {
	Exchanger ports.CredentialExchanger
	Cache     ports.SessionCache
	Metrics   statsd.Sink
	Logger    *slog.Logger
}

// Projector turns a durable session token into the session view callers see.
// It is the only component that fetches the live session from the backend.
type Projector struct {
	exchanger ports.CredentialExchanger
	cache     ports.SessionCache
	metrics   statsd.Sink
	logger    *slog.Logger

	fetches singleflight.Group
}

// NewProjector constructs a Projector.
func NewProjector(opts ProjectorOptions) *Projector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{
		exchanger: opts.Exchanger,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Project returns the unauthenticated view for a signed-out token. Otherwise it
// serves the cached view for the token's access token, or fetches the live
// session, merges it with the token's bundle and caches the result.
func (p *Projector) Project(ctx context.Context, tok domainauth.DurableSessionToken) (domainauth.SessionView, error) {
	if !tok.Authenticated() {
		return domainauth.UnauthenticatedView(), nil
	}

	bundle := tok.Tokens()
	key := data.SessionCacheKey(bundle.AccessToken)
	if view, ok := p.cache.Get(key); ok {
		metrics.EmitCacheLookup(p.metrics, metrics.CacheHit)
		return view, nil
	}
	metrics.EmitCacheLookup(p.metrics, metrics.CacheMiss)

	shared := context.WithoutCancel(ctx)
	v, err, _ := p.fetches.Do(key, func() (any, error) {
		live, err := p.exchanger.FetchSession(shared, bundle.AccessToken)
		if err != nil {
			return nil, err
		}
		view := mergeView(live, bundle)
		p.cache.Put(key, view)
		return view, nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "fetch live session failed", "error", err)
		return domainauth.SessionView{}, fmt.Errorf("fetch session: %w", err)
	}
	return v.(domainauth.SessionView).Clone(), nil
}

func mergeView(live domainauth.LiveSession, bundle domainauth.TokenBundle) domainauth.SessionView {
	user := live.User
	tokens := bundle
	return domainauth.SessionView{
		Authenticated: true,
		User:          &user,
		Roles:         append([]string(nil), live.Roles...),
		Tokens:        &tokens,
	}
}
