package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/target/lms-session/internal/data"
	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/observability/metrics"
	"github.com/target/lms-session/internal/observability/statsd"
	"github.com/target/lms-session/internal/ports"
)

const (
	// DefaultRefreshMargin is how long before expiry a bundle is refreshed.
	DefaultRefreshMargin = 5 * time.Minute
	// DefaultRefreshLease is the lifetime assigned to a refreshed access token.
	DefaultRefreshLease = time.Hour
	// DefaultRefreshReuseWindow is how long a completed refresh is handed to
	// late callers still holding the pre-refresh bundle.
	DefaultRefreshReuseWindow = 30 * time.Second
)

// RefreshPolicyOptions groups dependencies and tunables for RefreshPolicy.
type RefreshPolicyOptions struct {
	Exchanger ports.CredentialExchanger
	// Margin defaults to DefaultRefreshMargin.
	Margin time.Duration
	// Lease defaults to DefaultRefreshLease. The backend-reported expiry is ignored.
	Lease time.Duration
	// ReuseWindow defaults to DefaultRefreshReuseWindow; negative disables reuse.
	ReuseWindow time.Duration
	// IgnoreRotatedRefreshToken keeps the existing refresh token even when the
	// backend returns a new one.
	IgnoreRotatedRefreshToken bool
	TimeProvider              data.TimeProvider
	Metrics                   statsd.Sink
	Logger                    *slog.Logger
}

type completedRefresh struct {
	bundle domainauth.TokenBundle
	at     time.Time
}

// RefreshPolicy decides when a token bundle must be refreshed and performs the
// refresh. Concurrent evaluations holding the same refresh token share one
// backend call.
type RefreshPolicy struct {
	exchanger     ports.CredentialExchanger
	margin        time.Duration
	lease         time.Duration
	reuseWindow   time.Duration
	ignoreRotated bool
	clock         data.TimeProvider
	metrics       statsd.Sink
	logger        *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	recent map[string]completedRefresh
}

// NewRefreshPolicy constructs a RefreshPolicy.
func NewRefreshPolicy(opts RefreshPolicyOptions) *RefreshPolicy {
	margin := opts.Margin
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	lease := opts.Lease
	if lease <= 0 {
		lease = DefaultRefreshLease
	}
	reuse := opts.ReuseWindow
	if reuse == 0 {
		reuse = DefaultRefreshReuseWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshPolicy{
		exchanger:     opts.Exchanger,
		margin:        margin,
		lease:         lease,
		reuseWindow:   reuse,
		ignoreRotated: opts.IgnoreRotatedRefreshToken,
		clock:         data.DefaultTimeProvider(opts.TimeProvider),
		metrics:       opts.Metrics,
		logger:        logger,
		recent:        make(map[string]completedRefresh),
	}
}

// NeedsRefresh reports whether bundle is within the refresh margin of its expiry.
func (p *RefreshPolicy) NeedsRefresh(bundle domainauth.TokenBundle) bool {
	return bundle.NearExpiry(p.clock.Now(), p.margin)
}

// Evaluate returns bundle unchanged while it is valid. Near expiry it refreshes
// once and returns the replacement bundle with refreshed set to true. A failed
// refresh returns the original bundle alongside a refresh_failure error; the
// caller keeps its session.
func (p *RefreshPolicy) Evaluate(
	ctx context.Context,
	bundle domainauth.TokenBundle,
) (next domainauth.TokenBundle, refreshed bool, err error) {
	if !p.NeedsRefresh(bundle) {
		return bundle, false, nil
	}

	start := time.Now()
	if bundle.RefreshToken == "" {
		err := apperrors.RefreshFailure(apperrors.Validation("bundle has no refresh token"))
		p.fail(ctx, start, err)
		return bundle, false, err
	}

	if prior, ok := p.reused(bundle.RefreshToken); ok {
		metrics.EmitRefresh(p.metrics, metrics.RefreshMetric{Result: metrics.ResultShared})
		return prior, true, nil
	}

	// The shared call must not be cut short by whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	var memoized bool
	v, err, wasShared := p.group.Do(bundle.RefreshToken, func() (any, error) {
		// A flight for this token may have finished between the check above and here.
		if prior, ok := p.reused(bundle.RefreshToken); ok {
			memoized = true
			return prior, nil
		}
		return p.refresh(shared, bundle)
	})
	if err != nil {
		err = apperrors.RefreshFailure(err)
		p.fail(ctx, start, err)
		return bundle, false, err
	}

	result := metrics.ResultSuccess
	if wasShared || memoized {
		result = metrics.ResultShared
	}
	metrics.EmitRefresh(p.metrics, metrics.RefreshMetric{Result: result, Duration: time.Since(start)})
	return v.(domainauth.TokenBundle), true, nil
}

func (p *RefreshPolicy) refresh(ctx context.Context, bundle domainauth.TokenBundle) (domainauth.TokenBundle, error) {
	res, err := p.exchanger.RefreshAccessToken(ctx, bundle.RefreshToken)
	if err != nil {
		return domainauth.TokenBundle{}, err
	}

	next := domainauth.TokenBundle{
		AccessToken:  res.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Expiry:       p.clock.Now().Add(p.lease),
	}
	if res.RefreshToken != "" && !p.ignoreRotated {
		next.RefreshToken = res.RefreshToken
	}
	p.remember(bundle.RefreshToken, next)

	p.logger.DebugContext(ctx, "access token refreshed",
		"expires_at", next.Expiry,
		"refresh_token_rotated", next.RefreshToken != bundle.RefreshToken)
	return next, nil
}

func (p *RefreshPolicy) fail(ctx context.Context, start time.Time, err error) {
	p.logger.WarnContext(ctx, "token refresh failed; keeping current tokens", "error", err)
	metrics.EmitRefresh(p.metrics, metrics.RefreshMetric{
		Result:   metrics.ResultError,
		Duration: time.Since(start),
		Err:      err,
	})
}

// reused returns the bundle produced by a recent refresh of refreshToken, if any.
func (p *RefreshPolicy) reused(refreshToken string) (domainauth.TokenBundle, bool) {
	if p.reuseWindow < 0 {
		return domainauth.TokenBundle{}, false
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	prior, ok := p.recent[refreshToken]
	if !ok || now.Sub(prior.at) >= p.reuseWindow || prior.bundle.NearExpiry(now, p.margin) {
		return domainauth.TokenBundle{}, false
	}
	return prior.bundle, true
}

func (p *RefreshPolicy) remember(refreshToken string, next domainauth.TokenBundle) {
	if p.reuseWindow < 0 {
		return
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range p.recent {
		if now.Sub(v.at) >= p.reuseWindow {
			delete(p.recent, k)
		}
	}
	p.recent[refreshToken] = completedRefresh{bundle: next, at: now}
}
