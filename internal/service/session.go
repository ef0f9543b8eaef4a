package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/observability/metrics"
	"github.com/target/lms-session/internal/observability/statsd"
	"github.com/target/lms-session/internal/ports"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Exchanger ports.CredentialExchanger
	Refresh   *RefreshPolicy
	Projector *Projector
	Metrics   statsd.Sink
	Logger    *slog.Logger
}

// SessionService drives the per-client session state machine:
// UNAUTHENTICATED -> AUTHENTICATING -> AUTHENTICATED, back to UNAUTHENTICATED on
// sign-out or a failed sign-in.
type SessionService struct {
	exchanger ports.CredentialExchanger
	refresh   *RefreshPolicy
	projector *Projector
	metrics   statsd.Sink
	logger    *slog.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		exchanger: opts.Exchanger,
		refresh:   opts.Refresh,
		projector: opts.Projector,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// SignInInput is a sign-in event delivered by a provider callback. Password is
// only read for credential accounts.
type SignInInput struct {
	Account  domainauth.ProviderAccount
	Email    string
	Password string
}

// SignIn exchanges the event for a backend identity. On success the returned
// token is AUTHENTICATED; on failure it is empty (UNAUTHENTICATED) and the
// error says why.
func (s *SessionService) SignIn(ctx context.Context, in SignInInput) (domainauth.DurableSessionToken, error) {
	if err := in.Account.Validate(); err != nil {
		return domainauth.DurableSessionToken{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid sign-in account")
	}
	email := strings.TrimSpace(in.Email)
	provider := providerLabel(in.Account)

	s.logTransition(ctx, domainauth.StateUnauthenticated, domainauth.StateAuthenticating, provider)
	start := time.Now()

	var (
		user domainauth.UserIdentity
		err  error
	)
	switch in.Account.Kind {
	case domainauth.ProviderCredentials:
		user, err = s.exchanger.LoginWithPassword(ctx, email, in.Password)
	case domainauth.ProviderOAuth:
		user, err = s.exchanger.LoginWithOAuthToken(ctx, email, in.Account.Provider, in.Account.AccessToken)
	}

	if err != nil {
		metrics.EmitSignIn(s.metrics, metrics.SignInMetric{
			Provider: provider,
			Result:   metrics.ResultError,
			Duration: time.Since(start),
			Err:      err,
		})
		s.logger.InfoContext(ctx, "sign-in rejected",
			"provider", provider,
			"error_code", apperrors.GetCode(err),
			"error", err)
		s.logTransition(ctx, domainauth.StateAuthenticating, domainauth.StateUnauthenticated, provider)
		return domainauth.DurableSessionToken{}, fmt.Errorf("sign in with %s: %w", provider, err)
	}

	metrics.EmitSignIn(s.metrics, metrics.SignInMetric{
		Provider: provider,
		Result:   metrics.ResultSuccess,
		Duration: time.Since(start),
	})
	s.logTransition(ctx, domainauth.StateAuthenticating, domainauth.StateAuthenticated, provider)
	s.logger.InfoContext(ctx, "sign-in succeeded", "provider", provider, "user_id", string(user.ID))
	return domainauth.NewDurableSessionToken(user), nil
}

// Evaluate is the periodic re-evaluation of a live session. Signed-out tokens
// are returned unchanged. Otherwise the refresh policy runs and the returned
// token carries the current bundle; a refresh error leaves the token as it was.
func (s *SessionService) Evaluate(
	ctx context.Context,
	tok domainauth.DurableSessionToken,
) (domainauth.DurableSessionToken, bool, error) {
	if !tok.Authenticated() {
		return tok, false, nil
	}
	next, refreshed, err := s.refresh.Evaluate(ctx, tok.Tokens())
	if err != nil {
		return tok, false, err
	}
	if !refreshed {
		return tok, false, nil
	}
	return tok.WithTokens(next), true, nil
}

// Project returns the session view for tok.
func (s *SessionService) Project(ctx context.Context, tok domainauth.DurableSessionToken) (domainauth.SessionView, error) {
	return s.projector.Project(ctx, tok)
}

// ResolveResult is the outcome of one request-time session evaluation.
type ResolveResult struct {
	Token     domainauth.DurableSessionToken
	View      domainauth.SessionView
	Refreshed bool
	// RefreshErr is set when a refresh was attempted and failed. The session
	// stays authenticated with its previous tokens.
	RefreshErr error
}

// Resolve evaluates tok and then projects the result, in that order, so the
// view always reflects the bundle the client will hold after this request.
func (s *SessionService) Resolve(ctx context.Context, tok domainauth.DurableSessionToken) (ResolveResult, error) {
	next, refreshed, err := s.Evaluate(ctx, tok)
	res := ResolveResult{Token: next, Refreshed: refreshed}
	if err != nil {
		if !apperrors.IsRefreshFailure(err) {
			return res, err
		}
		res.RefreshErr = err
	}

	view, err := s.projector.Project(ctx, next)
	if err != nil {
		return res, err
	}
	res.View = view
	return res, nil
}

// SignOut clears the user from tok.
func (s *SessionService) SignOut(ctx context.Context, tok domainauth.DurableSessionToken) domainauth.DurableSessionToken {
	if tok.Authenticated() {
		s.logTransition(ctx, domainauth.StateAuthenticated, domainauth.StateUnauthenticated, "signout")
	}
	return domainauth.DurableSessionToken{}
}

// State reports the state held by tok.
func (s *SessionService) State(tok domainauth.DurableSessionToken) domainauth.SessionState {
	return tok.State()
}

func (s *SessionService) logTransition(ctx context.Context, from, to domainauth.SessionState, provider string) {
	s.logger.DebugContext(ctx, "session state transition",
		"from", string(from),
		"to", string(to),
		"provider", provider)
}

func providerLabel(a domainauth.ProviderAccount) string {
	if a.Kind == domainauth.ProviderOAuth {
		return a.Provider
	}
	return string(domainauth.ProviderCredentials)
}
