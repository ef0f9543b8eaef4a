package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Providers []ports.AuthProvider
	Sessions  *SessionService
	Logger    *slog.Logger
}

// AuthService drives OAuth sign-in: it starts the provider flow, completes it,
// and hands the resulting grant to the session service.
type AuthService struct {
	providers map[string]ports.AuthProvider
	sessions  *SessionService
	logger    *slog.Logger
}

// NewAuthService constructs a new AuthService. Providers are keyed by Name();
// when two share a name the first one wins.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	providers := make(map[string]ports.AuthProvider, len(opts.Providers))
	for _, p := range opts.Providers {
		if p == nil {
			continue
		}
		name := strings.ToLower(p.Name())
		if _, dup := providers[name]; dup {
			logger.Warn("duplicate auth provider ignored", "provider", name)
			continue
		}
		providers[name] = p
	}
	return &AuthService{
		providers: providers,
		sessions:  opts.Sessions,
		logger:    logger.With("component", "auth_service"),
	}
}

// Providers lists the configured provider names in sorted order.
func (s *AuthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *AuthService) provider(name string) (ports.AuthProvider, error) {
	p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperrors.NotFoundf("auth provider %q not configured", name)
	}
	return p, nil
}

// BeginLogin initiates the provider flow and returns the auth URL with state and nonce.
func (s *AuthService) BeginLogin(
	ctx context.Context,
	provider string,
	req domainauth.LoginRequest,
) (domainauth.LoginResponse, error) {
	p, err := s.provider(provider)
	if err != nil {
		return domainauth.LoginResponse{}, err
	}
	if req.RedirectURL == "" {
		return domainauth.LoginResponse{}, apperrors.ValidationField("redirect_url", "redirect URL is required")
	}

	authURL, state, nonce, err := p.Begin(ctx, ports.BeginInput{RedirectURL: req.RedirectURL})
	if err != nil {
		return domainauth.LoginResponse{}, fmt.Errorf("begin auth flow: %w", err)
	}
	return domainauth.LoginResponse{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLogin exchanges the callback code for a provider grant and signs the
// user in with it. The returned token is AUTHENTICATED on success.
func (s *AuthService) CompleteLogin(
	ctx context.Context,
	provider string,
	in domainauth.CallbackInput,
) (domainauth.DurableSessionToken, error) {
	p, err := s.provider(provider)
	if err != nil {
		return domainauth.DurableSessionToken{}, err
	}
	switch {
	case in.Code == "":
		return domainauth.DurableSessionToken{}, apperrors.ValidationField("code", "authorization code is required")
	case in.State == "":
		return domainauth.DurableSessionToken{}, apperrors.ValidationField("state", "state parameter is required")
	case in.Nonce == "":
		return domainauth.DurableSessionToken{}, apperrors.ValidationField("nonce", "nonce parameter is required")
	}

	grant, err := p.Exchange(ctx, ports.ExchangeInput{Code: in.Code, State: in.State, Nonce: in.Nonce})
	if err != nil {
		s.logger.InfoContext(ctx, "provider exchange failed", "provider", p.Name(), "error", err)
		return domainauth.DurableSessionToken{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidCredentials,
			"exchange authorization code")
	}
	if grant.Email == "" || grant.AccessToken == "" {
		return domainauth.DurableSessionToken{}, apperrors.Validation("provider grant is missing email or access token")
	}
	name := grant.Provider
	if name == "" {
		name = p.Name()
	}

	return s.sessions.SignIn(ctx, SignInInput{
		Account: domainauth.OAuthAccount(name, grant.AccessToken),
		Email:   grant.Email,
	})
}
