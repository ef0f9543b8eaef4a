package devauth

// Package devauth provides a config-driven identity provider and backend
// stand-in for local development (AUTH_MODE=mock).

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	"github.com/target/lms-session/internal/ports"
)

// ProviderName is the provider identifier used for dev OAuth logins.
const ProviderName = "dev"

// Provider implements ports.AuthProvider for local development.
// It short-circuits the OAuth flow by redirecting back to our own callback
// with locally generated state and nonce. Exchange ignores the code and
// returns a grant for the configured user.
type Provider struct {
	email string
	name  string
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Provider{
		email: strings.TrimSpace(cfg.Email),
		name:  strings.TrimSpace(cfg.FirstName + " " + cfg.LastName),
	}, nil
}

// Name returns ProviderName.
func (p *Provider) Name() string { return ProviderName }

// Begin returns the local callback URL along with a fresh state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", err
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", err
	}
	q := url.Values{"code": {"dev"}, "state": {state}}
	return "/auth/oauth/" + ProviderName + "/callback?" + q.Encode(), state, nonce, nil
}

// Exchange ignores the provided code (state checks happen in the handler) and returns the dev grant.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.OAuthGrant, error) {
	if in.Code == "" {
		return domainauth.OAuthGrant{}, errors.New("authorization code is required")
	}
	tok, err := randomString(32)
	if err != nil {
		return domainauth.OAuthGrant{}, err
	}
	return domainauth.OAuthGrant{
		Provider:    ProviderName,
		Email:       p.email,
		AccessToken: "dev-oauth-" + tok,
		Name:        p.name,
	}, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Enough random bytes to produce at least n base64 URL chars.
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
