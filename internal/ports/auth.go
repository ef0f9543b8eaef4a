package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/lms-session/internal/domain/auth"
)

// CredentialExchanger converts credentials or provider tokens into backend-issued
// identities and tokens. Implementations perform network calls only and hold no session state.
type CredentialExchanger interface {
	// LoginWithPassword exchanges an email/password pair for an identity.
	LoginWithPassword(ctx context.Context, email, password string) (domainauth.UserIdentity, error)

	// LoginWithOAuthToken exchanges a provider-issued access token for an identity.
	LoginWithOAuthToken(ctx context.Context, email, provider, providerToken string) (domainauth.UserIdentity, error)

	// RefreshAccessToken trades a refresh token for a new access token.
	RefreshAccessToken(ctx context.Context, refreshToken string) (domainauth.RefreshResult, error)

	// FetchSession returns the live user and roles for an access token.
	FetchSession(ctx context.Context, accessToken string) (domainauth.LiveSession, error)
}

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an OAuth flow against an IdP.
type AuthProvider interface {
	// Name identifies the provider to the backend (e.g. "google").
	Name() string

	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the provider grant.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.OAuthGrant, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SessionCache stores projected session views by cache key.
type SessionCache interface {
	Get(key string) (domainauth.SessionView, bool)
	Put(key string, view domainauth.SessionView)
}

// TokenCodec serializes durable session tokens for transport between requests.
type TokenCodec interface {
	Encode(tok domainauth.DurableSessionToken) (string, error)
	Decode(raw string) (domainauth.DurableSessionToken, error)
}
