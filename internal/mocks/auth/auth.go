package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider        = (*MockAuthProvider)(nil)
	_ ports.CredentialExchanger = (*StubExchanger)(nil)
	_ ports.TokenCodec          = (*JSONCodec)(nil)
)

// MockAuthProvider simulates an OAuth IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.OAuthGrant, error)

	// Deterministic values for predictable testing
	ProviderName string
	AuthURL      string
	StatePrefix  string
	NoncePrefix  string
	DefaultGrant domainauth.OAuthGrant

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		ProviderName: "mock",
		AuthURL:      "https://mock-idp/auth",
		StatePrefix:  "state",
		NoncePrefix:  "nonce",
		DefaultGrant: domainauth.OAuthGrant{
			Provider:    "mock",
			Email:       "mock.user@example.com",
			AccessToken: "mock-provider-token",
			Name:        "Mock User",
		},
	}
}

// Name returns the configured provider name.
func (m *MockAuthProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.OAuthGrant, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	grant := m.DefaultGrant
	if grant.Email == "" {
		grant = domainauth.OAuthGrant{
			Email:       "mock.user@example.com",
			AccessToken: "mock-provider-token",
		}
	}
	if grant.Provider == "" {
		grant.Provider = m.Name()
	}
	return grant, nil
}

// StubUser is an account known to StubExchanger.
type StubUser struct {
	Password string
	Identity domainauth.UserIdentity
	Roles    []string
}

// StubExchanger is an in-memory stand-in for the LMS backend. Fields ending in
// Func override the default behavior; call counters are safe for concurrent use.
type StubExchanger struct {
	LoginFunc   func(ctx context.Context, email, password string) (domainauth.UserIdentity, error)
	OAuthFunc   func(ctx context.Context, email, provider, token string) (domainauth.UserIdentity, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (domainauth.RefreshResult, error)
	SessionFunc func(ctx context.Context, accessToken string) (domainauth.LiveSession, error)

	mu           sync.Mutex
	users        map[string]StubUser
	refreshCalls int
	sessionCalls int
	loginCalls   int
	issued       int
}

// NewStubExchanger creates an exchanger with no registered users.
func NewStubExchanger() *StubExchanger {
	return &StubExchanger{users: make(map[string]StubUser)}
}

// AddUser registers an account that LoginWithPassword and LoginWithOAuthToken accept.
func (s *StubExchanger) AddUser(email string, u StubUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]StubUser)
	}
	s.users[email] = u
}

func (s *StubExchanger) LoginWithPassword(ctx context.Context, email, password string) (domainauth.UserIdentity, error) {
	s.mu.Lock()
	s.loginCalls++
	u, ok := s.users[email]
	s.mu.Unlock()

	if s.LoginFunc != nil {
		return s.LoginFunc(ctx, email, password)
	}
	if !ok || u.Password != password {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("invalid email or password")
	}
	return u.Identity, nil
}

func (s *StubExchanger) LoginWithOAuthToken(
	ctx context.Context,
	email, provider, token string,
) (domainauth.UserIdentity, error) {
	s.mu.Lock()
	s.loginCalls++
	u, ok := s.users[email]
	s.mu.Unlock()

	if s.OAuthFunc != nil {
		return s.OAuthFunc(ctx, email, provider, token)
	}
	if !ok || token == "" {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("unknown oauth account")
	}
	return u.Identity, nil
}

func (s *StubExchanger) RefreshAccessToken(ctx context.Context, refreshToken string) (domainauth.RefreshResult, error) {
	s.mu.Lock()
	s.refreshCalls++
	s.issued++
	n := s.issued
	s.mu.Unlock()

	if s.RefreshFunc != nil {
		return s.RefreshFunc(ctx, refreshToken)
	}
	return domainauth.RefreshResult{AccessToken: fmt.Sprintf("refreshed-%d", n)}, nil
}

func (s *StubExchanger) FetchSession(ctx context.Context, accessToken string) (domainauth.LiveSession, error) {
	s.mu.Lock()
	s.sessionCalls++
	var (
		found StubUser
		ok    bool
	)
	for _, u := range s.users {
		if u.Identity.Tokens.AccessToken == accessToken {
			found, ok = u, true
			break
		}
	}
	s.mu.Unlock()

	if s.SessionFunc != nil {
		return s.SessionFunc(ctx, accessToken)
	}
	if !ok {
		return domainauth.LiveSession{User: domainauth.UserProfile{ID: "unknown"}}, nil
	}
	return domainauth.LiveSession{User: found.Identity.Profile(), Roles: found.Roles}, nil
}

// RefreshCalls returns how many refresh exchanges were attempted.
func (s *StubExchanger) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// SessionCalls returns how many live session lookups were attempted.
func (s *StubExchanger) SessionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionCalls
}

// LoginCalls returns how many login exchanges were attempted.
func (s *StubExchanger) LoginCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

// JSONCodec encodes durable tokens as unsigned base64 JSON. Tests only.
type JSONCodec struct{}

func (JSONCodec) Encode(tok domainauth.DurableSessionToken) (string, error) {
	b, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (JSONCodec) Decode(raw string) (domainauth.DurableSessionToken, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return domainauth.DurableSessionToken{}, err
	}
	var tok domainauth.DurableSessionToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return domainauth.DurableSessionToken{}, err
	}
	return tok, nil
}

// Identity builds a backend identity with a bundle expiring at expiry.
func Identity(id, email, accessToken, refreshToken string, expiry time.Time) domainauth.UserIdentity {
	return domainauth.UserIdentity{
		ID:        domainauth.UserID(id),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Tokens: domainauth.TokenBundle{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			Expiry:       expiry,
		},
	}
}
