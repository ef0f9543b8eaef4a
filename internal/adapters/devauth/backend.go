package devauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/target/lms-session/internal/data"
	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/ports"
)

// DefaultTokenTTL is the lifetime of access tokens issued by Backend.
const DefaultTokenTTL = time.Hour

var _ ports.CredentialExchanger = (*Backend)(nil)

// Config describes the single development account.
type Config struct {
	UserID    string
	Email     string
	Password  string // empty accepts any password
	FirstName string
	LastName  string
	Roles     []string
	TokenTTL  time.Duration

	TimeProvider data.TimeProvider
}

func (c Config) validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("dev auth: UserID is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("dev auth: Email is required")
	}
	return nil
}

// Backend is an in-process ports.CredentialExchanger that knows one account and
// issues opaque tokens. It mirrors the backend contract closely enough to run
// the session service without an LMS.
type Backend struct {
	user     domainauth.UserIdentity
	password string
	roles    []string
	ttl      time.Duration
	clock    data.TimeProvider

	mu      sync.Mutex
	access  map[string]time.Time
	refresh map[string]struct{}
}

// NewBackend constructs a dev backend from Config.
func NewBackend(cfg Config) (*Backend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Backend{
		user: domainauth.UserIdentity{
			ID:        domainauth.UserID(strings.TrimSpace(cfg.UserID)),
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
			Email:     strings.TrimSpace(cfg.Email),
			Roles:     append([]string(nil), cfg.Roles...),
		},
		password: cfg.Password,
		roles:    append([]string(nil), cfg.Roles...),
		ttl:      ttl,
		clock:    data.DefaultTimeProvider(cfg.TimeProvider),
		access:   make(map[string]time.Time),
		refresh:  make(map[string]struct{}),
	}, nil
}

func (b *Backend) LoginWithPassword(ctx context.Context, email, password string) (domainauth.UserIdentity, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.UserIdentity{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), b.user.Email) {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("invalid email or password")
	}
	if b.password != "" && password != b.password {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("invalid email or password")
	}
	return b.issue()
}

func (b *Backend) LoginWithOAuthToken(
	ctx context.Context,
	email, provider, providerToken string,
) (domainauth.UserIdentity, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.UserIdentity{}, err
	}
	if providerToken == "" || !strings.EqualFold(strings.TrimSpace(email), b.user.Email) {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("unknown " + provider + " account")
	}
	return b.issue()
}

func (b *Backend) RefreshAccessToken(ctx context.Context, refreshToken string) (domainauth.RefreshResult, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.RefreshResult{}, err
	}
	b.mu.Lock()
	_, ok := b.refresh[refreshToken]
	b.mu.Unlock()
	if !ok {
		return domainauth.RefreshResult{}, apperrors.InvalidCredentials("invalid refresh token")
	}
	at, expiry, err := b.newAccessToken()
	if err != nil {
		return domainauth.RefreshResult{}, apperrors.Internal("issue access token")
	}
	return domainauth.RefreshResult{AccessToken: at, Expiry: expiry}, nil
}

func (b *Backend) FetchSession(ctx context.Context, accessToken string) (domainauth.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.LiveSession{}, err
	}
	b.mu.Lock()
	expiry, ok := b.access[accessToken]
	b.mu.Unlock()
	if !ok || !b.clock.Now().Before(expiry) {
		return domainauth.LiveSession{}, apperrors.InvalidCredentials("invalid access token")
	}
	return domainauth.LiveSession{
		User:  b.user.Profile(),
		Roles: append([]string(nil), b.roles...),
	}, nil
}

func (b *Backend) issue() (domainauth.UserIdentity, error) {
	at, expiry, err := b.newAccessToken()
	if err != nil {
		return domainauth.UserIdentity{}, apperrors.Internal("issue access token")
	}
	rt, err := randomString(32)
	if err != nil {
		return domainauth.UserIdentity{}, apperrors.Internal("issue refresh token")
	}
	rt = "dev-rt-" + rt
	b.mu.Lock()
	b.refresh[rt] = struct{}{}
	b.mu.Unlock()

	return b.user.WithTokens(domainauth.TokenBundle{
		AccessToken:  at,
		RefreshToken: rt,
		Expiry:       expiry,
	}), nil
}

func (b *Backend) newAccessToken() (string, time.Time, error) {
	s, err := randomString(32)
	if err != nil {
		return "", time.Time{}, err
	}
	at := "dev-at-" + s
	expiry := b.clock.Now().Add(b.ttl)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.access[at] = expiry
	return at, expiry, nil
}
