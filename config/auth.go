package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeBackend signs users in against the LMS backend.
	AuthModeBackend AuthMode = "backend"
	// AuthModeMock uses the in-process dev backend and identity provider (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "backend", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: backend, mock)", v)
	}
}

// BackendConfig points at the LMS authentication backend.
type BackendConfig struct {
	URL     string        `env:"URL"     envDefault:"http://localhost:3000/api/auth"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	// ErrorMessageExpr is a JMESPath expression that extracts a human-readable
	// message from backend error bodies.
	ErrorMessageExpr string `env:"ERROR_MESSAGE_EXPR" envDefault:"message || error.message || error"`
}

// OAuthConfig contains OAuth/OIDC configuration for the social sign-in provider.
// The provider is enabled only when DiscoveryURL, ClientID and ClientSecret are set.
type OAuthConfig struct {
	Provider     string `env:"PROVIDER"      envDefault:"google"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/oauth/google/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// Enabled reports whether the provider is fully configured.
func (o OAuthConfig) Enabled() bool {
	return o.DiscoveryURL != "" && o.ClientID != "" && o.ClientSecret != ""
}

// DevAuthConfig controls the mock/dev identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID    string        `env:"USER_ID"    envDefault:"1"`
	Email     string        `env:"EMAIL"      envDefault:"dev@example.com"`
	Password  string        `env:"PASSWORD"`
	FirstName string        `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string        `env:"LAST_NAME"  envDefault:"User"`
	Roles     []string      `env:"ROLES"      envDefault:"student"         envSeparator:";"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"  envDefault:"1h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential exchanger and providers are wired.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"backend"`

	// Backend configuration (used when Mode=backend).
	Backend BackendConfig `envPrefix:"AUTH_BACKEND_"`

	// OAuth configuration (optional, Mode=backend).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// PostLoginRedirect is where the OAuth callback sends the browser.
	PostLoginRedirect string `env:"AUTH_POST_LOGIN_REDIRECT" envDefault:"/"`
}

// Sanitize trims values and restores defaults for unusable settings.
func (c *AuthConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = AuthModeBackend
	}
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	c.Backend.ErrorMessageExpr = strings.TrimSpace(c.Backend.ErrorMessageExpr)

	c.OAuth.Provider = strings.ToLower(strings.TrimSpace(c.OAuth.Provider))
	c.OAuth.DiscoveryURL = strings.TrimSpace(c.OAuth.DiscoveryURL)

	c.PostLoginRedirect = strings.TrimSpace(c.PostLoginRedirect)
	if !isLocalPath(c.PostLoginRedirect) {
		c.PostLoginRedirect = "/"
	}
}

// Validate reports unusable auth settings.
func (c *AuthConfig) Validate() error {
	if c.Mode != AuthModeBackend {
		return nil
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("AUTH_BACKEND_URL must be an absolute http(s) URL, got %q", c.Backend.URL)
	}
	if c.OAuth.Enabled() && c.OAuth.Provider == "" {
		return errors.New("OAUTH_PROVIDER is required when OAuth is configured")
	}
	return nil
}

// isLocalPath reports whether p is a same-origin absolute path.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}
