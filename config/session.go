package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	defaultSessionCacheTTL    = 5 * time.Minute
	defaultRefreshMargin      = 5 * time.Minute
	defaultRefreshLease       = time.Hour
	defaultSessionMaxAge      = 30 * 24 * time.Hour
	defaultCacheSweepInterval = time.Minute
	defaultSessionCookieName  = "lms_session"
	minSigningKeyLength       = 32
	devSigningKey             = "dev-only-session-signing-key-change-me"
)

// SessionConfig controls the session cache, refresh policy and cookie transport.
type SessionConfig struct {
	CacheTTL           time.Duration `env:"SESSION_CACHE_TTL"            envDefault:"5m"`
	CacheMaxEntries    int           `env:"SESSION_CACHE_MAX_ENTRIES"    envDefault:"10000"`
	CacheSweepInterval time.Duration `env:"SESSION_CACHE_SWEEP_INTERVAL" envDefault:"1m"`

	RefreshMargin      time.Duration `env:"SESSION_REFRESH_MARGIN"       envDefault:"5m"`
	RefreshLease       time.Duration `env:"SESSION_REFRESH_LEASE"        envDefault:"1h"`
	RefreshReuseWindow time.Duration `env:"SESSION_REFRESH_REUSE_WINDOW" envDefault:"30s"`
	// AdoptRotatedRefreshToken stores a refresh token returned by a refresh exchange.
	AdoptRotatedRefreshToken bool `env:"SESSION_ADOPT_ROTATED_REFRESH_TOKEN" envDefault:"true"`

	CookieName   string        `env:"SESSION_COOKIE_NAME"   envDefault:"lms_session"`
	CookieDomain string        `env:"SESSION_COOKIE_DOMAIN"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	MaxAge       time.Duration `env:"SESSION_MAX_AGE"       envDefault:"720h"`

	// SigningKey signs the session cookie. Required outside development.
	SigningKey string `env:"SESSION_SIGNING_KEY"`
	// EncryptionKeys encrypt the cookie payload. The first key encrypts; all keys decrypt.
	EncryptionKeys []string `env:"SESSION_ENCRYPTION_KEYS" envSeparator:","`
}

// Sanitize restores defaults for non-positive durations and normalizes cookie settings.
// A negative RefreshReuseWindow is kept and disables reuse.
func (c *SessionConfig) Sanitize(isDev bool) {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultSessionCacheTTL
	}
	if c.CacheMaxEntries < 0 {
		c.CacheMaxEntries = 0
	}
	if c.CacheSweepInterval <= 0 {
		c.CacheSweepInterval = defaultCacheSweepInterval
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = defaultRefreshMargin
	}
	if c.RefreshLease <= 0 {
		c.RefreshLease = defaultRefreshLease
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaultSessionMaxAge
	}

	c.CookieName = strings.TrimSpace(c.CookieName)
	if c.CookieName == "" {
		c.CookieName = defaultSessionCookieName
	}
	c.CookieDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.CookieDomain)), ".")

	c.SigningKey = strings.TrimSpace(c.SigningKey)
	keys := c.EncryptionKeys[:0]
	for _, k := range c.EncryptionKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	c.EncryptionKeys = keys

	if isDev {
		c.CookieSecure = false
		if c.SigningKey == "" {
			c.SigningKey = devSigningKey
		}
	}
}

// Validate reports missing secrets and unsafe cookie settings.
func (c *SessionConfig) Validate(isDev bool) error {
	var errs []error
	if c.RefreshLease <= c.RefreshMargin {
		errs = append(errs, fmt.Errorf(
			"SESSION_REFRESH_LEASE (%s) must exceed SESSION_REFRESH_MARGIN (%s)", c.RefreshLease, c.RefreshMargin))
	}
	if len(c.SigningKey) < minSigningKeyLength {
		errs = append(errs, fmt.Errorf("SESSION_SIGNING_KEY must be at least %d characters", minSigningKeyLength))
	}
	if !isDev && len(c.EncryptionKeys) == 0 {
		errs = append(errs, errors.New("SESSION_ENCRYPTION_KEYS is required outside development"))
	}
	if err := validateCookieName(c.CookieName); err != nil {
		errs = append(errs, err)
	}
	if err := validateCookieDomain(c.CookieDomain); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateCookieName(name string) error {
	if name == "" {
		return errors.New("SESSION_COOKIE_NAME is required")
	}
	if strings.ContainsAny(name, " \t\r\n;,=\"") {
		return fmt.Errorf("SESSION_COOKIE_NAME %q contains invalid characters", name)
	}
	return nil
}

// validateCookieDomain rejects domains a browser would refuse, such as public suffixes.
func validateCookieDomain(domain string) error {
	if domain == "" || domain == "localhost" {
		return nil
	}
	suffix, _ := publicsuffix.PublicSuffix(domain)
	if suffix == domain {
		return fmt.Errorf("SESSION_COOKIE_DOMAIN %q is a public suffix", domain)
	}
	return nil
}
