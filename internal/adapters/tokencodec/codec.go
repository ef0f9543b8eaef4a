// Package tokencodec encodes durable session tokens as signed, encrypted JWTs
// so they can travel between requests in a cookie.
package tokencodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/target/lms-session/internal/data"
	"github.com/target/lms-session/internal/data/cryptoutil"
	domainauth "github.com/target/lms-session/internal/domain/auth"
)

const (
	// DefaultIssuer is stamped into every encoded token.
	DefaultIssuer = "lms-session"
	// DefaultMaxAge bounds how long an encoded token is accepted.
	DefaultMaxAge = 30 * 24 * time.Hour
)

// ErrInvalidToken is returned when a raw value cannot be decoded into a token.
var ErrInvalidToken = errors.New("invalid session token")

// Options configure a Codec.
type Options struct {
	SigningKey   []byte
	Encryptor    cryptoutil.Encryptor
	MaxAge       time.Duration
	Issuer       string
	TimeProvider data.TimeProvider
}

// Codec implements ports.TokenCodec.
type Codec struct {
	signingKey []byte
	encryptor  cryptoutil.Encryptor
	maxAge     time.Duration
	issuer     string
	clock      data.TimeProvider
}

type claims struct {
	jwt.RegisteredClaims
	Payload string `json:"pld"`
}

// New constructs a Codec. A signing key is required.
func New(opts Options) (*Codec, error) {
	if len(opts.SigningKey) == 0 {
		return nil, errors.New("tokencodec: signing key is required")
	}
	enc := opts.Encryptor
	if enc == nil {
		enc = cryptoutil.NoopEncryptor{}
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	key := make([]byte, len(opts.SigningKey))
	copy(key, opts.SigningKey)
	return &Codec{
		signingKey: key,
		encryptor:  enc,
		maxAge:     maxAge,
		issuer:     issuer,
		clock:      data.DefaultTimeProvider(opts.TimeProvider),
	}, nil
}

// MaxAge reports how long encoded tokens remain valid.
func (c *Codec) MaxAge() time.Duration { return c.maxAge }

// Encode serializes tok into a compact signed string.
func (c *Codec) Encode(tok domainauth.DurableSessionToken) (string, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("marshal session token: %w", err)
	}
	payload, err := c.encryptor.Encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("encrypt session token: %w", err)
	}

	now := c.clock.Now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
			ID:        uuid.NewString(),
		},
		Payload: payload,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode verifies and decrypts raw. An empty value decodes to the unauthenticated token.
func (c *Codec) Decode(raw string) (domainauth.DurableSessionToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domainauth.DurableSessionToken{}, nil
	}

	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, c.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		return domainauth.DurableSessionToken{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	plain, err := c.encryptor.Decrypt(cl.Payload)
	if err != nil {
		return domainauth.DurableSessionToken{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var tok domainauth.DurableSessionToken
	if err := json.Unmarshal(plain, &tok); err != nil {
		return domainauth.DurableSessionToken{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return tok, nil
}

func (c *Codec) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.signingKey, nil
}
