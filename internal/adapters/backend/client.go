package backend

// Package backend implements the credential exchange against the LMS backend:
// password and OAuth logins, token refresh, and live session lookups.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/observability/metrics"
	"github.com/target/lms-session/internal/observability/statsd"
)

const (
	// DefaultTimeout bounds every backend exchange.
	DefaultTimeout = 10 * time.Second

	// DefaultErrorMessageExpr extracts a human-readable message from backend error bodies.
	DefaultErrorMessageExpr = "message || error.message || error"

	maxResponseBytes = 1 << 20
)

// Endpoint names used for paths and metric tags.
const (
	EndpointLogin      = "login"
	EndpointLoginOAuth = "login_oauth"
	EndpointRefresh    = "refresh"
	EndpointSession    = "session"
)

var endpointPaths = map[string]string{
	EndpointLogin:      "/login",
	EndpointLoginOAuth: "/login/oauth",
	EndpointRefresh:    "/refresh",
	EndpointSession:    "/session",
}

// Config configures the backend client.
type Config struct {
	// BaseURL is the backend API root, e.g. https://lms.example.com/api.
	BaseURL string
	// Timeout bounds each request; zero uses DefaultTimeout.
	Timeout time.Duration
	// ErrorMessageExpr is a JMESPath expression evaluated against error bodies.
	ErrorMessageExpr string
}

// Client performs credential exchanges against the LMS backend.
// It holds no session state and is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	metrics    statsd.Sink
	errorExpr  string
}

// Option configures the backend client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the sink receiving backend request metrics.
func WithMetrics(sink statsd.Sink) Option {
	return func(c *Client) {
		c.metrics = sink
	}
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base URL must be http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("backend base URL must include a host")
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	expr := strings.TrimSpace(cfg.ErrorMessageExpr)
	if expr == "" {
		expr = DefaultErrorMessageExpr
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile error message expression: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		errorExpr:  expr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthLoginRequest struct {
	Email         string `json:"email"`
	Provider      string `json:"provider"`
	ProviderToken string `json:"provider_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginEnvelope struct {
	Success bool                     `json:"success"`
	Data    *domainauth.UserIdentity `json:"data"`
	Message string                   `json:"message"`
}

type refreshPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       int64  `json:"expiry"`
}

type refreshEnvelope struct {
	refreshPayload
	Success *bool           `json:"success"`
	Data    *refreshPayload `json:"data"`
	Message string          `json:"message"`
}

type sessionPayload struct {
	User  *domainauth.UserProfile `json:"user"`
	Roles []string                `json:"roles"`
}

// LoginWithPassword exchanges an email/password pair for an identity.
func (c *Client) LoginWithPassword(ctx context.Context, email, password string) (domainauth.UserIdentity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("email and password are required")
	}
	return c.login(ctx, EndpointLogin, loginRequest{Email: email, Password: password})
}

// LoginWithOAuthToken exchanges a provider access token for an identity.
func (c *Client) LoginWithOAuthToken(
	ctx context.Context,
	email, provider, providerToken string,
) (domainauth.UserIdentity, error) {
	if provider == "" || providerToken == "" {
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials("provider and provider token are required")
	}
	return c.login(ctx, EndpointLoginOAuth, oauthLoginRequest{
		Email:         email,
		Provider:      provider,
		ProviderToken: providerToken,
	})
}

func (c *Client) login(ctx context.Context, endpoint string, body any) (domainauth.UserIdentity, error) {
	resp, err := c.do(ctx, c.httpClient, endpoint, http.MethodPost, body)
	if err != nil {
		return domainauth.UserIdentity{}, err
	}

	var env loginEnvelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return domainauth.UserIdentity{}, apperrors.MalformedResponse(err, "decode login response")
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "invalid credentials"
		}
		return domainauth.UserIdentity{}, apperrors.InvalidCredentials(msg)
	}
	if env.Data == nil {
		return domainauth.UserIdentity{}, apperrors.MalformedResponse(nil, "login response has no user data")
	}
	if env.Data.Tokens.AccessToken == "" {
		return domainauth.UserIdentity{}, apperrors.MalformedResponse(nil, "login response has no access token")
	}
	if env.Data.Tokens.Expiry.IsZero() {
		return domainauth.UserIdentity{}, apperrors.MalformedResponse(nil, "login response has no token expiry")
	}
	return *env.Data, nil
}

// RefreshAccessToken trades a refresh token for a new access token. The backend
// may answer with a bare payload or wrap it in a success envelope.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (domainauth.RefreshResult, error) {
	if refreshToken == "" {
		return domainauth.RefreshResult{}, apperrors.InvalidCredentials("refresh token is required")
	}
	resp, err := c.do(ctx, c.httpClient, EndpointRefresh, http.MethodPost, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return domainauth.RefreshResult{}, err
	}

	var env refreshEnvelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return domainauth.RefreshResult{}, apperrors.MalformedResponse(err, "decode refresh response")
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = "refresh token rejected"
		}
		return domainauth.RefreshResult{}, apperrors.InvalidCredentials(msg)
	}

	payload := env.refreshPayload
	if payload.AccessToken == "" && env.Data != nil {
		payload = *env.Data
	}
	if payload.AccessToken == "" {
		return domainauth.RefreshResult{}, apperrors.MalformedResponse(nil, "refresh response has no access token")
	}

	out := domainauth.RefreshResult{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}
	if payload.Expiry > 0 {
		out.Expiry = time.UnixMilli(payload.Expiry).UTC()
	}
	return out, nil
}

// FetchSession returns the live user and roles for accessToken. The token is
// attached as a bearer credential by an oauth2 transport.
func (c *Client) FetchSession(ctx context.Context, accessToken string) (domainauth.LiveSession, error) {
	if accessToken == "" {
		return domainauth.LiveSession{}, apperrors.InvalidCredentials("access token is required")
	}

	base := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	authed.Timeout = c.httpClient.Timeout

	resp, err := c.do(ctx, authed, EndpointSession, http.MethodGet, nil)
	if err != nil {
		return domainauth.LiveSession{}, err
	}

	var payload sessionPayload
	if err := json.Unmarshal(resp, &payload); err != nil {
		return domainauth.LiveSession{}, apperrors.MalformedResponse(err, "decode session response")
	}
	if payload.User == nil {
		return domainauth.LiveSession{}, apperrors.MalformedResponse(nil, "session response has no user")
	}
	return domainauth.LiveSession{User: *payload.User, Roles: payload.Roles}, nil
}

// do sends one JSON request and returns the body of a 2xx response. Non-2xx
// responses and transport failures are mapped to typed errors.
func (c *Client) do(ctx context.Context, hc *http.Client, endpoint, method string, body any) ([]byte, error) {
	start := time.Now()
	status, data, err := c.roundTrip(ctx, hc, endpoint, method, body)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		c.logger.DebugContext(ctx, "backend request failed",
			"endpoint", endpoint,
			"status", status,
			"error", err)
	}
	metrics.EmitBackendRequest(c.metrics, metrics.BackendMetric{
		Endpoint: endpoint,
		Status:   status,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
	return data, err
}

func (c *Client) roundTrip(
	ctx context.Context,
	hc *http.Client,
	endpoint, method string,
	body any,
) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(endpoint), reader)
	if err != nil {
		return 0, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, transportError(ctx, endpoint, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, data, nil
	}
	return resp.StatusCode, nil, c.statusError(endpoint, resp.StatusCode, data)
}

func (c *Client) endpointURL(endpoint string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + endpointPaths[endpoint]
	return u.String()
}

func (c *Client) statusError(endpoint string, status int, body []byte) error {
	msg := c.errorMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("%s request failed: %s", endpoint, http.StatusText(status))
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return apperrors.InvalidCredentials(msg)
	default:
		return apperrors.NetworkFailuref("%s request failed with status %d: %s", endpoint, status, msg)
	}
}

// errorMessage evaluates the configured expression against a JSON error body.
func (c *Client) errorMessage(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	out, err := jmespath.Search(c.errorExpr, doc)
	if err != nil {
		return ""
	}
	s, ok := out.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func transportError(ctx context.Context, endpoint string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "%s request canceled", endpoint)
	}
	var uerr *url.Error
	if (errors.As(err, &uerr) && uerr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout(err, endpoint+" request timed out")
	}
	return apperrors.NetworkFailure(err, endpoint+" request failed")
}
