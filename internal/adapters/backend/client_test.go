package backend

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/observability/statsd"
	"github.com/target/lms-session/internal/testutil"
)

func newTestClient(t *testing.T, stub *testutil.BackendStub, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(stub.Client())}, opts...)
	c, err := NewClient(Config{BaseURL: stub.URL(), Timeout: 2 * time.Second}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing url", Config{}, "backend base URL is required"},
		{"bad scheme", Config{BaseURL: "ftp://lms.example.com"}, "must be http or https"},
		{"no host", Config{BaseURL: "http://"}, "must include a host"},
		{"bad expression", Config{BaseURL: "http://lms.example.com", ErrorMessageExpr: "message ||"}, "compile error message expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	c, err := NewClient(Config{BaseURL: "https://lms.example.com/api/"})
	require.NoError(t, err)
	assert.Equal(t, "https://lms.example.com/api/login", c.endpointURL(EndpointLogin))
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestLoginWithPassword_Success(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	stub.RespondJSON(testutil.PathLogin, http.StatusOK, testutil.LoginSuccess(1, "a@b.com", "tok1", "r1", expiry))

	rec := &statsd.Recorder{}
	c := newTestClient(t, stub, WithMetrics(rec))

	user, err := c.LoginWithPassword(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, domainauth.UserID("1"), user.ID)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, "tok1", user.Tokens.AccessToken)
	assert.Equal(t, "r1", user.Tokens.RefreshToken)
	assert.True(t, user.Tokens.Expiry.Equal(expiry))

	reqs := stub.Requests(testutil.PathLogin)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "a@b.com", reqs[0].Body["email"])
	assert.Equal(t, "secret", reqs[0].Body["password"])
	assert.Empty(t, reqs[0].Authorization)

	assert.Equal(t, 1.0, rec.Sum("backend.request", map[string]string{"endpoint": EndpointLogin, "result": "success"}))
}

func TestLoginWithPassword_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		check     func(error) bool
		wantInMsg string
	}{
		{
			name:      "unauthorized with message",
			status:    http.StatusUnauthorized,
			body:      `{"message":"Invalid email or password"}`,
			check:     apperrors.IsInvalidCredentials,
			wantInMsg: "Invalid email or password",
		},
		{
			name:      "nested error message",
			status:    http.StatusForbidden,
			body:      `{"error":{"message":"account locked"}}`,
			check:     apperrors.IsInvalidCredentials,
			wantInMsg: "account locked",
		},
		{
			name:      "success false in 200",
			status:    http.StatusOK,
			body:      `{"success":false,"message":"wrong password"}`,
			check:     apperrors.IsInvalidCredentials,
			wantInMsg: "wrong password",
		},
		{
			name:      "server error",
			status:    http.StatusBadGateway,
			body:      `<html>bad gateway</html>`,
			check:     apperrors.IsNetworkFailure,
			wantInMsg: "status 502",
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"success":tru`,
			check:  apperrors.IsMalformedResponse,
		},
		{
			name:   "missing data",
			status: http.StatusOK,
			body:   `{"success":true}`,
			check:  apperrors.IsMalformedResponse,
		},
		{
			name:   "missing access token",
			status: http.StatusOK,
			body:   `{"success":true,"data":{"id":1,"tokens":{"refresh_token":"r1","expiry":1700000000000}}}`,
			check:  apperrors.IsMalformedResponse,
		},
		{
			name:   "missing expiry",
			status: http.StatusOK,
			body:   `{"success":true,"data":{"id":1,"tokens":{"access_token":"a","refresh_token":"r1"}}}`,
			check:  apperrors.IsMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := testutil.NewBackendStub(t)
			stub.RespondRaw(testutil.PathLogin, tt.status, tt.body)
			c := newTestClient(t, stub)

			_, err := c.LoginWithPassword(context.Background(), "a@b.com", "secret")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error class: %v", err)
			if tt.wantInMsg != "" {
				assert.Contains(t, err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestLoginWithPassword_EmptyCredentialsSkipNetwork(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	c := newTestClient(t, stub)

	_, err := c.LoginWithPassword(context.Background(), "", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidCredentials(err))
	assert.Equal(t, 0, stub.Calls(testutil.PathLogin))
}

func TestLoginWithPassword_Unreachable(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.LoginWithPassword(context.Background(), "a@b.com", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsNetworkFailure(err))
}

func TestLoginWithPassword_Timeout(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	stub.Handle(testutil.PathLogin, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c, err := NewClient(Config{BaseURL: stub.URL(), Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.LoginWithPassword(context.Background(), "a@b.com", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.True(t, apperrors.IsNetworkFailure(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestLoginWithPassword_Canceled(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	stub.RespondJSON(testutil.PathLogin, http.StatusOK, testutil.LoginSuccess(1, "a@b.com", "tok1", "r1", time.Now().Add(time.Hour)))
	c := newTestClient(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.LoginWithPassword(ctx, "a@b.com", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsCanceled(err))
}

func TestLoginWithOAuthToken(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	expiry := time.Now().Add(time.Hour)
	stub.RespondJSON(testutil.PathLoginOAuth, http.StatusOK, testutil.LoginSuccess("u-7", "g@b.com", "tok-g", "r-g", expiry))
	c := newTestClient(t, stub)

	user, err := c.LoginWithOAuthToken(context.Background(), "g@b.com", "google", "provider-token")
	require.NoError(t, err)
	assert.Equal(t, domainauth.UserID("u-7"), user.ID)
	assert.Equal(t, "tok-g", user.Tokens.AccessToken)

	reqs := stub.Requests(testutil.PathLoginOAuth)
	require.Len(t, reqs, 1)
	assert.Equal(t, "google", reqs[0].Body["provider"])
	assert.Equal(t, "provider-token", reqs[0].Body["provider_token"])
	assert.Equal(t, "g@b.com", reqs[0].Body["email"])

	_, err = c.LoginWithOAuthToken(context.Background(), "g@b.com", "google", "")
	assert.True(t, apperrors.IsInvalidCredentials(err))
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("bare payload", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondJSON(testutil.PathRefresh, http.StatusOK, map[string]any{"access_token": "tok2"})
		c := newTestClient(t, stub)

		res, err := c.RefreshAccessToken(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, "tok2", res.AccessToken)
		assert.Empty(t, res.RefreshToken)
		assert.True(t, res.Expiry.IsZero())

		reqs := stub.Requests(testutil.PathRefresh)
		require.Len(t, reqs, 1)
		assert.Equal(t, "r1", reqs[0].Body["refresh_token"])
	})

	t.Run("enveloped payload with rotation", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondJSON(testutil.PathRefresh, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"access_token": "tok3", "refresh_token": "r2", "expiry": 1700000000000},
		})
		c := newTestClient(t, stub)

		res, err := c.RefreshAccessToken(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, "tok3", res.AccessToken)
		assert.Equal(t, "r2", res.RefreshToken)
		assert.Equal(t, int64(1700000000000), res.Expiry.UnixMilli())
	})

	t.Run("rejected", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondRaw(testutil.PathRefresh, http.StatusUnauthorized, `{"error":"refresh token expired"}`)
		c := newTestClient(t, stub)

		_, err := c.RefreshAccessToken(context.Background(), "r1")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidCredentials(err))
		assert.Contains(t, err.Error(), "refresh token expired")
	})

	t.Run("missing access token", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondRaw(testutil.PathRefresh, http.StatusOK, `{}`)
		c := newTestClient(t, stub)

		_, err := c.RefreshAccessToken(context.Background(), "r1")
		assert.True(t, apperrors.IsMalformedResponse(err))
	})

	t.Run("service unavailable", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondRaw(testutil.PathRefresh, http.StatusServiceUnavailable, ``)
		c := newTestClient(t, stub)

		_, err := c.RefreshAccessToken(context.Background(), "r1")
		assert.True(t, apperrors.IsNetworkFailure(err))
	})
}

func TestFetchSession(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	stub.RespondJSON(testutil.PathSession, http.StatusOK, testutil.SessionBody(1, "a@b.com", "student", "grader"))
	c := newTestClient(t, stub)

	live, err := c.FetchSession(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.UserID("1"), live.User.ID)
	assert.Equal(t, []string{"student", "grader"}, live.Roles)

	reqs := stub.Requests(testutil.PathSession)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "Bearer tok1", reqs[0].Authorization)
}

func TestFetchSession_Errors(t *testing.T) {
	t.Run("rejected token", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondRaw(testutil.PathSession, http.StatusUnauthorized, `{"message":"token expired"}`)
		c := newTestClient(t, stub)

		_, err := c.FetchSession(context.Background(), "tok1")
		assert.True(t, apperrors.IsInvalidCredentials(err))
	})

	t.Run("no user", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		stub.RespondRaw(testutil.PathSession, http.StatusOK, `{"roles":["x"]}`)
		c := newTestClient(t, stub)

		_, err := c.FetchSession(context.Background(), "tok1")
		assert.True(t, apperrors.IsMalformedResponse(err))
	})

	t.Run("empty token", func(t *testing.T) {
		stub := testutil.NewBackendStub(t)
		c := newTestClient(t, stub)

		_, err := c.FetchSession(context.Background(), "")
		assert.True(t, apperrors.IsInvalidCredentials(err))
		assert.Equal(t, 0, stub.Calls(testutil.PathSession))
	})
}

func TestErrorMessageExpression(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	stub.RespondRaw(testutil.PathLogin, http.StatusUnauthorized, `{"errors":[{"detail":"bad password"}]}`)

	c, err := NewClient(Config{BaseURL: stub.URL(), ErrorMessageExpr: "errors[0].detail"}, WithHTTPClient(stub.Client()))
	require.NoError(t, err)

	_, err = c.LoginWithPassword(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.Equal(t, "bad password", apperrors.GetMessage(err))
}

func TestErrorMessage_NonStringFallsBack(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://lms.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "", c.errorMessage([]byte(`{"error":{"code":42}}`)))
	assert.Equal(t, "", c.errorMessage([]byte(`not json`)))
	assert.Equal(t, "", c.errorMessage(nil))
	assert.Equal(t, "boom", c.errorMessage([]byte(`{"error":"boom"}`)))
}
