package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/lms-session/internal/adapters/backend"
	"github.com/target/lms-session/internal/data"
	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/mocks"
	authmocks "github.com/target/lms-session/internal/mocks/auth"
	"github.com/target/lms-session/internal/ports"
	"github.com/target/lms-session/internal/testutil"
)

type sessionFixture struct {
	svc   *SessionService
	clock *data.FixedTimeProvider
	cache *data.SessionCache
}

func newSessionFixture(t *testing.T, exchanger ports.CredentialExchanger) sessionFixture {
	t.Helper()
	clock := data.NewFixedTimeProvider(refreshTestNow)
	cache := data.NewSessionCache(data.SessionCacheOptions{TTL: 5 * time.Minute, TimeProvider: clock})
	svc := NewSessionService(SessionServiceOptions{
		Exchanger: exchanger,
		Refresh:   NewRefreshPolicy(RefreshPolicyOptions{Exchanger: exchanger, TimeProvider: clock}),
		Projector: NewProjector(ProjectorOptions{Exchanger: exchanger, Cache: cache}),
	})
	return sessionFixture{svc: svc, clock: clock, cache: cache}
}

func TestSessionService_SignInWithPasswordAgainstBackend(t *testing.T) {
	stub := testutil.NewBackendStub(t)
	expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	stub.RespondJSON(testutil.PathLogin, http.StatusOK, testutil.LoginSuccess(1, "a@b.com", "tok1", "r1", expiry))

	client, err := backend.NewClient(backend.Config{BaseURL: stub.URL()}, backend.WithHTTPClient(stub.Client()))
	require.NoError(t, err)
	f := newSessionFixture(t, client)

	tok, err := f.svc.SignIn(context.Background(), SignInInput{
		Account:  domainauth.CredentialsAccount(),
		Email:    "a@b.com",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, domainauth.StateAuthenticated, f.svc.State(tok))
	require.NotNil(t, tok.User)
	assert.Equal(t, domainauth.UserID("1"), tok.User.ID)
	assert.Equal(t, "tok1", tok.User.Tokens.AccessToken)
	assert.Equal(t, "r1", tok.User.Tokens.RefreshToken)
	assert.True(t, tok.User.Tokens.Expiry.After(time.Now()))
}

func TestSessionService_SignInFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    SignInInput
		setup func(*mocks.MockCredentialExchanger)
		check func(error) bool
	}{
		{
			name: "invalid credentials",
			in:   SignInInput{Account: domainauth.CredentialsAccount(), Email: "a@b.com", Password: "wrong"},
			setup: func(m *mocks.MockCredentialExchanger) {
				m.EXPECT().LoginWithPassword(gomock.Any(), "a@b.com", "wrong").
					Return(domainauth.UserIdentity{}, apperrors.InvalidCredentials("invalid email or password"))
			},
			check: apperrors.IsInvalidCredentials,
		},
		{
			name: "network failure",
			in:   SignInInput{Account: domainauth.CredentialsAccount(), Email: "a@b.com", Password: "secret"},
			setup: func(m *mocks.MockCredentialExchanger) {
				m.EXPECT().LoginWithPassword(gomock.Any(), "a@b.com", "secret").
					Return(domainauth.UserIdentity{}, apperrors.NetworkFailuref("backend unreachable"))
			},
			check: apperrors.IsNetworkFailure,
		},
		{
			name: "oauth rejected",
			in:   SignInInput{Account: domainauth.OAuthAccount("google", "pt"), Email: "g@b.com"},
			setup: func(m *mocks.MockCredentialExchanger) {
				m.EXPECT().LoginWithOAuthToken(gomock.Any(), "g@b.com", "google", "pt").
					Return(domainauth.UserIdentity{}, apperrors.InvalidCredentials("no such account"))
			},
			check: apperrors.IsInvalidCredentials,
		},
		{
			name:  "oauth account without token",
			in:    SignInInput{Account: domainauth.OAuthAccount("google", ""), Email: "g@b.com"},
			setup: func(*mocks.MockCredentialExchanger) {},
			check: apperrors.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			exchanger := mocks.NewMockCredentialExchanger(ctrl)
			tt.setup(exchanger)
			f := newSessionFixture(t, exchanger)

			tok, err := f.svc.SignIn(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Nil(t, tok.User)
			assert.Equal(t, domainauth.StateUnauthenticated, f.svc.State(tok))
		})
	}
}

func TestSessionService_SignInWithOAuth(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	exchanger := mocks.NewMockCredentialExchanger(ctrl)
	exchanger.EXPECT().LoginWithOAuthToken(gomock.Any(), "g@b.com", "google", "provider-token").
		Return(authmocks.Identity("7", "g@b.com", "tok-g", "r-g", refreshTestNow.Add(time.Hour)), nil)
	f := newSessionFixture(t, exchanger)

	tok, err := f.svc.SignIn(context.Background(), SignInInput{
		Account: domainauth.OAuthAccount("google", "provider-token"),
		Email:   " g@b.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.StateAuthenticated, tok.State())
	assert.Equal(t, "tok-g", tok.Tokens().AccessToken)
}

func TestSessionService_EvaluateRefreshWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		untilExpiry time.Duration
		wantCalls   int
	}{
		{"four minutes before expiry refreshes", 4 * time.Minute, 1},
		{"ten minutes before expiry does not", 10 * time.Minute, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := authmocks.NewStubExchanger()
			f := newSessionFixture(t, stub)
			expiry := refreshTestNow.Add(tt.untilExpiry)
			tok := domainauth.NewDurableSessionToken(authmocks.Identity("1", "a@b.com", "tok1", "r1", expiry))

			next, refreshed, err := f.svc.Evaluate(context.Background(), tok)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, stub.RefreshCalls())
			assert.Equal(t, tt.wantCalls == 1, refreshed)
			if refreshed {
				assert.NotEqual(t, "tok1", next.Tokens().AccessToken)
				assert.Equal(t, refreshTestNow.Add(DefaultRefreshLease), next.Tokens().Expiry)
				assert.Equal(t, "tok1", tok.Tokens().AccessToken, "input token must not be mutated")
			} else {
				assert.Equal(t, tok, next)
			}
		})
	}
}

func TestSessionService_EvaluateRefreshFailureFailsOpen(t *testing.T) {
	t.Parallel()

	stub := authmocks.NewStubExchanger()
	stub.RefreshFunc = func(context.Context, string) (domainauth.RefreshResult, error) {
		return domainauth.RefreshResult{}, apperrors.NetworkFailuref("connection reset")
	}
	f := newSessionFixture(t, stub)
	tok := domainauth.NewDurableSessionToken(authmocks.Identity("1", "a@b.com", "tok1", "r1", refreshTestNow.Add(time.Minute)))

	next, refreshed, err := f.svc.Evaluate(context.Background(), tok)
	require.Error(t, err)
	assert.True(t, apperrors.IsRefreshFailure(err))
	assert.False(t, refreshed)
	assert.Equal(t, tok, next)
	assert.Equal(t, domainauth.StateAuthenticated, f.svc.State(next))
}

func TestSessionService_EvaluateSignedOutIsNoop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := newSessionFixture(t, mocks.NewMockCredentialExchanger(ctrl))

	next, refreshed, err := f.svc.Evaluate(context.Background(), domainauth.DurableSessionToken{})
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.False(t, next.Authenticated())
}

func TestSessionService_ResolveRefreshesBeforeProjecting(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	exchanger := mocks.NewMockCredentialExchanger(ctrl)
	gomock.InOrder(
		exchanger.EXPECT().RefreshAccessToken(gomock.Any(), "r1").
			Return(domainauth.RefreshResult{AccessToken: "tok2"}, nil),
		exchanger.EXPECT().FetchSession(gomock.Any(), "tok2").
			Return(domainauth.LiveSession{User: domainauth.UserProfile{ID: "1"}, Roles: []string{"student"}}, nil),
	)
	f := newSessionFixture(t, exchanger)
	tok := domainauth.NewDurableSessionToken(authmocks.Identity("1", "a@b.com", "tok1", "r1", refreshTestNow.Add(2*time.Minute)))

	res, err := f.svc.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)
	assert.NoError(t, res.RefreshErr)
	assert.Equal(t, "tok2", res.Token.Tokens().AccessToken)
	assert.Equal(t, "tok2", res.View.Tokens.AccessToken)

	_, hit := f.cache.Get(data.SessionCacheKey("tok2"))
	assert.True(t, hit)
	_, hit = f.cache.Get(data.SessionCacheKey("tok1"))
	assert.False(t, hit)
}

func TestSessionService_ResolveKeepsSessionOnRefreshFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	exchanger := mocks.NewMockCredentialExchanger(ctrl)
	exchanger.EXPECT().RefreshAccessToken(gomock.Any(), "r1").
		Return(domainauth.RefreshResult{}, apperrors.NetworkFailuref("timeout"))
	exchanger.EXPECT().FetchSession(gomock.Any(), "tok1").
		Return(domainauth.LiveSession{User: domainauth.UserProfile{ID: "1"}}, nil)
	f := newSessionFixture(t, exchanger)
	tok := domainauth.NewDurableSessionToken(authmocks.Identity("1", "a@b.com", "tok1", "r1", refreshTestNow.Add(time.Minute)))

	res, err := f.svc.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.False(t, res.Refreshed)
	assert.True(t, apperrors.IsRefreshFailure(res.RefreshErr))
	assert.Equal(t, tok, res.Token)
	assert.True(t, res.View.Authenticated)
	assert.Equal(t, "tok1", res.View.Tokens.AccessToken)
}

func TestSessionService_ResolveProjectionFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	exchanger := mocks.NewMockCredentialExchanger(ctrl)
	exchanger.EXPECT().FetchSession(gomock.Any(), "tok1").
		Return(domainauth.LiveSession{}, apperrors.MalformedResponse(nil, "session response has no user"))
	f := newSessionFixture(t, exchanger)
	tok := domainauth.NewDurableSessionToken(authmocks.Identity("1", "a@b.com", "tok1", "r1", refreshTestNow.Add(time.Hour)))

	res, err := f.svc.Resolve(context.Background(), tok)
	require.Error(t, err)
	assert.True(t, apperrors.IsNetworkFailure(err))
	assert.Equal(t, tok, res.Token)
}

func TestSessionService_CachedProjectionAcrossRequests(t *testing.T) {
	t.Parallel()

	stub := authmocks.NewStubExchanger()
	stub.AddUser("a@b.com", authmocks.StubUser{
		Password: "secret",
		Identity: authmocks.Identity("1", "a@b.com", "tok1", "r1", refreshTestNow.Add(time.Hour)),
		Roles:    []string{"student"},
	})
	f := newSessionFixture(t, stub)
	ctx := context.Background()

	tok, err := f.svc.SignIn(ctx, SignInInput{Account: domainauth.CredentialsAccount(), Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)

	for range 3 {
		res, err := f.svc.Resolve(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, []string{"student"}, res.View.Roles)
		f.clock.AddTime(time.Minute)
	}
	assert.Equal(t, 1, stub.SessionCalls())
	assert.Equal(t, 0, stub.RefreshCalls())
}

func TestSessionService_SignOut(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := newSessionFixture(t, mocks.NewMockCredentialExchanger(ctrl))
	tok := domainauth.NewDurableSessionToken(authmocks.Identity("1", "a@b.com", "tok1", "r1", refreshTestNow.Add(time.Hour)))

	out := f.svc.SignOut(context.Background(), tok)
	assert.Nil(t, out.User)
	assert.Equal(t, domainauth.StateUnauthenticated, f.svc.State(out))

	view, err := f.svc.Project(context.Background(), out)
	require.NoError(t, err)
	assert.False(t, view.Authenticated)
}
