package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	"github.com/target/lms-session/internal/mocks"
	authmocks "github.com/target/lms-session/internal/mocks/auth"
)

func signedInToken() domainauth.DurableSessionToken {
	return domainauth.NewDurableSessionToken(
		authmocks.Identity("1", "a@b.com", "tok1", "r1", testNow.Add(time.Hour)))
}

func TestSessionCookies_Read(t *testing.T) {
	ctrl := gomock.NewController(t)
	codec := mocks.NewMockTokenCodec(ctrl)
	cookies := &SessionCookies{Name: "lms_session", Codec: codec}

	t.Run("missing cookie is signed out", func(t *testing.T) {
		tok, err := cookies.Read(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.False(t, tok.Authenticated())
	})

	t.Run("decoded token", func(t *testing.T) {
		codec.EXPECT().Decode("good").Return(signedInToken(), nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "lms_session", Value: "good"})

		tok, err := cookies.Read(req)
		require.NoError(t, err)
		assert.Equal(t, "tok1", tok.Tokens().AccessToken)
	})

	t.Run("undecodable cookie is signed out with error", func(t *testing.T) {
		codec.EXPECT().Decode("bad").Return(domainauth.DurableSessionToken{}, errors.New("signature is invalid"))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "lms_session", Value: "bad"})

		tok, err := cookies.Read(req)
		require.Error(t, err)
		assert.False(t, tok.Authenticated())
	})
}

func TestSessionCookies_Write(t *testing.T) {
	ctrl := gomock.NewController(t)
	codec := mocks.NewMockTokenCodec(ctrl)
	cookies := &SessionCookies{
		Name:   "lms_session",
		Domain: "lms.example.com",
		MaxAge: 30 * time.Minute,
		Codec:  codec,
	}

	t.Run("secure behind tls proxy", func(t *testing.T) {
		codec.EXPECT().Encode(gomock.Any()).Return("sealed", nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()

		require.NoError(t, cookies.Write(rec, req, signedInToken()))

		ck := findCookie(rec, "lms_session")
		require.NotNil(t, ck)
		assert.Equal(t, "sealed", ck.Value)
		assert.Equal(t, "lms.example.com", ck.Domain)
		assert.True(t, ck.Secure)
		assert.True(t, ck.HttpOnly)
		assert.Equal(t, 1800, ck.MaxAge)
	})

	t.Run("signed out token clears without encoding", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, cookies.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), domainauth.DurableSessionToken{}))

		ck := findCookie(rec, "lms_session")
		require.NotNil(t, ck)
		assert.Equal(t, -1, ck.MaxAge)
		assert.False(t, ck.Secure)
	})

	t.Run("encode failure", func(t *testing.T) {
		codec.EXPECT().Encode(gomock.Any()).Return("", errors.New("encrypt failed"))
		rec := httptest.NewRecorder()

		err := cookies.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), signedInToken())
		require.Error(t, err)
		assert.Nil(t, findCookie(rec, "lms_session"))
	})
}
