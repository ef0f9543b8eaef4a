package httpx

import (
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	"github.com/target/lms-session/internal/ports"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthNonceCookie    = "oauth_nonce"
	postLoginCookie     = "post_login_redirect"
	oauthCookieLifetime = 10 * time.Minute
)

// SessionCookies moves durable session tokens in and out of the session cookie.
type SessionCookies struct {
	Name   string
	Domain string
	// Secure forces the Secure attribute; it is also set for TLS or X-Forwarded-Proto=https requests.
	Secure bool
	MaxAge time.Duration
	Codec  ports.TokenCodec
}

// Read decodes the session cookie. A missing cookie yields the unauthenticated
// token; an undecodable one yields it too, along with the decode error.
func (c *SessionCookies) Read(r *http.Request) (domainauth.DurableSessionToken, error) {
	ck, err := r.Cookie(c.Name)
	if err != nil || ck.Value == "" {
		return domainauth.DurableSessionToken{}, nil
	}
	tok, err := c.Codec.Decode(ck.Value)
	if err != nil {
		return domainauth.DurableSessionToken{}, err
	}
	return tok, nil
}

// Write encodes tok into the session cookie. Signed-out tokens clear it.
func (c *SessionCookies) Write(w http.ResponseWriter, r *http.Request, tok domainauth.DurableSessionToken) error {
	if !tok.Authenticated() {
		c.Clear(w, r)
		return nil
	}
	raw, err := c.Codec.Encode(tok)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    raw,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.MaxAge.Seconds()),
	})
	return nil
}

// Clear expires the session cookie.
func (c *SessionCookies) Clear(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, c.Name, c.Domain, c.secure(r))
}

func (c *SessionCookies) secure(r *http.Request) bool {
	return c.Secure || isHTTPS(r)
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// setTempCookie stores a short-lived value used during the OAuth round trip.
func setTempCookie(w http.ResponseWriter, name, value, domain string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthCookieLifetime.Seconds()),
	})
}

// clearCookie mirrors the attributes used when setting cookies so browsers accept the deletion.
func clearCookie(w http.ResponseWriter, name, domain string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
