package httpx

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/lms-session/internal/domain/auth"
	apperrors "github.com/target/lms-session/internal/errors"
	"github.com/target/lms-session/internal/service"
)

// SessionServiceInterface defines the session operations used by the handlers.
type SessionServiceInterface interface {
	SignIn(ctx context.Context, in service.SignInInput) (domainauth.DurableSessionToken, error)
	Resolve(ctx context.Context, tok domainauth.DurableSessionToken) (service.ResolveResult, error)
	SignOut(ctx context.Context, tok domainauth.DurableSessionToken) domainauth.DurableSessionToken
}

// AuthServiceInterface defines the OAuth flow operations used by the handlers.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, provider string, req domainauth.LoginRequest) (domainauth.LoginResponse, error)
	CompleteLogin(ctx context.Context, provider string, in domainauth.CallbackInput) (domainauth.DurableSessionToken, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Sessions SessionServiceInterface
	// OAuth is optional; OAuth routes answer 404 when it is nil.
	OAuth             AuthServiceInterface
	Cookies           *SessionCookies
	PostLoginRedirect string
	Logger            *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// sessionResponse is the JSON shape of a session view. The refresh token never leaves the cookie.
type sessionResponse struct {
	Authenticated bool                    `json:"authenticated"`
	User          *domainauth.UserProfile `json:"user,omitempty"`
	Roles         []string                `json:"roles,omitempty"`
	AccessToken   string                  `json:"access_token,omitempty"`
	ExpiresAt     *time.Time              `json:"expires_at,omitempty"`
}

func newSessionResponse(v domainauth.SessionView) sessionResponse {
	out := sessionResponse{Authenticated: v.Authenticated, User: v.User, Roles: v.Roles}
	if v.Tokens != nil {
		out.AccessToken = v.Tokens.AccessToken
		if !v.Tokens.Expiry.IsZero() {
			exp := v.Tokens.Expiry.UTC()
			out.ExpiresAt = &exp
		}
	}
	return out
}

// viewFromToken builds a view from the identity returned at sign-in, before any projection.
func viewFromToken(tok domainauth.DurableSessionToken) domainauth.SessionView {
	if !tok.Authenticated() {
		return domainauth.UnauthenticatedView()
	}
	profile := tok.User.Profile()
	bundle := tok.Tokens()
	return domainauth.SessionView{
		Authenticated: true,
		User:          &profile,
		Roles:         append([]string(nil), tok.User.Roles...),
		Tokens:        &bundle,
	}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles password sign-in.
// POST /auth/login with a JSON or form body {email, password}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := readLoginBody(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		WriteAppError(w, apperrors.Validation("email and password are required"))
		return
	}

	tok, err := h.Sessions.SignIn(r.Context(), service.SignInInput{
		Account:  domainauth.CredentialsAccount(),
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if err := h.Cookies.Write(w, r, tok); err != nil {
		h.logger().ErrorContext(r.Context(), "write session cookie", "error", err)
		WriteAppError(w, apperrors.Internal("write session cookie"))
		return
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(viewFromToken(tok)))
}

func readLoginBody(w http.ResponseWriter, r *http.Request) (loginBody, bool) {
	var body loginBody
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		return body, DecodeJSON(w, r, &body)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return body, false
	}
	body.Email = r.PostForm.Get("email")
	body.Password = r.PostForm.Get("password")
	return body, true
}

// OAuthLogin starts the provider flow.
// GET /auth/oauth/{provider}/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		WriteAppError(w, apperrors.NotFound("oauth sign-in is not configured"))
		return
	}
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"), h.postLoginDefault())

	result, err := h.OAuth.BeginLogin(r.Context(), r.PathValue("provider"), domainauth.LoginRequest{
		RedirectURL: redirectURI,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	secure := h.Cookies.secure(r)
	setTempCookie(w, oauthStateCookie, result.State, h.Cookies.Domain, secure)
	setTempCookie(w, oauthNonceCookie, result.Nonce, h.Cookies.Domain, secure)
	setTempCookie(w, postLoginCookie, redirectURI, h.Cookies.Domain, secure)

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// OAuthCallback completes the provider flow and signs the user in.
// GET /auth/oauth/{provider}/callback?code=<code>&state=<state>.
func (h *AuthHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		WriteAppError(w, apperrors.NotFound("oauth sign-in is not configured"))
		return
	}
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	tok, err := h.OAuth.CompleteLogin(r.Context(), r.PathValue("provider"), domainauth.CallbackInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	if err := h.Cookies.Write(w, r, tok); err != nil {
		h.logger().ErrorContext(r.Context(), "write session cookie", "error", err)
		WriteAppError(w, apperrors.Internal("write session cookie"))
		return
	}
	secure := h.Cookies.secure(r)
	clearCookie(w, oauthStateCookie, h.Cookies.Domain, secure)
	clearCookie(w, oauthNonceCookie, h.Cookies.Domain, secure)

	http.Redirect(w, r, h.getPostLoginRedirect(w, r), http.StatusFound)
}

// Session returns the current session view, refreshing the token first when it is near expiry.
// GET /auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolve(w, r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(res.View))
}

// Me returns the profile and roles of the authenticated caller. Mounted behind RequireAuth.
// GET /auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	view, ok := GetSessionFromContext(r.Context())
	if !ok || !view.Authenticated {
		WriteAppError(w, apperrors.Unauthenticated("authentication required"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":  view.User,
		"roles": view.Roles,
	})
}

// Logout signs the client out and clears the session cookie.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	tok, err := h.Cookies.Read(r)
	if err != nil {
		h.logger().DebugContext(r.Context(), "ignoring undecodable session cookie on logout", "error", err)
	}
	h.Sessions.SignOut(r.Context(), tok)
	h.Cookies.Clear(w, r)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// resolve reads the cookie, runs the session service, and re-issues the cookie
// when the token changed. A refresh failure is logged and the request continues
// with the existing token.
func (h *AuthHandlers) resolve(w http.ResponseWriter, r *http.Request) (service.ResolveResult, error) {
	ctx := r.Context()
	tok, err := h.Cookies.Read(r)
	if err != nil {
		h.logger().InfoContext(ctx, "discarding invalid session cookie", "error", err)
		h.Cookies.Clear(w, r)
	}

	res, err := h.Sessions.Resolve(ctx, tok)
	if err != nil {
		return res, err
	}
	if res.RefreshErr != nil {
		h.logger().WarnContext(ctx, "session refresh failed; serving existing token",
			"error_code", apperrors.GetCode(res.RefreshErr))
	}
	if res.Refreshed {
		if werr := h.Cookies.Write(w, r, res.Token); werr != nil {
			h.logger().ErrorContext(ctx, "re-issue session cookie", "error", werr)
		}
	}
	return res, nil
}

func (h *AuthHandlers) postLoginDefault() string {
	if h.PostLoginRedirect != "" {
		return h.PostLoginRedirect
	}
	return "/"
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := h.postLoginDefault()
	if redirectCookie, err := r.Cookie(postLoginCookie); err == nil {
		redirectURI = safeRedirectPath(redirectCookie.Value, redirectURI)
		clearCookie(w, postLoginCookie, h.Cookies.Domain, h.Cookies.secure(r))
	}
	return redirectURI
}

// safeRedirectPath returns candidate when it is a same-origin path, otherwise fallback.
func safeRedirectPath(candidate, fallback string) string {
	if candidate == "" {
		return fallback
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") ||
		strings.HasPrefix(candidate, "//") || strings.Contains(candidate, "\\") {
		return fallback
	}
	return candidate
}
