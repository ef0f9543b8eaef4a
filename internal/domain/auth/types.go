package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Credentials is the transient email/password pair submitted on a password login.
// It is never persisted.
type Credentials struct {
	Email    string
	Password string
}

// ProviderKind identifies how a sign-in attempt was authenticated.
type ProviderKind string

const (
	// ProviderCredentials is a direct email/password login.
	ProviderCredentials ProviderKind = "credentials"
	// ProviderOAuth is a login through an external OAuth identity provider.
	ProviderOAuth ProviderKind = "oauth"
)

// ProviderAccount describes the provider side of a sign-in event.
// Provider and AccessToken are only set for ProviderOAuth.
type ProviderAccount struct {
	Kind        ProviderKind
	Provider    string
	AccessToken string
}

// CredentialsAccount returns the account descriptor for password logins.
func CredentialsAccount() ProviderAccount {
	return ProviderAccount{Kind: ProviderCredentials}
}

// OAuthAccount returns the account descriptor for an OAuth provider login.
func OAuthAccount(provider, accessToken string) ProviderAccount {
	return ProviderAccount{Kind: ProviderOAuth, Provider: provider, AccessToken: accessToken}
}

// Validate checks that the variant carries the fields it requires.
func (a ProviderAccount) Validate() error {
	switch a.Kind {
	case ProviderCredentials:
		return nil
	case ProviderOAuth:
		if a.Provider == "" {
			return fmt.Errorf("oauth account requires a provider name")
		}
		if a.AccessToken == "" {
			return fmt.Errorf("oauth account requires a provider access token")
		}
		return nil
	default:
		return fmt.Errorf("unknown provider kind %q", a.Kind)
	}
}

// TokenBundle is the backend-issued credential set for one authenticated user.
// Replace it as a whole; never mutate fields of a bundle that is already shared.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// NearExpiry reports whether the bundle expires within margin of now.
func (b TokenBundle) NearExpiry(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(b.Expiry)
}

type tokenBundleJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       int64  `json:"expiry"`
}

// MarshalJSON encodes the expiry as Unix milliseconds, matching the backend wire format.
func (b TokenBundle) MarshalJSON() ([]byte, error) {
	var ms int64
	if !b.Expiry.IsZero() {
		ms = b.Expiry.UnixMilli()
	}
	return json.Marshal(tokenBundleJSON{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		Expiry:       ms,
	})
}

// UnmarshalJSON decodes a bundle with a Unix-millisecond expiry.
func (b *TokenBundle) UnmarshalJSON(data []byte) error {
	var raw tokenBundleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.AccessToken = raw.AccessToken
	b.RefreshToken = raw.RefreshToken
	b.Expiry = time.Time{}
	if raw.Expiry != 0 {
		b.Expiry = time.UnixMilli(raw.Expiry).UTC()
	}
	return nil
}

// UserID is a backend user identifier. The backend may send it as a JSON
// number or string; it is always kept in string form.
type UserID string

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON emits numeric identifiers as numbers so round trips keep the backend shape.
func (id UserID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UserIdentity is the backend's representation of an authenticated user,
// including the token bundle issued with it. Treat it as an immutable snapshot.
type UserIdentity struct {
	ID        UserID      `json:"id"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	Username  string      `json:"username,omitempty"`
	Email     string      `json:"email,omitempty"`
	Roles     []string    `json:"roles,omitempty"`
	Tokens    TokenBundle `json:"tokens"`
}

// WithTokens returns a copy of the identity carrying bundle.
func (u UserIdentity) WithTokens(bundle TokenBundle) UserIdentity {
	u.Roles = append([]string(nil), u.Roles...)
	u.Tokens = bundle
	return u
}

// Profile returns the non-credential part of the identity.
func (u UserIdentity) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
	}
}

// SessionState is the authentication state of one client session.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
)

// DurableSessionToken is the per-client record carried across requests.
// A nil User means the client is signed out.
type DurableSessionToken struct {
	User *UserIdentity `json:"user,omitempty"`
}

// NewDurableSessionToken wraps an identity into a fresh token.
func NewDurableSessionToken(user UserIdentity) DurableSessionToken {
	u := user.WithTokens(user.Tokens)
	return DurableSessionToken{User: &u}
}

// State derives the session state held by the token.
func (t DurableSessionToken) State() SessionState {
	if t.User == nil {
		return StateUnauthenticated
	}
	return StateAuthenticated
}

// Authenticated reports whether the token holds a user.
func (t DurableSessionToken) Authenticated() bool { return t.User != nil }

// Tokens returns the current bundle, or the zero value when signed out.
func (t DurableSessionToken) Tokens() TokenBundle {
	if t.User == nil {
		return TokenBundle{}
	}
	return t.User.Tokens
}

// WithTokens returns a new token whose user carries bundle. The receiver is not modified.
func (t DurableSessionToken) WithTokens(bundle TokenBundle) DurableSessionToken {
	if t.User == nil {
		return t
	}
	u := t.User.WithTokens(bundle)
	return DurableSessionToken{User: &u}
}

// UserProfile is the user section of a session view.
type UserProfile struct {
	ID        UserID `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
}

// SessionView is what callers see as "the current session".
type SessionView struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserProfile `json:"user,omitempty"`
	Roles         []string     `json:"roles,omitempty"`
	Tokens        *TokenBundle `json:"tokens,omitempty"`
}

// UnauthenticatedView is the view returned for signed-out clients.
func UnauthenticatedView() SessionView { return SessionView{} }

// Clone returns a deep copy so cached views are never shared by reference.
func (v SessionView) Clone() SessionView {
	out := SessionView{Authenticated: v.Authenticated}
	if v.User != nil {
		u := *v.User
		out.User = &u
	}
	if v.Roles != nil {
		out.Roles = append([]string(nil), v.Roles...)
	}
	if v.Tokens != nil {
		t := *v.Tokens
		out.Tokens = &t
	}
	return out
}

// OAuthGrant is the result of a completed provider authorization: the
// verified email and the provider access token to present to the backend.
type OAuthGrant struct {
	Provider    string
	Email       string
	AccessToken string
	Name        string
}

// LoginRequest begins an OAuth flow.
type LoginRequest struct {
	RedirectURL string
}

// LoginResponse carries the IdP authorization URL plus values to persist for the callback.
type LoginResponse struct {
	AuthURL string
	State   string
	Nonce   string
}

// CallbackInput is the data received on the OAuth callback.
type CallbackInput struct {
	Code  string
	State string
	Nonce string
}

// RefreshResult is what the backend returns for a refresh exchange. RefreshToken is
// set only when the backend rotated it; Expiry only when the backend reported one.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// LiveSession is the backend's current view of a user, fetched with an access token.
type LiveSession struct {
	User  UserProfile
	Roles []string
}
