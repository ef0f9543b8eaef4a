package auth

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTokenBundle_NearExpiry(t *testing.T) {
	expiry := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := TokenBundle{AccessToken: "a", Expiry: expiry}
	margin := 5 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"ten minutes left", expiry.Add(-10 * time.Minute), false},
		{"four minutes left", expiry.Add(-4 * time.Minute), true},
		{"exactly at margin", expiry.Add(-margin), true},
		{"already expired", expiry.Add(time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.NearExpiry(tt.now, margin); got != tt.want {
				t.Fatalf("NearExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserIdentity_DecodeNumericID(t *testing.T) {
	raw := `{"id":1,"email":"a@b.com","tokens":{"access_token":"tok1","refresh_token":"r1","expiry":1700000000000}}`
	var u UserIdentity
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.ID != "1" {
		t.Fatalf("id = %q, want 1", u.ID)
	}
	if u.Tokens.AccessToken != "tok1" || u.Tokens.RefreshToken != "r1" {
		t.Fatalf("unexpected tokens: %+v", u.Tokens)
	}
	if u.Tokens.Expiry.UnixMilli() != 1700000000000 {
		t.Fatalf("expiry = %v", u.Tokens.Expiry)
	}

	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if _, ok := back["id"].(float64); !ok {
		t.Fatalf("numeric id should stay numeric, got %T", back["id"])
	}
}

func TestUserIdentity_DecodeStringID(t *testing.T) {
	var u UserIdentity
	if err := json.Unmarshal([]byte(`{"id":"u-42","tokens":{}}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.ID != "u-42" {
		t.Fatalf("id = %q", u.ID)
	}
	if !u.Tokens.Expiry.IsZero() {
		t.Fatalf("zero expiry expected, got %v", u.Tokens.Expiry)
	}
}

func TestDurableSessionToken_WithTokensDoesNotMutate(t *testing.T) {
	orig := NewDurableSessionToken(UserIdentity{
		ID:     "1",
		Roles:  []string{"student"},
		Tokens: TokenBundle{AccessToken: "old", RefreshToken: "r1"},
	})
	next := orig.WithTokens(TokenBundle{AccessToken: "new", RefreshToken: "r1"})

	if orig.User.Tokens.AccessToken != "old" {
		t.Fatalf("original token mutated: %+v", orig.User.Tokens)
	}
	if next.User.Tokens.AccessToken != "new" {
		t.Fatalf("new token not applied: %+v", next.User.Tokens)
	}
	next.User.Roles[0] = "changed"
	if orig.User.Roles[0] != "student" {
		t.Fatalf("roles slice shared between tokens")
	}
}

func TestDurableSessionToken_State(t *testing.T) {
	if (DurableSessionToken{}).State() != StateUnauthenticated {
		t.Fatalf("empty token should be unauthenticated")
	}
	tok := NewDurableSessionToken(UserIdentity{ID: "1"})
	if tok.State() != StateAuthenticated {
		t.Fatalf("token with user should be authenticated")
	}
	if (DurableSessionToken{}).WithTokens(TokenBundle{AccessToken: "x"}).Authenticated() {
		t.Fatalf("WithTokens must not authenticate an empty token")
	}
}

func TestProviderAccount_Validate(t *testing.T) {
	if err := CredentialsAccount().Validate(); err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if err := OAuthAccount("google", "pt").Validate(); err != nil {
		t.Fatalf("oauth: %v", err)
	}
	if err := OAuthAccount("", "pt").Validate(); err == nil {
		t.Fatalf("expected error for missing provider")
	}
	if err := OAuthAccount("google", "").Validate(); err == nil {
		t.Fatalf("expected error for missing token")
	}
	if err := (ProviderAccount{Kind: "saml"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestSessionView_Clone(t *testing.T) {
	v := SessionView{
		Authenticated: true,
		User:          &UserProfile{ID: "1"},
		Roles:         []string{"a"},
		Tokens:        &TokenBundle{AccessToken: "t"},
	}
	c := v.Clone()
	c.User.ID = "2"
	c.Roles[0] = "b"
	c.Tokens.AccessToken = "u"
	if v.User.ID != "1" || v.Roles[0] != "a" || v.Tokens.AccessToken != "t" {
		t.Fatalf("clone shares state with original: %+v", v)
	}
}
