package httpx

import (
	"context"

	domainauth "github.com/target/lms-session/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries a copy of view.
func SetSessionInContext(ctx context.Context, view domainauth.SessionView) context.Context {
	v := view.Clone()
	return context.WithValue(ctx, sessionKey{}, &v)
}

// GetSessionFromContext returns the session view stored by RequireAuth and whether one is present.
func GetSessionFromContext(ctx context.Context) (domainauth.SessionView, bool) {
	if v, ok := ctx.Value(sessionKey{}).(*domainauth.SessionView); ok && v != nil {
		return v.Clone(), true
	}
	return domainauth.SessionView{}, false
}

// IsAuthenticated reports whether the request context carries an authenticated session.
func IsAuthenticated(ctx context.Context) bool {
	v, ok := GetSessionFromContext(ctx)
	return ok && v.Authenticated
}
