package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Sessions SessionServiceInterface
	// OAuth is optional; nil disables the provider routes.
	OAuth             AuthServiceInterface
	Cookies           *SessionCookies
	PostLoginRedirect string
	// Cache is reported by /healthz when set.
	Cache  CacheStatus
	Logger *slog.Logger
}

// NewRouter creates the HTTP handler with auth routes and middleware.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Sessions:          services.Sessions,
		OAuth:             services.OAuth,
		Cookies:           services.Cookies,
		PostLoginRedirect: services.PostLoginRedirect,
		Logger:            services.Logger,
	}

	health := healthHandler(services.Cache)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	registerAuthRoutes(mux, authHandlers)

	var handler http.Handler = mux
	handler = Logging(services.Logger)(handler)
	handler = Recover(services.Logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /auth/oauth/{provider}/login", h.OAuthLogin)
	mux.HandleFunc("GET /auth/oauth/{provider}/callback", h.OAuthCallback)
	mux.HandleFunc("GET /auth/session", h.Session)
	mux.Handle("GET /auth/me", RequireAuth(h)(http.HandlerFunc(h.Me)))
	mux.HandleFunc("POST /auth/logout", h.Logout)
}
