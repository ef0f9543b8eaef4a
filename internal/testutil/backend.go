package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Backend paths served by the LMS backend.
const (
	PathLogin      = "/login"
	PathLoginOAuth = "/login/oauth"
	PathRefresh    = "/refresh"
	PathSession    = "/session"
)

// RecordedRequest is a request captured by BackendStub.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]any
}

// BackendStub is an httptest server standing in for the LMS backend.
// Paths without a registered response answer 404.
type BackendStub struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewBackendStub starts a stub server that is closed when the test ends.
func NewBackendStub(t TestingTB) *BackendStub {
	t.Helper()
	s := &BackendStub{handlers: make(map[string]http.HandlerFunc)}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the stub base URL.
func (s *BackendStub) URL() string { return s.server.URL }

// Client returns an HTTP client wired to the stub.
func (s *BackendStub) Client() *http.Client { return s.server.Client() }

// Handle registers a raw handler for path.
func (s *BackendStub) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// RespondJSON makes path answer status with body encoded as JSON.
func (s *BackendStub) RespondJSON(path string, status int, body any) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// RespondRaw makes path answer status with a literal body.
func (s *BackendStub) RespondRaw(path string, status int, body string) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Calls returns how many requests path has received.
func (s *BackendStub) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Requests returns the requests received on path, oldest first.
func (s *BackendStub) Requests(path string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedRequest
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *BackendStub) serve(w http.ResponseWriter, r *http.Request) {
	rec := RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
	}
	if r.Body != nil {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			rec.Body = body
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	h := s.handlers[r.URL.Path]
	s.mu.Unlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// WriteJSON writes body as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// LoginSuccess builds a successful backend login envelope.
func LoginSuccess(id any, email, accessToken, refreshToken string, expiry time.Time) map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"id":         id,
			"email":      email,
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"username":   "ada",
			"tokens": map[string]any{
				"access_token":  accessToken,
				"refresh_token": refreshToken,
				"expiry":        expiry.UnixMilli(),
			},
		},
	}
}

// SessionBody builds a backend /session response.
func SessionBody(id any, email string, roles ...string) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":         id,
			"email":      email,
			"first_name": "Ada",
			"last_name":  "Lovelace",
		},
		"roles": roles,
	}
}
