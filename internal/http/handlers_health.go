package httpx

import (
	"net/http"
	"time"
)

// CacheStatus is the view of the session cache the health check reports on.
type CacheStatus interface {
	Len() int
	TTL() time.Duration
}

type healthResponse struct {
	Status       string            `json:"status"`
	SessionCache *cacheHealthEntry `json:"session_cache,omitempty"`
}

type cacheHealthEntry struct {
	Entries    int     `json:"entries"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// healthHandler reports liveness plus the session cache occupancy. A nil cache
// omits the cache block.
func healthHandler(cache CacheStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			return
		}
		resp := healthResponse{Status: "ok"}
		if cache != nil {
			resp.SessionCache = &cacheHealthEntry{
				Entries:    cache.Len(),
				TTLSeconds: cache.TTL().Seconds(),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
