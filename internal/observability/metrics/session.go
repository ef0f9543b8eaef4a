package metrics

import (
	"time"

	obserrors "github.com/target/lms-session/internal/observability/errors"
	"github.com/target/lms-session/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	ResultShared  = "shared"
)

// Cache lookup outcomes.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// SignInMetric describes one sign-in attempt.
type SignInMetric struct {
	Provider string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitSignIn records a sign-in attempt and its latency.
func EmitSignIn(sink statsd.Sink, in SignInMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{
		"provider": in.Provider,
		"result":   in.Result,
	}, in.Result, in.Err)

	sink.Count("session.signin", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.signin.duration", in.Duration, CloneTags(tags))
	}
}

// RefreshMetric describes one refresh-policy evaluation that needed a refresh.
type RefreshMetric struct {
	Result   string
	Duration time.Duration
	Err      error
}

// EmitRefresh records a token refresh outcome.
func EmitRefresh(sink statsd.Sink, in RefreshMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{"result": in.Result}, in.Result, in.Err)

	sink.Count("session.refresh", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.refresh.duration", in.Duration, CloneTags(tags))
	}
}

// EmitCacheLookup records a session cache hit or miss.
func EmitCacheLookup(sink statsd.Sink, outcome string) {
	if sink == nil {
		return
	}
	sink.Count("session.cache", 1, map[string]string{"outcome": outcome})
}

// EmitCacheSize records the current number of cached session views.
func EmitCacheSize(sink statsd.Sink, size int) {
	if sink == nil {
		return
	}
	sink.Gauge("session.cache.size", float64(size), nil)
}

// BackendMetric describes one call to the LMS backend.
type BackendMetric struct {
	Endpoint string
	Status   int
	Result   string
	Duration time.Duration
	Err      error
}

// EmitBackendRequest records a backend exchange.
func EmitBackendRequest(sink statsd.Sink, in BackendMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{
		"endpoint": in.Endpoint,
		"result":   in.Result,
	}, in.Result, in.Err)
	if in.Status > 0 {
		tags["status_class"] = statusClass(in.Status)
	}

	sink.Count("backend.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("backend.request.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func withErrorClass(tags map[string]string, result string, err error) map[string]string {
	if err != nil && result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
