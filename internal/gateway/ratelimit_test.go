package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, cfg RateLimitConfig) *RateLimiter {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, cfg, zap.NewNop())
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		AdapterClasses: map[string]AdapterLimits{
			"default": {RequestsPerSecond: 10, RequestsPerMinute: 5},
		},
	})

	for i := 0; i < 5; i++ {
		result, err := rl.Check(context.Background(), "default", "enb-1", "/v1/ingest", http.MethodPost)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d: expected allowed, got denied", i)
		}
	}
}

func TestCheckDeniesOverLimit(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		AdapterClasses: map[string]AdapterLimits{
			"default": {RequestsPerSecond: 10, RequestsPerMinute: 3},
		},
	})

	var last *RateLimitResult
	for i := 0; i < 4; i++ {
		result, err := rl.Check(context.Background(), "default", "enb-1", "/v1/ingest", http.MethodPost)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		last = result
	}
	if last.Allowed {
		t.Fatal("expected the 4th request to be denied under a 3/minute limit")
	}
	if last.Reason == "" {
		t.Error("expected a denial reason to be set")
	}
}

func TestCheckFailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}) // nothing listening
	t.Cleanup(func() { client.Close() })
	rl := NewRateLimiter(client, RateLimitConfig{}, zap.NewNop())

	result, err := rl.Check(context.Background(), "default", "enb-1", "/v1/ingest", http.MethodPost)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Allowed {
		t.Error("expected fail-open (allowed) when redis is unreachable")
	}
}

func TestEndpointLimitsOverrideClassLimits(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		AdapterClasses: map[string]AdapterLimits{
			"trusted": {RequestsPerSecond: 500, RequestsPerMinute: 20000},
		},
		Endpoints: map[string]EndpointLimits{
			"POST:/v1/rules/sync": {RequestsPerMinute: 2, CostMultiplier: 1},
		},
	})

	for i := 0; i < 2; i++ {
		result, err := rl.Check(context.Background(), "trusted", "admin-tool", "/v1/rules/sync", http.MethodPost)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed under the endpoint override", i)
		}
	}
	result, err := rl.Check(context.Background(), "trusted", "admin-tool", "/v1/rules/sync", http.MethodPost)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Allowed {
		t.Fatal("3rd /v1/rules/sync call should be denied by the endpoint-specific limit despite the generous trusted class limit")
	}
}

func TestMiddlewareSetsHeadersAndBlocks(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		AdapterClasses: map[string]AdapterLimits{
			"default": {RequestsPerSecond: 10, RequestsPerMinute: 1},
		},
		IncludeHeaders: true,
	})
	handler := rl.Middleware(
		func(r *http.Request) string { return "default" },
		func(r *http.Request) string { return r.Header.Get("X-Source-ID") },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/ingest", nil)
		req.Header.Set("X-Source-ID", "enb-1")
		return req
	}

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, newReq())
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want 200", w1.Code)
	}
	if w1.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("expected X-RateLimit-Limit header to be set")
	}

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, newReq())
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got status %d, want 429", w2.Code)
	}
	if w2.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on a denied request")
	}
}

func TestGetClientIPFallsBackThroughHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := getClientIP(req); got != "10.0.0.1:5555" {
		t.Errorf("getClientIP = %q, want RemoteAddr fallback", got)
	}

	req.Header.Set("X-Real-IP", "10.0.0.2")
	if got := getClientIP(req); got != "10.0.0.2" {
		t.Errorf("getClientIP = %q, want X-Real-IP", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.3")
	if got := getClientIP(req); got != "10.0.0.3" {
		t.Errorf("getClientIP = %q, want X-Forwarded-For", got)
	}
}
