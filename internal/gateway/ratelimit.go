// Package gateway provides the ingest-facing HTTP gateway's rate limiting.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter enforces per-source-adapter request limits for the ingest API.
// Limits are tracked in Redis so they hold across multiple cmd/server
// instances sharing one ingest endpoint.
type RateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger
	config RateLimitConfig
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	DefaultRequestsPerSecond int                       `yaml:"default_requests_per_second"`
	DefaultRequestsPerMinute int                       `yaml:"default_requests_per_minute"`
	AdapterClasses           map[string]AdapterLimits  `yaml:"adapter_classes"`
	Endpoints                map[string]EndpointLimits `yaml:"endpoints"`
	IncludeHeaders           bool                      `yaml:"include_headers"`
}

// AdapterLimits defines rate limits for a class of transport adapter
// (source_id prefix or registration group), e.g. a trusted eNB feed versus
// an unauthenticated replay tool.
type AdapterLimits struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

// EndpointLimits defines rate limits for specific ingest routes.
type EndpointLimits struct {
	Path              string `yaml:"path"`
	Method            string `yaml:"method"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	CostMultiplier    int    `yaml:"cost_multiplier"`
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed      bool
	Remaining    int
	Limit        int
	ResetAt      time.Time
	RetryAfter   time.Duration
	AdapterClass string
	Reason       string
}

// NewRateLimiter returns a RateLimiter backed by redisClient.
func NewRateLimiter(redisClient *redis.Client, cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if cfg.DefaultRequestsPerSecond == 0 {
		cfg.DefaultRequestsPerSecond = 50
	}
	if cfg.DefaultRequestsPerMinute == 0 {
		cfg.DefaultRequestsPerMinute = 2000
	}
	if cfg.AdapterClasses == nil {
		cfg.AdapterClasses = DefaultAdapterClasses()
	}
	return &RateLimiter{redis: redisClient, logger: logger, config: cfg}
}

// DefaultAdapterClasses returns default per-class limits for ingest
// adapters. "trusted" covers registered eNB/MME feeds; "default" covers
// anything unregistered, including the reference replay driver.
func DefaultAdapterClasses() map[string]AdapterLimits {
	return map[string]AdapterLimits{
		"default": {
			RequestsPerSecond: 20,
			RequestsPerMinute: 600,
			BurstSize:         40,
		},
		"trusted": {
			RequestsPerSecond: 500,
			RequestsPerMinute: 20000,
			BurstSize:         1000,
		},
	}
}

// DefaultEndpointLimits returns default route-specific limits for the
// ingest API, reflecting the relative cost of each route's work.
func DefaultEndpointLimits() map[string]EndpointLimits {
	return map[string]EndpointLimits{
		"POST:/v1/ingest": {
			Path:              "/v1/ingest",
			Method:            "POST",
			RequestsPerSecond: 50,
			RequestsPerMinute: 2000,
			CostMultiplier:    1,
		},
		"POST:/v1/ingest/batch": {
			Path:              "/v1/ingest/batch",
			Method:            "POST",
			RequestsPerSecond: 10,
			RequestsPerMinute: 300,
			CostMultiplier:    10,
		},
		"POST:/v1/rules/sync": {
			Path:              "/v1/rules/sync",
			Method:            "POST",
			RequestsPerSecond: 1,
			RequestsPerMinute: 5,
			CostMultiplier:    20,
		},
	}
}

// Check records one request from sourceID against endpoint and reports
// whether it is allowed under adapterClass's per-minute budget.
func (rl *RateLimiter) Check(ctx context.Context, adapterClass, sourceID, endpoint, method string) (*RateLimitResult, error) {
	classLimits := rl.getClassLimits(adapterClass)
	endpointLimits := rl.getEndpointLimits(endpoint, method)
	effective := rl.calculateEffectiveLimits(classLimits, endpointLimits)

	redisKey := fmt.Sprintf("s1see:gateway:ratelimit:%s:%s:%s:minute", adapterClass, sourceID, endpoint)
	now := time.Now()

	script := redis.NewScript(`
		local current = redis.call('INCR', KEYS[1])
		if current == 1 then
			redis.call('PEXPIRE', KEYS[1], ARGV[1])
		end
		return current
	`)

	result, err := script.Run(ctx, rl.redis, []string{redisKey}, 60000).Int()
	if err != nil {
		rl.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
		return &RateLimitResult{Allowed: true, AdapterClass: adapterClass}, nil
	}

	allowed := result <= effective.RequestsPerMinute
	remaining := effective.RequestsPerMinute - result
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.redis.TTL(ctx, redisKey).Result()
	resetAt := now.Add(ttl)

	var retryAfter time.Duration
	var reason string
	if !allowed {
		retryAfter = ttl
		reason = "rate limit exceeded"
	}

	return &RateLimitResult{
		Allowed:      allowed,
		Remaining:    remaining,
		Limit:        effective.RequestsPerMinute,
		ResetAt:      resetAt,
		RetryAfter:   retryAfter,
		AdapterClass: adapterClass,
		Reason:       reason,
	}, nil
}

func (rl *RateLimiter) getClassLimits(adapterClass string) AdapterLimits {
	if limits, ok := rl.config.AdapterClasses[adapterClass]; ok {
		return limits
	}
	return rl.config.AdapterClasses["default"]
}

func (rl *RateLimiter) getEndpointLimits(endpoint, method string) *EndpointLimits {
	key := method + ":" + endpoint
	if limits, ok := rl.config.Endpoints[key]; ok {
		return &limits
	}
	return nil
}

func (rl *RateLimiter) calculateEffectiveLimits(class AdapterLimits, endpoint *EndpointLimits) AdapterLimits {
	if endpoint == nil {
		return class
	}
	effective := class
	if endpoint.RequestsPerSecond > 0 && endpoint.RequestsPerSecond < class.RequestsPerSecond {
		effective.RequestsPerSecond = endpoint.RequestsPerSecond
	}
	if endpoint.RequestsPerMinute > 0 && endpoint.RequestsPerMinute < class.RequestsPerMinute {
		effective.RequestsPerMinute = endpoint.RequestsPerMinute
	}
	if endpoint.CostMultiplier > 1 {
		effective.RequestsPerSecond /= endpoint.CostMultiplier
		effective.RequestsPerMinute /= endpoint.CostMultiplier
	}
	return effective
}

// Middleware returns an HTTP middleware enforcing per-source-adapter rate
// limits. getAdapterClass and getSourceID classify and identify the caller,
// typically from an API key or mTLS client identity; Middleware falls back
// to the connecting IP when getSourceID returns "".
func (rl *RateLimiter) Middleware(getAdapterClass func(r *http.Request) string, getSourceID func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			adapterClass := getAdapterClass(r)
			sourceID := getSourceID(r)
			if sourceID == "" {
				sourceID = getClientIP(r)
			}

			result, err := rl.Check(ctx, adapterClass, sourceID, r.URL.Path, r.Method)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if rl.config.IncludeHeaders {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			}

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate_limit_exceeded","message":"%s","retry_after":%d}`,
					result.Reason, int(result.RetryAfter.Seconds()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
