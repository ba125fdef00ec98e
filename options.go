package cachewire

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// WithBaseURL sets the endpoint base URL relative paths resolve against.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHealthPath sets the path probed by Healthy. Defaults to /healthz.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		c.healthPath = path
	}
}

// WithRetryAttempts sets the total attempt ceiling, including the first try.
func WithRetryAttempts(n int) Option {
	return func(c *Client) {
		c.retryAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry; retry n waits
// baseDelay × 2^(n−1).
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithBackoffMultiplier sets the backoff growth factor. Defaults to 2.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.multiplier = f
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0). Defaults to 0,
// so retry delays follow the backoff formula exactly.
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimiter gates dispatches behind a token bucket holding capacity
// tokens refilled at rate tokens per second.
func WithRateLimiter(capacity int, rate float64) Option {
	return func(c *Client) {
		c.limiter = NewRateLimiter(capacity, rate)
	}
}

// WithCustomRateLimiter installs an existing limiter, e.g. one shared
// between clients.
func WithCustomRateLimiter(limiter *RateLimiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCircuitBreaker gates dispatches behind a circuit breaker.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(cfg)
	}
}

// WithRegistry sets the cache registry the client round-trips through.
// Without it the client constructs its own private registry.
func WithRegistry(registry *Registry) Option {
	return func(c *Client) {
		c.registry = registry
	}
}

// WithCacheName selects which registry cache holds responses. Defaults to
// CacheHTTPResponse.
func WithCacheName(name string) Option {
	return func(c *Client) {
		c.cacheName = name
	}
}

// WithCachingDisabled turns off response caching for every request.
func WithCachingDisabled() Option {
	return func(c *Client) {
		c.cachingEnabled = false
	}
}

// WithCacheCondition overrides which requests are cache-eligible. The
// default caches GETs only.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithTokenProvider supplies bearer tokens for outbound requests.
func WithTokenProvider(provider TokenProvider) Option {
	return func(c *Client) {
		c.tokens = provider
	}
}

// WithHTTPClient substitutes the underlying transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger enables structured debug logging.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConsoleLogger enables human-readable logging to stderr.
func WithConsoleLogger() Option {
	return func(c *Client) {
		c.logger = NewConsoleLogger()
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithClock substitutes the clock used for timeouts, elapsed times and
// backoff accounting.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithDeduplication coalesces concurrent identical cache-eligible requests
// so only one of them dispatches.
func WithDeduplication() Option {
	return func(c *Client) {
		c.dedup = &singleflight.Group{}
	}
}

// validate checks the assembled configuration. It runs once at construction.
func (c *Client) validate() error {
	var problems []string

	if c.httpClient == nil {
		problems = append(problems, "http client cannot be nil")
	}
	if c.retryAttempts < 1 {
		problems = append(problems, "retry attempts must be at least 1")
	}
	if c.baseDelay <= 0 {
		problems = append(problems, "base delay must be positive")
	}
	if c.maxDelay < c.baseDelay {
		problems = append(problems, "max delay must be at least base delay")
	}
	if c.multiplier <= 0 {
		problems = append(problems, "backoff multiplier must be positive")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.cachingEnabled && c.cacheName == "" {
		problems = append(problems, "cache name must be set when caching is enabled")
	}
	if c.cachingEnabled && c.cacheCondition == nil {
		problems = append(problems, "cache condition must be set when caching is enabled")
	}

	if len(problems) > 0 {
		return &RequestError{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("configuration validation failed: %s", strings.Join(problems, "; ")),
		}
	}
	return nil
}
