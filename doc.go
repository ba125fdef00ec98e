// Package cachewire provides a bounded in-memory caching engine and a
// resilient outbound HTTP request layer built on top of it:
//
//   - Generic bounded cache with LRU eviction, optional TTL, optional
//     memory-size ceiling, eviction callbacks and hit/miss statistics
//   - Named cache registry with per-instance policies and introspection
//   - Token bucket rate limiting (callers wait, they are never rejected)
//   - Retries with exponential backoff and per-attempt timeouts
//   - Transparent response caching keyed by method + URL + params + body
//   - FIFO request queue with single-flight draining
//   - Optional circuit breaker and in-flight request de-duplication
//   - Prometheus metrics and structured debug logging via zerolog
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - No hidden global state: the registry is an explicit object passed
//     by reference to its consumers
//   - Safe concurrent use of a single *Client, *Registry or *Queue
//   - Extensibility via pluggable Sizer, Clock, TokenProvider and Logger
//
// Typical usage:
//
//	registry := cachewire.NewRegistry()
//	client := cachewire.New(
//	    cachewire.WithBaseURL("https://api.example.com"),
//	    cachewire.WithRegistry(registry),
//	    cachewire.WithRetryAttempts(3),
//	    cachewire.WithRateLimiter(10, 5),
//	)
//	resp, err := client.Get(ctx, "/data", nil)
//
// GET responses are cached by default; opt out per request with
// Request.NoCache or per client with WithCachingDisabled.
package cachewire
