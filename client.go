package cachewire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cachewire/cachewire/internal/backoff"
)

// Client executes logical calls against an external HTTP endpoint with URL
// assembly, bearer-token injection, per-attempt timeouts, rate limiting,
// retries with exponential backoff and transparent response caching through
// a registry-held cache. It is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	healthPath     string
	retryAttempts  int // total attempts, including the first
	baseDelay      time.Duration
	maxDelay       time.Duration
	multiplier     float64
	jitter         float64
	timeout        time.Duration // default per-attempt timeout
	backoff        backoff.Strategy
	limiter        *RateLimiter
	breaker        *CircuitBreaker
	registry       *Registry
	cacheName      string
	cachingEnabled bool
	cacheCondition CacheCondition
	tokens         TokenProvider
	logger         Logger
	metrics        *MetricsCollector
	clock          Clock
	dedup          *singleflight.Group
	validationErr  error
}

// New constructs a Client from functional options. Configuration is
// validated at construction; an invalid client returns its validation error
// from every call.
func New(options ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		retryAttempts:  3,
		baseDelay:      time.Second,
		maxDelay:       30 * time.Second,
		multiplier:     2.0,
		jitter:         0,
		timeout:        30 * time.Second,
		backoff:        backoff.Exponential{},
		healthPath:     "/healthz",
		cacheName:      CacheHTTPResponse,
		cachingEnabled: true,
		cacheCondition: DefaultCacheCondition,
		clock:          SystemClock(),
	}

	for _, option := range options {
		option(c)
	}

	if c.registry == nil {
		c.registry = NewRegistry()
	}
	c.validationErr = c.validate()

	return c
}

// Get performs a GET against path with optional query params.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Params: params})
}

// Post performs a POST with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT with a JSON-encoded body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH with a JSON-encoded body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE against path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Do executes one logical request, applying the cache, rate limiter, circuit
// breaker and retry loop. Cache-eligible requests that hit return with
// FromCache=true, zero Elapsed and no network call. Failed dispatches
// surface a single RetryExhausted error wrapping the last attempt's failure.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.validationErr != nil {
		return nil, c.validationErr
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, &RequestError{
			Type:      ErrorTypeValidation,
			Message:   "invalid request URL",
			Cause:     err,
			Method:    req.Method,
			URL:       req.Path,
			Timestamp: c.clock.Now(),
		}
	}
	endpoint := endpointFromURL(fullURL)

	c.logDebug("starting request", "method", req.Method, "url", fullURL)
	c.metrics.RecordRequestStart(req.Method, endpoint)
	defer c.metrics.RecordRequestEnd(req.Method, endpoint)

	var (
		cacheable = c.cacheEligible(&req)
		key       string
		httpCache *Cache[string, any]
	)
	if cacheable {
		key = cacheKey(req.Method, fullURL, req.Params, req.Body)
		httpCache = c.registry.GetOrCreate(c.cacheName)
		if v, ok := httpCache.Get(key); ok {
			if cached, ok := v.(*Response); ok {
				c.logDebug("cache hit", "cacheKey", key)
				c.metrics.RecordCacheHit(req.Method, endpoint)
				c.metrics.RecordRequest(req.Method, endpoint, cached.StatusCode, 0)
				out := *cached
				out.FromCache = true
				out.Elapsed = 0
				return &out, nil
			}
		}
		c.logDebug("cache miss", "cacheKey", key)
		c.metrics.RecordCacheMiss(req.Method, endpoint)
	}

	dispatch := func() (*Response, error) {
		resp, err := c.doWithRetry(ctx, &req, fullURL, endpoint)
		if err == nil && cacheable && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			httpCache.Set(key, resp)
			c.metrics.RecordCacheSize(c.cacheName, httpCache.Len())
			c.logDebug("response cached", "cacheKey", key)
		}
		return resp, err
	}

	// Coalesce concurrent identical cache-eligible requests so only one of
	// them goes to the network.
	if c.dedup != nil && cacheable {
		v, err, shared := c.dedup.Do(key, func() (any, error) {
			return dispatch()
		})
		if err != nil {
			return nil, err
		}
		resp := v.(*Response)
		if shared {
			c.logDebug("request deduplicated", "cacheKey", key)
			out := *resp
			return &out, nil
		}
		return resp, nil
	}

	return dispatch()
}

// doWithRetry runs the attempt loop. Per-attempt failures are logged but not
// surfaced; after the final attempt the last failure is wrapped once.
func (c *Client) doWithRetry(ctx context.Context, req *Request, fullURL, endpoint string) (*Response, error) {
	start := c.clock.Now()

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff.Delay(attempt-2, c.baseDelay, c.maxDelay, c.multiplier, c.jitter)
			c.logInfo("scheduling retry", "attempt", attempt, "maxAttempts", c.retryAttempts, "backoff", delay, "endpoint", endpoint)
			c.metrics.RecordRetry(req.Method, endpoint, attempt-1)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				lastErr = &RequestError{
					Type:      ErrorTypeDispatch,
					Message:   "canceled while waiting to retry",
					Cause:     ctx.Err(),
					Method:    req.Method,
					URL:       fullURL,
					Attempt:   attempt,
					Timestamp: c.clock.Now(),
				}
				return nil, c.wrapExhausted(req, fullURL, lastErr, attempt, start)
			}
			timer.Stop()
		}

		resp, err := c.dispatch(ctx, req, fullURL, endpoint)
		if err == nil {
			c.metrics.RecordRequest(req.Method, endpoint, resp.StatusCode, resp.Elapsed)
			return resp, nil
		}

		lastErr = err
		c.logWarn("attempt failed", "attempt", attempt, "maxAttempts", c.retryAttempts, "endpoint", endpoint, "error", err.Error())

		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Type == ErrorTypeCircuitOpen {
			// An open circuit fails fast; waiting out the backoff schedule
			// will not close it.
			break
		}
	}

	return nil, c.wrapExhausted(req, fullURL, lastErr, c.retryAttempts, start)
}

func (c *Client) wrapExhausted(req *Request, fullURL string, lastErr error, attempts int, start time.Time) *RequestError {
	message := "request failed"
	if lastErr != nil {
		message = lastErr.Error()
	}
	wrapped := &RequestError{
		Type:        ErrorTypeRetryExhausted,
		Message:     fmt.Sprintf("all %d attempts failed: %s", attempts, message),
		Cause:       lastErr,
		Method:      req.Method,
		URL:         fullURL,
		Attempt:     attempts,
		MaxAttempts: c.retryAttempts,
		Timestamp:   c.clock.Now(),
		Duration:    c.clock.Now().Sub(start),
	}
	var reqErr *RequestError
	if errors.As(lastErr, &reqErr) {
		wrapped.StatusCode = reqErr.StatusCode
	}
	c.metrics.RecordError(ErrorTypeRetryExhausted, req.Method, endpointFromURL(fullURL))
	return wrapped
}

// dispatch performs a single attempt: rate limiter gate, circuit breaker
// gate, header assembly, the HTTP call within a fresh timeout window, and
// response envelope construction.
func (c *Client) dispatch(ctx context.Context, req *Request, fullURL, endpoint string) (*Response, error) {
	// One token per dispatch, acquired before headers are built.
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RequestError{
				Type:      ErrorTypeDispatch,
				Message:   "canceled while waiting for rate limiter",
				Cause:     err,
				Method:    req.Method,
				URL:       fullURL,
				Timestamp: c.clock.Now(),
			}
		}
		c.metrics.RecordRateLimiterTokens("default", c.limiter.Tokens())
	}

	if c.breaker != nil && !c.breaker.Allow() {
		c.metrics.RecordError(ErrorTypeCircuitOpen, req.Method, endpoint)
		return nil, &RequestError{
			Type:      ErrorTypeCircuitOpen,
			Message:   "circuit breaker is open",
			Method:    req.Method,
			URL:       fullURL,
			Timestamp: c.clock.Now(),
		}
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &RequestError{
			Type:      ErrorTypeDispatch,
			Message:   "could not encode request body",
			Cause:     err,
			Method:    req.Method,
			URL:       fullURL,
			Timestamp: c.clock.Now(),
		}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, fullURL, body)
	if err != nil {
		return nil, &RequestError{
			Type:      ErrorTypeDispatch,
			Message:   "could not build request",
			Cause:     err,
			Method:    req.Method,
			URL:       fullURL,
			Timestamp: c.clock.Now(),
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	c.injectToken(ctx, httpReq)

	started := c.clock.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			c.metrics.RecordError(ErrorTypeTimeout, req.Method, endpoint)
			return nil, &RequestError{
				Type:      ErrorTypeTimeout,
				Message:   fmt.Sprintf("attempt exceeded its %v window", timeout),
				Cause:     err,
				Method:    req.Method,
				URL:       fullURL,
				Timestamp: c.clock.Now(),
				Duration:  c.clock.Now().Sub(started),
			}
		}
		c.metrics.RecordError(ErrorTypeDispatch, req.Method, endpoint)
		return nil, &RequestError{
			Type:      ErrorTypeDispatch,
			Message:   "network request failed",
			Cause:     err,
			Method:    req.Method,
			URL:       fullURL,
			Timestamp: c.clock.Now(),
			Duration:  c.clock.Now().Sub(started),
		}
	}
	defer func() { _ = httpResp.Body.Close() }()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		c.metrics.RecordError(ErrorTypeDispatch, req.Method, endpoint)
		return nil, &RequestError{
			Type:       ErrorTypeDispatch,
			Message:    "could not read response body",
			Cause:      err,
			Method:     req.Method,
			URL:        fullURL,
			StatusCode: httpResp.StatusCode,
			Timestamp:  c.clock.Now(),
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		c.metrics.RecordError(ErrorTypeHTTPStatus, req.Method, endpoint)
		return nil, &RequestError{
			Type:       ErrorTypeHTTPStatus,
			Message:    extractErrorMessage(httpResp.StatusCode, payload),
			Method:     req.Method,
			URL:        fullURL,
			StatusCode: httpResp.StatusCode,
			Timestamp:  c.clock.Now(),
			Duration:   c.clock.Now().Sub(started),
		}
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	return &Response{
		Body:       payload,
		StatusCode: httpResp.StatusCode,
		Status:     http.StatusText(httpResp.StatusCode),
		Header:     httpResp.Header.Clone(),
		Elapsed:    c.clock.Now().Sub(started),
	}, nil
}

// injectToken adds a bearer token when the provider yields one; otherwise
// the header is skipped silently.
func (c *Client) injectToken(ctx context.Context, httpReq *http.Request) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		c.logDebug("no access token available, skipping Authorization header")
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
}

// cacheEligible reports whether the request round-trips through the HTTP
// response cache: no per-request opt-out, caching enabled on the client, and
// an eligible method (GET by default).
func (c *Client) cacheEligible(req *Request) bool {
	if req.NoCache || !c.cachingEnabled {
		return false
	}
	return c.cacheCondition(req)
}

// buildURL resolves the request path against the base URL and appends sorted
// query parameters. Absolute request URLs bypass the base.
func (c *Client) buildURL(req Request) (string, error) {
	raw := req.Path
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		base := strings.TrimRight(c.baseURL, "/")
		if base == "" {
			return "", fmt.Errorf("relative path %q without a base URL", req.Path)
		}
		raw = base + "/" + strings.TrimLeft(req.Path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode() // Encode sorts keys, keeping keys deterministic
	}
	return u.String(), nil
}

// cacheKey builds the deterministic key: method + url + serialized params +
// serialized body.
func cacheKey(method, fullURL string, params map[string]string, body any) string {
	var sb strings.Builder
	sb.WriteString(method)
	sb.WriteByte(':')
	sb.WriteString(fullURL)
	sb.WriteByte(':')

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
		sb.WriteByte('&')
	}

	sb.WriteByte(':')
	if body != nil {
		if data, err := json.Marshal(body); err == nil {
			sb.Write(data)
		}
	}
	return sb.String()
}

// extractErrorMessage prefers a JSON body's message/error field, then the
// body text when it differs from the status line, then the status line.
func extractErrorMessage(statusCode int, body []byte) string {
	statusLine := fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && text != statusLine {
		return text
	}
	return statusLine
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func endpointFromURL(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil {
		return "unknown"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return u.Host + path
}

// Registry returns the cache registry the client round-trips through.
func (c *Client) Registry() *Registry { return c.registry }

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool { return c.validationErr == nil }

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error { return c.validationErr }

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keysAndValues...)
	}
}
