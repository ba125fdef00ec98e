package cachewire

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Request describes one logical outbound call. Zero values fall back to the
// client's configured defaults.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, DELETE, PATCH). Defaults to GET.
	Method string

	// Path is resolved against the client's base URL. An absolute URL is used as-is.
	Path string

	// Headers are added to the outgoing request.
	Headers map[string]string

	// Body is JSON-encoded when non-nil, unless it is a []byte or string,
	// which are sent verbatim.
	Body any

	// Params are appended to the URL as query parameters, sorted by key.
	Params map[string]string

	// Timeout overrides the client's per-attempt timeout when positive.
	Timeout time.Duration

	// NoCache opts this request out of response caching even when it would
	// otherwise be eligible.
	NoCache bool
}

// Response is the envelope returned for every successful request.
type Response struct {
	// Body is the raw response payload.
	Body []byte

	// StatusCode and Status mirror the underlying *http.Response.
	StatusCode int
	Status     string

	// Header is a copy of the response headers.
	Header http.Header

	// FromCache reports whether the response was served from the HTTP
	// response cache without a network call.
	FromCache bool

	// Elapsed is the wall time spent on the request. Zero for cache hits.
	Elapsed time.Duration
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// TokenProvider supplies bearer tokens for outbound requests. Returning an
// empty token or an error means the Authorization header is skipped; token
// issuance itself is outside this package.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticTokenProvider returns the same token for every request.
func StaticTokenProvider(token string) TokenProvider {
	return TokenProviderFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// Clock abstracts time for TTL checks, age reporting and rate limiting so
// tests can substitute a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// CacheCondition decides whether a request is eligible for response caching.
type CacheCondition func(req *Request) bool

// DefaultCacheCondition caches GET requests only.
func DefaultCacheCondition(req *Request) bool {
	return req.Method == http.MethodGet || req.Method == ""
}

// Option configures a Client.
type Option func(*Client)
