package cachewire

import (
	"context"
	"io"
	"net/http"
)

// Healthy probes the configured health path with a single lightweight GET
// and reports whether it answered 2xx within the per-attempt timeout. The
// probe bypasses the cache, the rate limiter and the retry loop.
func (c *Client) Healthy(ctx context.Context) bool {
	if c.validationErr != nil {
		return false
	}

	fullURL, err := c.buildURL(Request{Method: http.MethodGet, Path: c.healthPath})
	if err != nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return false
	}
	c.injectToken(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logDebug("health probe failed", "url", fullURL, "error", err.Error())
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
