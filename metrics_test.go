package cachewire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNilCollectorIsSafe(t *testing.T) {
	var mc *MetricsCollector
	mc.RecordRequest("GET", "example.com/x", 200, time.Second)
	mc.RecordRequestStart("GET", "example.com/x")
	mc.RecordRequestEnd("GET", "example.com/x")
	mc.RecordRetry("GET", "example.com/x", 1)
	mc.RecordRateLimiterTokens("default", 3.5)
	mc.RecordCacheHit("GET", "example.com/x")
	mc.RecordCacheMiss("GET", "example.com/x")
	mc.RecordCacheSize("http-response", 10)
	mc.RecordQueueDepth(2)
	mc.RecordError(ErrorTypeDispatch, "GET", "example.com/x")
}

func TestMetricsRecordRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequest("GET", "example.com/x", 200, 100*time.Millisecond)
	mc.RecordRequest("GET", "example.com/x", 200, 200*time.Millisecond)
	mc.RecordRequest("POST", "example.com/y", 500, 50*time.Millisecond)

	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "example.com/x")); got != 2 {
		t.Errorf("requests_total GET = %v, want 2", got)
	}
	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("POST", "500", "example.com/y")); got != 1 {
		t.Errorf("requests_total POST = %v, want 1", got)
	}
}

func TestMetricsInFlightGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequestStart("GET", "example.com/x")
	mc.RecordRequestStart("GET", "example.com/x")
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "example.com/x")); got != 2 {
		t.Errorf("in flight = %v, want 2", got)
	}

	mc.RecordRequestEnd("GET", "example.com/x")
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "example.com/x")); got != 1 {
		t.Errorf("in flight after end = %v, want 1", got)
	}
}

func TestMetricsQueueDepthGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordQueueDepth(5)
	if got := testutil.ToFloat64(mc.queueDepth); got != 5 {
		t.Errorf("queue depth = %v, want 5", got)
	}
	mc.RecordQueueDepth(0)
	if got := testutil.ToFloat64(mc.queueDepth); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

func TestClientRecordsCacheMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	promRegistry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(promRegistry)
	client := newTestClient(server.URL, WithMetricsCollector(mc))
	ctx := context.Background()

	if _, err := client.Get(ctx, "/m", nil); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if _, err := client.Get(ctx, "/m", nil); err != nil {
		t.Fatalf("second Get: %v", err)
	}

	endpoint := endpointFromURL(server.URL + "/m")
	if got := testutil.ToFloat64(mc.cacheMisses.WithLabelValues("GET", endpoint)); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.cacheHits.WithLabelValues("GET", endpoint)); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
}

func TestClientRecordsRetryMetrics(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	promRegistry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(promRegistry)
	client := newTestClient(server.URL,
		WithMetricsCollector(mc),
		WithRetryAttempts(2),
		WithBaseDelay(time.Millisecond),
	)

	if _, err := client.Get(context.Background(), "/retry", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}

	endpoint := endpointFromURL(server.URL + "/retry")
	if got := testutil.ToFloat64(mc.retriesTotal.WithLabelValues("GET", endpoint, "1")); got != 1 {
		t.Errorf("retries_total = %v, want 1", got)
	}
}
