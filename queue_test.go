package cachewire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	queue := NewQueue(newTestClient(server.URL))
	ctx := context.Background()

	var pendings []*Pending
	for i := 0; i < 5; i++ {
		pendings = append(pendings, queue.Enqueue(ctx, Request{
			Path:    fmt.Sprintf("/item/%d", i),
			NoCache: true,
		}))
	}
	for i, p := range pendings {
		if _, err := p.Wait(ctx); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, path := range order {
		if want := fmt.Sprintf("/item/%d", i); path != want {
			t.Errorf("position %d: got %s, want %s", i, path, want)
		}
	}
}

func TestQueueNeverDispatchesConcurrently(t *testing.T) {
	var inFlight int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n := atomic.AddInt32(&inFlight, 1); n > 1 {
			t.Errorf("%d requests in flight, queue must serialize", n)
		}
		time.Sleep(15 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	queue := NewQueue(newTestClient(server.URL))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := queue.Enqueue(ctx, Request{Path: fmt.Sprintf("/c/%d", i), NoCache: true})
			if _, err := p.Wait(ctx); err != nil {
				t.Errorf("request %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestQueuePropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithRetryAttempts(1))
	queue := NewQueue(client)

	p := queue.Enqueue(context.Background(), Request{Path: "/bad", NoCache: true})
	_, err := p.Wait(context.Background())
	if err == nil {
		t.Fatal("expected error from failed request")
	}
	if !IsRetryExhausted(err) {
		t.Errorf("expected RetryExhausted, got %v", err)
	}
}

func TestQueueWaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	queue := NewQueue(newTestClient(server.URL))
	p := queue.Enqueue(context.Background(), Request{Path: "/held", NoCache: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// The request itself is still executed; a fresh Wait resolves it.
	close(release)
	resp, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("unexpected body %q", resp.Body)
	}
}

func TestQueueDrainRestartsAfterIdle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	queue := NewQueue(newTestClient(server.URL))
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		p := queue.Enqueue(ctx, Request{Path: "/r", NoCache: true})
		if _, err := p.Wait(ctx); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		// Let the drain goroutine observe the empty queue and exit.
		time.Sleep(5 * time.Millisecond)
		if queue.Len() != 0 {
			t.Fatalf("round %d: queue not drained", round)
		}
	}
}
