package cachewire

import (
	"context"
	"sync"
	"time"
)

// Pending is the handle for a queued request. It resolves once the drain
// loop has executed the request through the Client.
type Pending struct {
	resp *Response
	err  error
	done chan struct{}
}

// Wait blocks until the request has been executed or ctx is canceled.
// Canceling ctx abandons the wait only; the queued request itself cannot be
// canceled before dispatch.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the request has been executed.
func (p *Pending) Done() <-chan struct{} { return p.done }

type queuedRequest struct {
	ctx        context.Context
	req        Request
	pending    *Pending
	enqueuedAt time.Time
}

// Queue defers execution to a Client, guaranteeing strict FIFO ordering.
// Exactly one drain goroutine runs at a time: concurrent enqueues never
// start a second loop, and items enqueued mid-drain are processed in the
// order the loop observes them.
type Queue struct {
	client *Client
	clock  Clock

	mu       sync.Mutex
	items    []*queuedRequest
	draining bool
}

// NewQueue wraps a Client in a FIFO queue.
func NewQueue(client *Client) *Queue {
	return &Queue{client: client, clock: client.clock}
}

// Enqueue appends the request and starts the drain loop if one is not
// already running. The request's ctx is honored at dispatch time.
func (q *Queue) Enqueue(ctx context.Context, req Request) *Pending {
	item := &queuedRequest{
		ctx:        ctx,
		req:        req,
		pending:    &Pending{done: make(chan struct{})},
		enqueuedAt: q.clock.Now(),
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	depth := len(q.items)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	q.client.metrics.RecordQueueDepth(depth)
	if start {
		go q.drain()
	}
	return item.pending
}

// Len reports the number of requests still waiting for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()

		q.client.metrics.RecordQueueDepth(depth)
		resp, err := q.client.Do(item.ctx, item.req)
		item.pending.resp = resp
		item.pending.err = err
		close(item.pending.done)
	}
}
