// Package human implements the blocking request/response rendezvous for
// human-in-the-loop decisions. An agent goroutine calling Enqueue suspends
// until an external transport thread supplies a value via Respond; each
// pending request owns its own channel, so resolving one request never delays
// another agent's unrelated wait.
package human

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/logging"
)

// ErrClosed is returned by Enqueue when the queue was shut down, the one path
// allowed to interrupt an otherwise indefinite wait.
var ErrClosed = errors.New("human queue closed")

// Options configures a Queue.
type Options struct {
	// Bus, when set, receives a broadcast notification for every new request
	// so external observers and UIs learn about pending decisions.
	Bus core.Bus
	// Logger for queue lifecycle events.
	Logger logging.Logger
}

type waiter struct {
	req core.HumanRequest
	ch  chan string
}

// Queue is the concrete core.HumanQueue implementation.
type Queue struct {
	mu      sync.Mutex
	pending map[string]*waiter
	order   []string
	closed  bool
	bus     core.Bus
	logger  logging.Logger
}

// New constructs an empty queue.
func New(optFns ...func(o *Options)) *Queue {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Queue{
		pending: make(map[string]*waiter),
		bus:     opts.Bus,
		logger:  opts.Logger,
	}
}

// Enqueue creates a HumanRequest, publishes a notification for observers and
// suspends the calling goroutine until Respond is invoked with the request's
// id, the context is cancelled, or the queue is closed. There is no timeout
// by default; callers needing bounded waits wrap ctx themselves.
func (q *Queue) Enqueue(ctx context.Context, from, prompt string, options []string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w := &waiter{
		req: core.HumanRequest{
			ID:      core.NewID(),
			From:    from,
			Prompt:  prompt,
			Options: options,
			Created: time.Now().UTC(),
		},
		ch: make(chan string, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.pending[w.req.ID] = w
	q.order = append(q.order, w.req.ID)
	q.mu.Unlock()

	q.logger.Info("human.request.created", "request_id", w.req.ID, "from", from)
	if q.bus != nil {
		q.bus.Publish(from, "", map[string]any{
			"type":    "human_request",
			"id":      w.req.ID,
			"prompt":  prompt,
			"options": options,
		}, "")
	}

	select {
	case value, ok := <-w.ch:
		if !ok {
			return "", ErrClosed
		}
		return value, nil
	case <-ctx.Done():
		q.remove(w.req.ID)
		return "", ctx.Err()
	}
}

// Respond resolves the request with the given id, unblocking exactly that
// waiter. It is safe to call from the transport thread. An unknown id is a
// no-op returning false and unblocks nobody.
func (q *Queue) Respond(id, value string) bool {
	q.mu.Lock()
	w, ok := q.pending[id]
	if ok {
		q.removeLocked(id)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	w.ch <- value // buffered; never blocks
	q.logger.Info("human.request.resolved", "request_id", id)
	return true
}

// Count returns the current backlog size for UI polling.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns the unresolved requests in creation order.
func (q *Queue) Pending() []core.HumanRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.HumanRequest, 0, len(q.pending))
	for _, id := range q.order {
		if w, ok := q.pending[id]; ok {
			out = append(out, w.req)
		}
	}
	return out
}

// Close unblocks every waiter with ErrClosed and rejects further Enqueue
// calls. Respond after Close is a no-op.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	waiters := make([]*waiter, 0, len(q.pending))
	for _, w := range q.pending {
		waiters = append(waiters, w)
	}
	q.pending = make(map[string]*waiter)
	q.order = nil
	q.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}
	q.logger.Info("human.queue.closed", "interrupted", len(waiters))
	return nil
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(id)
}

func (q *Queue) removeLocked(id string) {
	delete(q.pending, id)
	for i, n := range q.order {
		if n == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

var _ core.HumanQueue = (*Queue)(nil)
