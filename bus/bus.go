// Package bus implements the in-memory append-only publish/subscribe log of
// every inter-capability message. Subscribers are notified synchronously in
// registration order; delivery is at-least-once, in-process, without retry.
package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/logging"
)

// DefaultCapacity bounds the in-memory tail kept for diagnostics. Persisted
// history, when a session store is attached upstream, is unbounded.
const DefaultCapacity = 1000

// Options configures a Bus.
type Options struct {
	// Capacity bounds the in-memory ring of recent entries.
	Capacity int
	// Logger receives subscriber panic reports.
	Logger logging.Logger
}

// Bus is the concrete core.Bus implementation. Appends are atomic per call;
// ordering across different sessions is not globally guaranteed, only
// ordering within one session (the execution loop serializes per session).
type Bus struct {
	mu       sync.Mutex
	entries  []core.BusEntry
	capacity int
	seq      uint64
	subs     []func(core.BusEntry)
	logger   logging.Logger
}

// New constructs a Bus with the default capacity.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		Capacity: DefaultCapacity,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bus{capacity: opts.Capacity, logger: opts.Logger}
}

// Publish appends an entry and synchronously notifies all current subscribers
// in registration order before returning. A panicking subscriber is isolated:
// it affects neither the append nor the remaining subscribers.
func (b *Bus) Publish(from, to string, payload any, sessionID string) {
	b.mu.Lock()
	b.seq++
	entry := core.BusEntry{
		Seq:       b.seq,
		From:      from,
		To:        to,
		Payload:   payload,
		SessionID: sessionID,
		Time:      time.Now().UTC(),
	}
	b.entries = append(b.entries, entry)
	if len(b.entries) > b.capacity {
		// Drop the oldest entries; copy so the backing array can shrink.
		trimmed := make([]core.BusEntry, b.capacity)
		copy(trimmed, b.entries[len(b.entries)-b.capacity:])
		b.entries = trimmed
	}
	subs := make([]func(core.BusEntry), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		b.notify(fn, entry)
	}
}

func (b *Bus) notify(fn func(core.BusEntry), entry core.BusEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus.subscriber.panic", "recover", fmt.Sprintf("%v", r), "seq", entry.Seq)
		}
	}()
	fn(entry)
}

// Subscribe registers a listener for the process lifetime. There is no
// unsubscribe: the bus's lifetime equals the runtime's.
func (b *Bus) Subscribe(fn func(core.BusEntry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Recent returns the last n entries, oldest first. n <= 0 returns the whole
// retained tail.
func (b *Bus) Recent(n int) []core.BusEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]core.BusEntry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Len returns the number of retained entries.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// FormatLog renders the last n entries as a human-readable transcript for
// diagnostics.
func (b *Bus) FormatLog(n int) string {
	entries := b.Recent(n)
	var sb strings.Builder
	for _, e := range entries {
		to := e.To
		if to == "" {
			to = "*"
		}
		fmt.Fprintf(&sb, "[%s] %s -> %s: %s", e.Time.Format("15:04:05.000"), e.From, to, renderPayload(e.Payload))
		if e.SessionID != "" {
			fmt.Fprintf(&sb, " (session %s)", e.SessionID)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func renderPayload(payload any) string {
	switch p := payload.(type) {
	case string:
		return p
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Sprintf("%v", p)
		}
		return string(raw)
	}
}

var _ core.Bus = (*Bus)(nil)
