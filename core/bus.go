package core

import "time"

// BusEntry is one appended inter-capability message. Seq is monotonic within
// the bus; Time is wall clock. To is empty for broadcast notifications.
type BusEntry struct {
	Seq       uint64    `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Payload   any       `json:"payload"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
}

// Bus is the append-only publish/subscribe log of every inter-capability
// message. Publish appends an entry and synchronously notifies all current
// subscribers in registration order before returning; subscriber panics are
// isolated and affect neither the publish nor other subscribers. Ordering is
// guaranteed per session only.
type Bus interface {
	Publish(from, to string, payload any, sessionID string)
	Subscribe(fn func(BusEntry))
	Recent(n int) []BusEntry
}
