package core

import (
	"context"
	"time"
)

// HumanRequest is a pending human-in-the-loop decision. Requests exist only
// while unresolved; Respond removes them from the pending set.
type HumanRequest struct {
	ID      string    `json:"id"`
	From    string    `json:"from"` // requesting capability name
	Prompt  string    `json:"prompt"`
	Options []string  `json:"options,omitempty"`
	Created time.Time `json:"created"`
}

// HumanQueue is the rendezvous point that suspends a calling goroutine until
// a human supplies a value, decoupling a slow asynchronous UI from the
// synchronous agent loop.
//
// Enqueue blocks until Respond is invoked with the matching request id, the
// context is cancelled, or the queue is closed. Multiple requests from
// different agents may be pending simultaneously; resolving one never delays
// another agent's unrelated wait. Respond with an unknown id is a no-op.
type HumanQueue interface {
	Enqueue(ctx context.Context, from, prompt string, options []string) (string, error)
	Respond(id, value string) bool
	Count() int
	Pending() []HumanRequest

	// Close unblocks every waiter with an error. Used by process shutdown,
	// the one path allowed to interrupt an indefinite human wait.
	Close() error
}
