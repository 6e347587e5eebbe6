package core

import "time"

// ThreadType classifies a session's position in the conversation lineage tree.
type ThreadType string

const (
	// ThreadRoot is a top-level conversation with no parent.
	ThreadRoot ThreadType = "root"
	// ThreadContinuation resumes an earlier thread under a new session.
	ThreadContinuation ThreadType = "continuation"
	// ThreadDelegation is spawned when one agent invokes another; its parent
	// is the delegating agent's active session.
	ThreadDelegation ThreadType = "delegation"
	// ThreadFork duplicates history up to a point under a new id.
	ThreadFork ThreadType = "fork"
)

// ModelUsage accumulates token and cost counters for one model.
type ModelUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Usage maps "provider/model" keys to accumulated counters.
type Usage map[string]ModelUsage

// Add accumulates counters for a model key.
func (u Usage) Add(model string, mu ModelUsage) {
	cur := u[model]
	cur.InputTokens += mu.InputTokens
	cur.OutputTokens += mu.OutputTokens
	cur.Cost += mu.Cost
	u[model] = cur
}

// Merge accumulates every model key from other into u.
func (u Usage) Merge(other Usage) {
	for model, mu := range other {
		u.Add(model, mu)
	}
}

// Clone returns an independent copy.
func (u Usage) Clone() Usage {
	out := make(Usage, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Session is one persisted conversation thread belonging to one agent.
// Sessions form a tree: roots have no parent, delegation threads hang off the
// delegating agent's active session, forks duplicate history under a new id.
type Session struct {
	ID          string     `json:"id"`
	Agent       string     `json:"agent"`
	Name        string     `json:"name,omitempty"`
	ParentID    string     `json:"parent_id,omitempty"`
	ParentAgent string     `json:"parent_agent,omitempty"`
	Type        ThreadType `json:"type"`
	Messages    []Message  `json:"messages"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
	Usage       Usage      `json:"usage"`
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	clone.Usage = s.Usage.Clone()
	return &clone
}

// SessionStore persists conversation threads and their lineage.
//
// Append ordering is caller-guaranteed: the execution loop serializes turns
// per agent, so there is one writer per session at a time. Appends from
// different sessions may interleave freely; only ordering within one session
// is guaranteed. Sessions are never deleted by normal operation.
type SessionStore interface {
	// Create starts a new session for agent. parentID/parentAgent are empty
	// for roots. It fails with NotFoundError if parentID names no session.
	Create(agent, parentID, parentAgent string, typ ThreadType, name string) (string, error)

	// Get returns a defensive copy of the session or NotFoundError.
	Get(id string) (*Session, error)

	// Append adds one message to the session history.
	Append(id string, msg Message) error

	// AddUsage accumulates token/cost counters for a model key.
	AddUsage(id, model string, usage ModelUsage) error

	// List returns the agent's sessions in creation order; an empty agent
	// name lists every session.
	List(agent string) ([]*Session, error)

	// Children returns the direct child sessions in creation order.
	Children(id string) ([]*Session, error)

	// Fork duplicates history up to message index at (negative or
	// out-of-range copies everything) into a new fork session.
	Fork(id string, at int, name string) (string, error)
}
