package core

import "fmt"

// NotFoundError reports a missing capability, session or human request. It is
// always recoverable: resolution happens inside a model-driven loop, so
// callers convert it into tool-result text or an API error payload instead of
// crashing.
type NotFoundError struct {
	Kind string // "capability", "session", "request"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// NewNotFoundError builds a NotFoundError for the given kind and name.
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

// DuplicateNameError reports a registration conflict. It is fatal to the
// registration call only; the existing entry is left untouched.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("capability %q already registered", e.Name)
}

// ValidationError reports malformed tool arguments or missing required
// fields. The execution loop converts it into a ToolResult describing the
// problem so the model can self-correct on its next turn.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// LoopLimitError reports that an agent's tool-call iteration ceiling was
// reached. It is fatal to the turn and surfaced to the caller; history up to
// the last appended message remains consistent.
type LoopLimitError struct {
	Agent string
	Limit int
}

func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("agent %q exceeded tool-call iteration limit (%d)", e.Agent, e.Limit)
}
