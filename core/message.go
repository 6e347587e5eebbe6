package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Conversation roles. The role set is closed; adapters map provider-specific
// roles onto these three.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a capability invocation requested by a model. Arguments is the
// raw JSON object as the provider produced it; use ArgsMap to decode.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewToolCall builds a ToolCall with a generated id and marshalled arguments.
func NewToolCall(name string, args map[string]any) ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return ToolCall{ID: NewID(), Name: name, Arguments: raw}
}

// ArgsMap decodes the call arguments into a map. Empty arguments decode to an
// empty map. A JSON string containing an encoded object (the double-encoded
// shape produced by some providers and by storage replay) is unwrapped one
// level before decoding.
func (tc ToolCall) ArgsMap() (map[string]any, error) {
	raw := tc.Arguments
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if inner == "" {
			return map[string]any{}, nil
		}
		raw = json.RawMessage(inner)
	}
	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("tool call %s: decode arguments: %w", tc.Name, err)
	}
	return args, nil
}

// ErrorPrefix marks a ToolResult whose capability failed. The dispatching
// loop prepends it so models (and tests) can recognize failures textually.
const ErrorPrefix = "error: "

// ToolResult is the outcome of a dispatched ToolCall. Content is always text;
// structured results are JSON-encoded by the dispatching loop.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Message is one persisted conversation turn.
//
// Invariants:
//   - an assistant message with empty content carries at least one ToolCall
//   - a tool message's results reference ids emitted by the immediately
//     preceding assistant message (enforced by the execution loop's ordering,
//     checkable via Validate on a sequence)
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// UserMessage builds a user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant turn with optional tool calls.
func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolMessage builds a tool turn bundling the results of one dispatch batch.
func ToolMessage(results ...ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results}
}

// IsFinal reports whether the message terminates a turn: an assistant message
// carrying text and no pending tool calls.
func (m Message) IsFinal() bool {
	return m.Role == RoleAssistant && m.Content != "" && len(m.ToolCalls) == 0
}

// Validate checks the single-message invariants.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleTool:
	default:
		return &ValidationError{Field: "role", Value: m.Role, Message: "unknown role"}
	}
	if m.Role == RoleAssistant && m.Content == "" && len(m.ToolCalls) == 0 {
		return &ValidationError{Field: "content", Message: "assistant message with empty content must carry at least one tool call"}
	}
	if m.Role == RoleTool && len(m.ToolResults) == 0 {
		return &ValidationError{Field: "tool_results", Message: "tool message must carry at least one result"}
	}
	return nil
}

// ValidateSequence checks the cross-message invariant over an ordered history:
// every tool message's results must reference ids emitted by the immediately
// preceding assistant message.
func ValidateSequence(msgs []Message) error {
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if m.Role != RoleTool {
			continue
		}
		if i == 0 || msgs[i-1].Role != RoleAssistant {
			return fmt.Errorf("message %d: tool message not preceded by assistant message", i)
		}
		emitted := map[string]bool{}
		for _, tc := range msgs[i-1].ToolCalls {
			emitted[tc.ID] = true
		}
		for _, tr := range m.ToolResults {
			if !emitted[tr.CallID] {
				return fmt.Errorf("message %d: result references unknown call id %s", i, tr.CallID)
			}
		}
	}
	return nil
}

// NewID generates a unique identifier for messages, sessions, tool calls and
// human requests.
func NewID() string { return uuid.NewString() }
