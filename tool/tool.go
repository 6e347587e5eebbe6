// Package tool implements function-style capabilities: schema-validated
// wrappers around plain Go functions, plus the universal capabilities every
// agent receives (structured thinking, human escalation).
package tool

import (
	"fmt"

	"github.com/caravel-ai/caravel/core"
)

// ValidationError reports schema or argument mismatches.
type ValidationError = core.ValidationError

// ToolError represents errors that occur during capability execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the capability that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
