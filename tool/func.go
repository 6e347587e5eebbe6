package tool

import (
	"fmt"
	"time"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/internal/util"
)

// Func is a generic adapter that exposes a plain Go function as a Capability.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification
//   - Validates model-supplied arguments against that schema before execution
//   - Invokes the wrapped function with a *core.Context giving access to the
//     registry, bus, human queue, session store and logger
//   - Normalizes error handling so callers receive *ToolError with consistent
//     codes: VALIDATION_ERROR for schema mismatches, EXECUTION_ERROR for
//     underlying failures (custom codes preserved if the function returns a
//     *ToolError directly)
//
// A Func has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type Func struct {
	// Capability identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// User supplied implementation
	fn func(ctx *core.Context, args map[string]any) (any, error)
}

// NewFunc constructs a Func from explicit schema and function.
//
// Example:
//
//	sum := tool.NewFunc(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx *core.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunc(
	name, description string,
	parameters map[string]any,
	fn func(ctx *core.Context, args map[string]any) (any, error),
) *Func {
	return &Func{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFuncFromStruct derives the parameter schema from a struct using
// reflection, a convenience for simple argument containers.
func NewFuncFromStruct(
	name, description string,
	structType any,
	fn func(ctx *core.Context, args map[string]any) (any, error),
) *Func {
	return NewFunc(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique capability name used in tool declarations and routing.
func (t *Func) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *Func) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *Func) Parameters() map[string]any { return t.parameters }

// Receive validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
func (t *Func) Receive(ctx *core.Context, args map[string]any) (any, error) {
	start := time.Now()
	ctx.LogDebug("tool.call.start", "tool", t.name, "caller", ctx.Caller)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		ctx.LogWarn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			ctx.LogError("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		ctx.LogError("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	ctx.LogInfo("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

var _ core.Capability = (*Func)(nil)
