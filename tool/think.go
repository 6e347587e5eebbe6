package tool

import (
	"github.com/caravel-ai/caravel/core"
)

// NewThink returns the universal reasoning capability. It performs no side
// effects beyond acknowledging the thought; its value is that the reasoning
// text lands in the session history and on the message bus where it can be
// inspected later.
func NewThink() *Func {
	return NewFunc(
		"think",
		"Record a private reasoning step. Use this to break a problem down before acting; the thought is logged but triggers no external action.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"thought": map[string]any{
					"type":        "string",
					"description": "The reasoning step to record",
				},
			},
			"required": []string{"thought"},
		},
		func(ctx *core.Context, args map[string]any) (any, error) {
			thought, _ := args["thought"].(string)
			ctx.LogDebug("tool.think", "caller", ctx.Caller, "thought", thought)
			return "Thought recorded.", nil
		},
	)
}
