package tool

import (
	"github.com/caravel-ai/caravel/core"
)

// NewAskHuman returns the universal escalation capability. The calling agent's
// turn suspends until a person answers through the human queue, the context is
// cancelled, or the runtime shuts down. There is no timeout by default.
func NewAskHuman() *Func {
	return NewFunc(
		"ask_human",
		"Ask the human operator a question and wait for their answer. Use when a decision needs judgment, approval, or information only a person has.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The question to put to the human",
				},
				"options": map[string]any{
					"type":        "array",
					"description": "Optional fixed choices to present",
					"items":       map[string]any{"type": "string"},
				},
			},
			"required": []string{"prompt"},
		},
		func(ctx *core.Context, args map[string]any) (any, error) {
			if ctx.Humans == nil {
				return nil, NewToolError("ask_human", "no human queue attached to this runtime", "EXECUTION_ERROR")
			}
			prompt, _ := args["prompt"].(string)
			var options []string
			if raw, ok := args["options"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						options = append(options, s)
					}
				}
			}
			answer, err := ctx.Humans.Enqueue(ctx.Context, ctx.Caller, prompt, options)
			if err != nil {
				return nil, err
			}
			return answer, nil
		},
	)
}
