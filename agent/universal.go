package agent

import (
	"fmt"
	"strings"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/tool"
)

// The capabilities below are universal: every agent can call them without
// declaring them. create_capability and add_capability mutate the shared
// registry and the calling agent's own declaration list, which is the whole
// mechanism behind agents extending the system they run in. The registry's
// locking makes these ordinary, race-free mutations.

func (a *Agent) newCreateCapability() *tool.Func {
	return tool.NewFunc(
		"create_capability",
		"Create and register a new agent with the given name, description and persona. The new agent becomes callable by you immediately.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Unique snake_case name for the new agent",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "What the new agent is for",
				},
				"persona": map[string]any{
					"type":        "string",
					"description": "System prompt body for the new agent",
				},
				"capabilities": map[string]any{
					"type":        "array",
					"description": "Optional capability names the new agent may call",
					"items":       map[string]any{"type": "string"},
				},
			},
			"required": []string{"name", "persona"},
		},
		func(ctx *core.Context, args map[string]any) (any, error) {
			if ctx.Registry == nil {
				return nil, tool.NewToolError("create_capability", "no registry attached", "EXECUTION_ERROR")
			}
			name, _ := args["name"].(string)
			persona, _ := args["persona"].(string)

			var declared []string
			if raw, ok := args["capabilities"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						declared = append(declared, s)
					}
				}
			}

			created := New(name, a.llm, func(o *Options) {
				if desc, ok := args["description"].(string); ok && desc != "" {
					o.Description = desc
				}
				o.Persona = persona
				o.Capabilities = declared
				o.MaxIterations = a.maxIterations
				o.Logger = a.logger
			})
			if err := ctx.Registry.Register(created); err != nil {
				return nil, err
			}
			a.AddCapability(name)
			ctx.LogInfo("agent.capability.created", "by", a.name, "capability", name)
			return fmt.Sprintf("Created agent %q. You can now call it.", name), nil
		},
	)
}

func (a *Agent) newAddCapability() *tool.Func {
	return tool.NewFunc(
		"add_capability",
		"Grant yourself access to an already registered capability by name.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name of the registered capability to add",
				},
			},
			"required": []string{"name"},
		},
		func(ctx *core.Context, args map[string]any) (any, error) {
			if ctx.Registry == nil {
				return nil, tool.NewToolError("add_capability", "no registry attached", "EXECUTION_ERROR")
			}
			name, _ := args["name"].(string)
			if _, err := ctx.Registry.Get(name); err != nil {
				return nil, err
			}
			a.AddCapability(name)
			return fmt.Sprintf("Capability %q added. You can now call it.", name), nil
		},
	)
}

func newListCapabilities() *tool.Func {
	return tool.NewFunc(
		"list_capabilities",
		"List every capability registered in the system with its description.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(ctx *core.Context, args map[string]any) (any, error) {
			if ctx.Registry == nil {
				return nil, tool.NewToolError("list_capabilities", "no registry attached", "EXECUTION_ERROR")
			}
			var sb strings.Builder
			for _, c := range ctx.Registry.List() {
				fmt.Fprintf(&sb, "- %s: %s\n", c.Name(), c.Description())
			}
			if sb.Len() == 0 {
				return "No capabilities registered.", nil
			}
			return sb.String(), nil
		},
	)
}
