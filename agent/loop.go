package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/model"
)

// Receive implements core.Capability by running one full turn of the
// tool-calling loop: build the model request from persona, history and
// capability schemas, dispatch any requested calls, append their results, and
// repeat until the model returns a plain-text answer.
//
// A failing dispatched capability never aborts the loop; its error becomes a
// ToolResult the model can react to. Only request-building failures, model
// errors and the iteration ceiling terminate a turn.
func (a *Agent) Receive(ctx *core.Context, args map[string]any) (any, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return nil, &core.ValidationError{Field: "message", Value: args["message"], Message: "must be a non-empty string"}
	}
	if ctx.Sessions == nil {
		return nil, errors.New("agent requires a session store")
	}

	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	a.setStatus(StatusThinking)
	defer a.setStatus(StatusIdle)

	sessionID, err := a.resolveSession(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Sessions.Append(sessionID, core.UserMessage(message)); err != nil {
		return nil, err
	}

	ctx.LogInfo("agent.turn.start", "agent", a.name, "caller", ctx.Caller, "session_id", sessionID)

	for i := 0; i < a.maxIterations; i++ {
		a.setStatus(StatusThinking)

		req, err := a.buildRequest(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		resp, err := a.llm.Generate(ctx.Context, req)
		if err != nil {
			return nil, err
		}

		if err := ctx.Sessions.AddUsage(sessionID, resp.Usage.Key(), core.ModelUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}); err != nil {
			return nil, err
		}

		// An assistant message with neither text nor calls would corrupt the
		// history, so the turn fails before anything is appended.
		if resp.Text == "" && !resp.HasToolCalls() {
			return nil, fmt.Errorf("agent %q: model returned neither text nor tool calls", a.name)
		}

		if err := ctx.Sessions.Append(sessionID, core.AssistantMessage(resp.Text, resp.ToolCalls...)); err != nil {
			return nil, err
		}

		if !resp.HasToolCalls() {
			ctx.LogInfo("agent.turn.done", "agent", a.name, "session_id", sessionID, "iterations", i+1)
			return resp.Text, nil
		}

		a.setStatus(StatusCallingTool)
		results := a.dispatchCalls(ctx, sessionID, resp.ToolCalls)

		if err := ctx.Sessions.Append(sessionID, core.ToolMessage(results...)); err != nil {
			return nil, err
		}
	}

	return nil, &core.LoopLimitError{Agent: a.name, Limit: a.maxIterations}
}

// resolveSession determines which session this turn writes to. A call from
// another capability opens a delegation thread under the caller's session;
// a human-level call continues the bound session or opens a new root.
func (a *Agent) resolveSession(ctx *core.Context) (string, error) {
	if ctx.Caller != "" && ctx.Caller != core.CallerHuman {
		id, err := ctx.Sessions.Create(a.name, ctx.SessionID, ctx.Caller, core.ThreadDelegation, "")
		if err != nil {
			return "", err
		}
		return id, nil
	}

	if ctx.SessionID != "" {
		a.SetSession(ctx.SessionID)
		return ctx.SessionID, nil
	}
	if id := a.Session(); id != "" {
		return id, nil
	}

	id, err := ctx.Sessions.Create(a.name, "", "", core.ThreadRoot, "")
	if err != nil {
		return "", err
	}
	a.SetSession(id)
	return id, nil
}

// buildRequest assembles the normalized model request: persona plus a
// capability roster as the system prompt, full session history, and one tool
// schema per resolvable capability.
func (a *Agent) buildRequest(ctx *core.Context, sessionID string) (model.Request, error) {
	sess, err := ctx.Sessions.Get(sessionID)
	if err != nil {
		return model.Request{}, err
	}

	caps := a.availableCapabilities(ctx)
	tools := make([]model.ToolDefinition, 0, len(caps))
	roster := ""
	for _, c := range caps {
		tools = append(tools, model.ToolDefinition{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  c.Parameters(),
		})
		roster += fmt.Sprintf("- %s: %s\n", c.Name(), c.Description())
	}

	system := a.Persona()
	if roster != "" {
		system += "\n\nYou can call the following capabilities:\n" + roster
	}

	return model.Request{
		System:   system,
		Messages: sess.Messages,
		Tools:    tools,
	}, nil
}

// availableCapabilities resolves the declared capability names through the
// registry and appends the universal set. Unresolvable names are skipped with
// a warning so a stale declaration never breaks the turn.
func (a *Agent) availableCapabilities(ctx *core.Context) []core.Capability {
	var out []core.Capability
	seen := map[string]bool{}

	if ctx.Registry != nil {
		for _, name := range a.Capabilities() {
			if seen[name] || name == a.name {
				continue
			}
			c, err := ctx.Registry.Get(name)
			if err != nil {
				ctx.LogWarn("agent.capability.unresolved", "agent", a.name, "capability", name)
				continue
			}
			seen[name] = true
			out = append(out, c)
		}
	}

	for _, c := range a.universal {
		if !seen[c.Name()] {
			seen[c.Name()] = true
			out = append(out, c)
		}
	}
	return out
}

// dispatchCalls resolves and invokes every requested call in order, publishing
// the call and its result on the bus around each invocation. Failures of any
// kind are folded into error-text results.
func (a *Agent) dispatchCalls(ctx *core.Context, sessionID string, calls []core.ToolCall) []core.ToolResult {
	results := make([]core.ToolResult, 0, len(calls))
	for _, call := range calls {
		if ctx.Bus != nil {
			ctx.Bus.Publish(a.name, call.Name, map[string]any{
				"type":      "tool_call",
				"id":        call.ID,
				"name":      call.Name,
				"arguments": string(call.Arguments),
			}, sessionID)
		}

		content := a.invoke(ctx, sessionID, call)

		if ctx.Bus != nil {
			ctx.Bus.Publish(call.Name, a.name, map[string]any{
				"type":    "tool_result",
				"id":      call.ID,
				"name":    call.Name,
				"content": content,
			}, sessionID)
		}

		results = append(results, core.ToolResult{CallID: call.ID, Name: call.Name, Content: content})
	}
	return results
}

// invoke runs a single capability call and renders its outcome as result text.
// The error prefix marks failures so downstream consumers (and the model) can
// recognize them.
func (a *Agent) invoke(ctx *core.Context, sessionID string, call core.ToolCall) string {
	target, err := a.lookup(ctx, call.Name)
	if err != nil {
		return core.ErrorPrefix + err.Error()
	}

	args, err := call.ArgsMap()
	if err != nil {
		return core.ErrorPrefix + fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)
	}

	result, err := safeReceive(target, ctx.Child(a.name, sessionID), args)
	if err != nil {
		return core.ErrorPrefix + err.Error()
	}
	return renderResult(result)
}

// lookup resolves a call target, checking the universal set before the
// registry since universal capabilities are per-agent and never registered.
// A self-call would re-enter Receive and block forever on the turn mutex, so
// it is rejected here and surfaces to the model as an error result.
func (a *Agent) lookup(ctx *core.Context, name string) (core.Capability, error) {
	if name == a.name {
		return nil, fmt.Errorf("agent %q cannot call itself", a.name)
	}
	for _, c := range a.universal {
		if c.Name() == name {
			return c, nil
		}
	}
	if ctx.Registry == nil {
		return nil, core.NewNotFoundError("capability", name)
	}
	return ctx.Registry.Get(name)
}

// safeReceive isolates capability panics so a misbehaving tool cannot unwind
// the loop.
func safeReceive(c core.Capability, ctx *core.Context, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %s panicked: %v", c.Name(), r)
		}
	}()
	return c.Receive(ctx, args)
}

func renderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
