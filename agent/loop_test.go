package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/caravel-ai/caravel/bus"
	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/model"
	"github.com/caravel-ai/caravel/session"
	"github.com/caravel-ai/caravel/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry *core.Registry
	bus      *bus.Bus
	sessions *session.InMemoryStore
}

func newFixture() *fixture {
	return &fixture{
		registry: core.NewRegistry(),
		bus:      bus.New(),
		sessions: session.NewInMemoryStore(),
	}
}

func (f *fixture) context(caller string) *core.Context {
	return core.NewContext(context.Background(), caller, "", f.registry, f.bus, nil, f.sessions, nil)
}

func TestAgentReceive_PlainAnswer(t *testing.T) {
	f := newFixture()
	llm := model.NewMockModel("mock-1", "mock")
	llm.AddResponse("hello", "Hello back!")
	a := New("planner", llm)
	require.NoError(t, f.registry.Register(a))

	result, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hello back!", result)

	sessID := a.Session()
	require.NotEmpty(t, sessID)
	sess, err := f.sessions.Get(sessID)
	require.NoError(t, err)
	assert.Equal(t, core.ThreadRoot, sess.Type)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, core.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, core.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, core.ModelUsage{InputTokens: 10, OutputTokens: 5}, sess.Usage["mock/mock-1"])
}

func TestAgentReceive_MissingMessage(t *testing.T) {
	f := newFixture()
	a := New("planner", model.NewMockModel("mock-1", "mock"))

	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "message", verr.Field)
}

func TestAgentReceive_ReusesSessionAcrossTurns(t *testing.T) {
	f := newFixture()
	llm := model.NewMockModel("mock-1", "mock")
	a := New("planner", llm)

	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "first"})
	require.NoError(t, err)
	first := a.Session()

	_, err = a.Receive(f.context(core.CallerHuman), map[string]any{"message": "second"})
	require.NoError(t, err)
	assert.Equal(t, first, a.Session())

	sess, err := f.sessions.Get(first)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 4)
}

func TestAgentReceive_ToolDispatch(t *testing.T) {
	f := newFixture()

	lookup := tool.NewFunc("lookup", "Look up a fact",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic": map[string]any{"type": "string"},
			},
			"required": []string{"topic"},
		},
		func(ctx *core.Context, args map[string]any) (any, error) {
			return "tides are caused by the moon", nil
		})
	require.NoError(t, f.registry.Register(lookup))

	llm := model.NewMockModel("mock-1", "mock")
	call := core.NewToolCall("lookup", map[string]any{"topic": "tides"})
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{call}})
	llm.Enqueue(model.Response{Text: "Tides come from the moon."})

	a := New("planner", llm, func(o *Options) { o.Capabilities = []string{"lookup"} })
	require.NoError(t, f.registry.Register(a))

	result, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "why tides?"})
	require.NoError(t, err)
	assert.Equal(t, "Tides come from the moon.", result)

	sess, err := f.sessions.Get(a.Session())
	require.NoError(t, err)
	require.NoError(t, core.ValidateSequence(sess.Messages))
	require.Len(t, sess.Messages, 4)
	assert.Equal(t, core.RoleTool, sess.Messages[2].Role)
	require.Len(t, sess.Messages[2].ToolResults, 1)
	assert.Equal(t, call.ID, sess.Messages[2].ToolResults[0].CallID)
	assert.Equal(t, "tides are caused by the moon", sess.Messages[2].ToolResults[0].Content)
	assert.True(t, sess.Messages[3].IsFinal())

	// The dispatch and its result are both on the bus, call before result.
	entries := f.bus.Recent(0)
	var callIdx, resultIdx = -1, -1
	for i, e := range entries {
		payload, _ := e.Payload.(map[string]any)
		switch payload["type"] {
		case "tool_call":
			callIdx = i
			assert.Equal(t, "planner", e.From)
			assert.Equal(t, "lookup", e.To)
		case "tool_result":
			resultIdx = i
			assert.Equal(t, "lookup", e.From)
			assert.Equal(t, "planner", e.To)
		}
	}
	require.GreaterOrEqual(t, callIdx, 0)
	assert.Greater(t, resultIdx, callIdx)

	// The second model request carried the tool schema and the result.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	require.NotEmpty(t, reqs[0].Tools)
	assert.Equal(t, "lookup", reqs[0].Tools[0].Name)
}

func TestAgentReceive_FailingToolDoesNotAbortTurn(t *testing.T) {
	f := newFixture()

	flaky := tool.NewFunc("flaky", "always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx *core.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})
	require.NoError(t, f.registry.Register(flaky))

	llm := model.NewMockModel("mock-1", "mock")
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{core.NewToolCall("flaky", nil)}})
	llm.Enqueue(model.Response{Text: "Recovered gracefully."})

	a := New("planner", llm, func(o *Options) { o.Capabilities = []string{"flaky"} })

	result, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "try it"})
	require.NoError(t, err)
	assert.Equal(t, "Recovered gracefully.", result)

	sess, err := f.sessions.Get(a.Session())
	require.NoError(t, err)
	content := sess.Messages[2].ToolResults[0].Content
	assert.True(t, strings.HasPrefix(content, core.ErrorPrefix), "content %q should carry the error prefix", content)
	assert.Contains(t, content, "backend unavailable")
}

func TestAgentReceive_PanickingToolIsContained(t *testing.T) {
	f := newFixture()

	boom := tool.NewFunc("boom", "panics",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx *core.Context, args map[string]any) (any, error) {
			panic("kaboom")
		})
	require.NoError(t, f.registry.Register(boom))

	llm := model.NewMockModel("mock-1", "mock")
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{core.NewToolCall("boom", nil)}})
	llm.Enqueue(model.Response{Text: "Survived."})

	a := New("planner", llm, func(o *Options) { o.Capabilities = []string{"boom"} })

	result, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "go"})
	require.NoError(t, err)
	assert.Equal(t, "Survived.", result)

	sess, _ := f.sessions.Get(a.Session())
	assert.Contains(t, sess.Messages[2].ToolResults[0].Content, "panicked")
}

func TestAgentReceive_UnknownCapabilityBecomesErrorResult(t *testing.T) {
	f := newFixture()

	llm := model.NewMockModel("mock-1", "mock")
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{core.NewToolCall("no_such_tool", nil)}})
	llm.Enqueue(model.Response{Text: "Moving on."})

	a := New("planner", llm)

	result, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "go"})
	require.NoError(t, err)
	assert.Equal(t, "Moving on.", result)

	sess, _ := f.sessions.Get(a.Session())
	content := sess.Messages[2].ToolResults[0].Content
	assert.True(t, strings.HasPrefix(content, core.ErrorPrefix))
	assert.Contains(t, content, "no_such_tool")
}

func TestAgentReceive_LoopLimit(t *testing.T) {
	f := newFixture()

	noop := tool.NewFunc("noop", "does nothing",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx *core.Context, args map[string]any) (any, error) { return "ok", nil })
	require.NoError(t, f.registry.Register(noop))

	llm := model.NewMockModel("mock-1", "mock")
	for i := 0; i < 10; i++ {
		llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{core.NewToolCall("noop", nil)}})
	}

	a := New("planner", llm, func(o *Options) {
		o.Capabilities = []string{"noop"}
		o.MaxIterations = 3
	})

	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "loop"})
	var limitErr *core.LoopLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "planner", limitErr.Agent)
	assert.Equal(t, 3, limitErr.Limit)
	assert.Equal(t, StatusIdle, a.Status())
}

func TestAgentReceive_EmptyModelResponseIsError(t *testing.T) {
	f := newFixture()

	llm := model.NewMockModel("mock-1", "mock")
	llm.Enqueue(model.Response{})

	a := New("planner", llm)
	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither text nor tool calls")

	// The invalid assistant message is never appended; history stays a valid
	// sequence ending at the user message.
	sess, getErr := f.sessions.Get(a.Session())
	require.NoError(t, getErr)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, core.RoleUser, sess.Messages[0].Role)
	assert.NoError(t, core.ValidateSequence(sess.Messages))
}

func TestAgentReceive_SelfCallBecomesErrorResult(t *testing.T) {
	f := newFixture()

	llm := model.NewMockModel("mock-1", "mock")
	selfCall := core.NewToolCall("narcissus", map[string]any{"message": "hi me"})
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{selfCall}})
	llm.Enqueue(model.Response{Text: "Moving on."})

	a := New("narcissus", llm)
	require.NoError(t, f.registry.Register(a))

	done := make(chan struct{})
	var result any
	var err error
	go func() {
		defer close(done)
		result, err = a.Receive(f.context(core.CallerHuman), map[string]any{"message": "hello"})
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("turn did not complete")
	}
	require.NoError(t, err)
	assert.Equal(t, "Moving on.", result)

	sess, getErr := f.sessions.Get(a.Session())
	require.NoError(t, getErr)
	require.Len(t, sess.Messages, 4)
	require.Len(t, sess.Messages[2].ToolResults, 1)
	tr := sess.Messages[2].ToolResults[0]
	assert.True(t, strings.HasPrefix(tr.Content, core.ErrorPrefix))
	assert.Contains(t, tr.Content, "cannot call itself")
}

func TestAgentReceive_ModelErrorTerminatesTurn(t *testing.T) {
	f := newFixture()

	llm := model.NewMockModel("mock-1", "mock")
	llm.Fail(errors.New("rate limited"))

	a := New("planner", llm)
	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "hi"})
	var perr *model.ProviderError
	require.ErrorAs(t, err, &perr)

	// History stays consistent up to the last successful append.
	sess, getErr := f.sessions.Get(a.Session())
	require.NoError(t, getErr)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, core.RoleUser, sess.Messages[0].Role)
}

func TestAgentReceive_Delegation(t *testing.T) {
	f := newFixture()

	researcherLLM := model.NewMockModel("mock-1", "mock")
	researcherLLM.Enqueue(model.Response{Text: "Tides are caused by the moon."})
	researcher := New("researcher", researcherLLM)
	require.NoError(t, f.registry.Register(researcher))

	coordLLM := model.NewMockModel("mock-1", "mock")
	call := core.NewToolCall("researcher", map[string]any{"message": "explain tides"})
	coordLLM.Enqueue(model.Response{ToolCalls: []core.ToolCall{call}})
	coordLLM.Enqueue(model.Response{Text: "Research says: moon."})
	coordinator := New("coordinator", coordLLM, func(o *Options) {
		o.Capabilities = []string{"researcher"}
	})
	require.NoError(t, f.registry.Register(coordinator))

	result, err := coordinator.Receive(f.context(core.CallerHuman), map[string]any{"message": "research tides"})
	require.NoError(t, err)
	assert.Equal(t, "Research says: moon.", result)

	// The delegated turn landed in a new delegation session parented to the
	// coordinator's active session.
	children, err := f.sessions.Children(coordinator.Session())
	require.NoError(t, err)
	require.Len(t, children, 1)
	delegated := children[0]
	assert.Equal(t, core.ThreadDelegation, delegated.Type)
	assert.Equal(t, "researcher", delegated.Agent)
	assert.Equal(t, "coordinator", delegated.ParentAgent)
	require.Len(t, delegated.Messages, 2)
	assert.Equal(t, "explain tides", delegated.Messages[0].Content)

	// Bus shows coordinator->researcher before researcher->coordinator.
	entries := f.bus.Recent(0)
	var outIdx, backIdx = -1, -1
	for i, e := range entries {
		if e.From == "coordinator" && e.To == "researcher" && outIdx < 0 {
			outIdx = i
		}
		if e.From == "researcher" && e.To == "coordinator" {
			backIdx = i
		}
	}
	require.GreaterOrEqual(t, outIdx, 0)
	assert.Greater(t, backIdx, outIdx)

	// The coordinator's own history carries the delegation result as a tool
	// result.
	sess, err := f.sessions.Get(coordinator.Session())
	require.NoError(t, err)
	assert.Equal(t, "Tides are caused by the moon.", sess.Messages[2].ToolResults[0].Content)
}

func TestAgentReceive_UniversalThink(t *testing.T) {
	f := newFixture()

	llm := model.NewMockModel("mock-1", "mock")
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{
		core.NewToolCall("think", map[string]any{"thought": "break the task down"}),
	}})
	llm.Enqueue(model.Response{Text: "Plan ready."})

	// think is available without being declared or registered.
	a := New("planner", llm)
	result, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "plan"})
	require.NoError(t, err)
	assert.Equal(t, "Plan ready.", result)

	sess, _ := f.sessions.Get(a.Session())
	assert.Equal(t, "Thought recorded.", sess.Messages[2].ToolResults[0].Content)
}

func TestAgentReceive_CreateCapability(t *testing.T) {
	f := newFixture()

	llm := model.NewMockModel("mock-1", "mock")
	llm.Enqueue(model.Response{ToolCalls: []core.ToolCall{
		core.NewToolCall("create_capability", map[string]any{
			"name":        "summarizer",
			"description": "Summarizes text",
			"persona":     "You summarize text concisely.",
		}),
	}})
	llm.Enqueue(model.Response{Text: "Created a summarizer."})

	a := New("planner", llm)
	require.NoError(t, f.registry.Register(a))

	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "make a summarizer"})
	require.NoError(t, err)

	created, err := f.registry.Get("summarizer")
	require.NoError(t, err)
	assert.Equal(t, "Summarizes text", created.Description())
	assert.Contains(t, a.Capabilities(), "summarizer")

	createdAgent, ok := created.(*Agent)
	require.True(t, ok)
	assert.Equal(t, "You summarize text concisely.", createdAgent.Persona())
}

func TestAgentReceive_SystemPromptCarriesPersonaAndRoster(t *testing.T) {
	f := newFixture()

	echo := tool.NewFunc("echo", "Echo text",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx *core.Context, args map[string]any) (any, error) { return "", nil })
	require.NoError(t, f.registry.Register(echo))

	llm := model.NewMockModel("mock-1", "mock")
	a := New("planner", llm, func(o *Options) {
		o.Persona = "You are a meticulous planner."
		o.Capabilities = []string{"echo"}
	})

	_, err := a.Receive(f.context(core.CallerHuman), map[string]any{"message": "hi"})
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "You are a meticulous planner.")
	assert.Contains(t, reqs[0].System, "echo: Echo text")
	assert.Contains(t, reqs[0].System, "ask_human")

	names := make([]string, len(reqs[0].Tools))
	for i, td := range reqs[0].Tools {
		names[i] = td.Name
	}
	assert.Contains(t, names, "echo")
	assert.Contains(t, names, "think")
	assert.Contains(t, names, "ask_human")
	assert.Contains(t, names, "create_capability")
	assert.Contains(t, names, "add_capability")
	assert.Contains(t, names, "list_capabilities")
}
