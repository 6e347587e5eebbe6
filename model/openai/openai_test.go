package openai

import (
	"errors"
	"testing"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages_RoundTripShapes(t *testing.T) {
	call := core.NewToolCall("lookup", map[string]any{"topic": "tides"})
	req := model.Request{
		System: "Be concise.",
		Messages: []core.Message{
			core.UserMessage("why tides?"),
			core.AssistantMessage("", call),
			core.ToolMessage(core.ToolResult{CallID: call.ID, Name: "lookup", Content: "the moon"}),
		},
	}

	messages, err := buildMessages(req)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.NotNil(t, messages[0].OfSystem)
	assert.NotNil(t, messages[1].OfUser)

	// Assistant tool calls keep their id and inline-encoded arguments.
	require.NotNil(t, messages[2].OfAssistant)
	require.Len(t, messages[2].OfAssistant.ToolCalls, 1)
	tc := messages[2].OfAssistant.ToolCalls[0]
	assert.Equal(t, call.ID, tc.ID)
	assert.Equal(t, "lookup", tc.Function.Name)
	assert.JSONEq(t, `{"topic":"tides"}`, tc.Function.Arguments)

	// Each tool result becomes its own tool turn keyed by call id.
	require.NotNil(t, messages[3].OfTool)
	assert.Equal(t, call.ID, messages[3].OfTool.ToolCallID)
}

func TestBuildMessages_AssistantTextWithToolCalls(t *testing.T) {
	call := core.NewToolCall("lookup", map[string]any{"topic": "tides"})
	req := model.Request{
		Messages: []core.Message{
			core.AssistantMessage("Let me check that.", call),
		},
	}

	messages, err := buildMessages(req)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assistant := messages[0].OfAssistant
	require.NotNil(t, assistant)
	require.Len(t, assistant.ToolCalls, 1)
	require.True(t, assistant.Content.OfString.Valid())
	assert.Equal(t, "Let me check that.", assistant.Content.OfString.Value)
}

func TestBuildMessages_DoubleEncodedArguments(t *testing.T) {
	req := model.Request{
		Messages: []core.Message{
			core.AssistantMessage("", core.ToolCall{
				ID:        "call-1",
				Name:      "lookup",
				Arguments: []byte(`"{\"topic\":\"tides\"}"`),
			}),
		},
	}

	messages, err := buildMessages(req)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.JSONEq(t, `{"topic":"tides"}`, messages[0].OfAssistant.ToolCalls[0].Function.Arguments)
}

func TestWrapError_NonAPIError(t *testing.T) {
	err := wrapError(errors.New("connection refused"))
	var perr *model.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "openai", perr.Provider)
	assert.Zero(t, perr.StatusCode)
}

func TestInfo(t *testing.T) {
	m := New(func(o *Options) { o.Model = "gpt-4o" })
	info := m.Info()
	assert.Equal(t, "gpt-4o", info.Name)
	assert.Equal(t, "openai", info.Provider)
	assert.True(t, info.SupportsTools)
}
