package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCall_ArgsMap(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		tc := NewToolCall("write_file", map[string]any{"path": "/tmp/x", "lines": float64(3)})
		args, err := tc.ArgsMap()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/x", args["path"])
		assert.Equal(t, float64(3), args["lines"])
	})

	t.Run("double encoded string", func(t *testing.T) {
		inner, _ := json.Marshal(map[string]any{"query": "tides"})
		outer, _ := json.Marshal(string(inner))
		tc := ToolCall{ID: NewID(), Name: "search", Arguments: outer}

		args, err := tc.ArgsMap()
		require.NoError(t, err)
		assert.Equal(t, "tides", args["query"])
	})

	t.Run("empty arguments", func(t *testing.T) {
		tc := ToolCall{ID: NewID(), Name: "list"}
		args, err := tc.ArgsMap()
		require.NoError(t, err)
		assert.Empty(t, args)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		tc := ToolCall{ID: NewID(), Name: "bad", Arguments: json.RawMessage(`[1,2]`)}
		_, err := tc.ArgsMap()
		assert.Error(t, err)
	})
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, UserMessage("hi").Validate())
	assert.NoError(t, AssistantMessage("answer").Validate())
	assert.NoError(t, AssistantMessage("", NewToolCall("think", nil)).Validate())
	assert.NoError(t, ToolMessage(ToolResult{CallID: "1", Name: "think", Content: "ok"}).Validate())

	assert.Error(t, Message{Role: "system"}.Validate())
	assert.Error(t, AssistantMessage("").Validate())
	assert.Error(t, Message{Role: RoleTool}.Validate())
}

func TestValidateSequence(t *testing.T) {
	call := NewToolCall("search", map[string]any{"q": "x"})

	t.Run("valid alternation", func(t *testing.T) {
		msgs := []Message{
			UserMessage("find x"),
			AssistantMessage("", call),
			ToolMessage(ToolResult{CallID: call.ID, Name: "search", Content: "found"}),
			AssistantMessage("done"),
		}
		assert.NoError(t, ValidateSequence(msgs))
	})

	t.Run("result references unknown call id", func(t *testing.T) {
		msgs := []Message{
			AssistantMessage("", call),
			ToolMessage(ToolResult{CallID: "other", Name: "search", Content: "found"}),
		}
		assert.Error(t, ValidateSequence(msgs))
	})

	t.Run("tool message without preceding assistant", func(t *testing.T) {
		msgs := []Message{
			UserMessage("hi"),
			ToolMessage(ToolResult{CallID: call.ID, Name: "search", Content: "found"}),
		}
		assert.Error(t, ValidateSequence(msgs))
	})
}

func TestMessage_IsFinal(t *testing.T) {
	assert.True(t, AssistantMessage("answer").IsFinal())
	assert.False(t, AssistantMessage("", NewToolCall("think", nil)).IsFinal())
	assert.False(t, UserMessage("hi").IsFinal())
}
