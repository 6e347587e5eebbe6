package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/caravel-ai/caravel/core"
	"github.com/caravel-ai/caravel/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := openStore(t)

	id, err := s.Create("planner", "", "", core.ThreadRoot, "mission")
	require.NoError(t, err)

	call := core.NewToolCall("researcher", map[string]any{"message": "tides"})
	require.NoError(t, s.Append(id, core.UserMessage("research tides")))
	require.NoError(t, s.Append(id, core.AssistantMessage("", call)))
	require.NoError(t, s.Append(id, core.ToolMessage(core.ToolResult{CallID: call.ID, Name: "researcher", Content: "done"})))
	require.NoError(t, s.AddUsage(id, "anthropic/claude", core.ModelUsage{InputTokens: 10, OutputTokens: 4}))

	sess, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "planner", sess.Agent)
	assert.Equal(t, core.ThreadRoot, sess.Type)
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, "research tides", sess.Messages[0].Content)
	require.Len(t, sess.Messages[1].ToolCalls, 1)
	assert.Equal(t, call.ID, sess.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, call.ID, sess.Messages[2].ToolResults[0].CallID)
	assert.Equal(t, core.ModelUsage{InputTokens: 10, OutputTokens: 4}, sess.Usage["anthropic/claude"])
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Create("planner", "", "", core.ThreadRoot, "")
	require.NoError(t, err)
	require.NoError(t, s.Append(id, core.UserMessage("survives restart")))
	require.NoError(t, s.AddUsage(id, "openai/gpt", core.ModelUsage{InputTokens: 3, OutputTokens: 1}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	sess, err := reopened.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "survives restart", sess.Messages[0].Content)
	assert.Equal(t, core.ModelUsage{InputTokens: 3, OutputTokens: 1}, sess.Usage["openai/gpt"])
}

func TestStore_LineageAndFork(t *testing.T) {
	s, _ := openStore(t)

	root, err := s.Create("planner", "", "", core.ThreadRoot, "")
	require.NoError(t, err)
	child, err := s.Create("researcher", root, "planner", core.ThreadDelegation, "")
	require.NoError(t, err)

	_, err = s.Create("x", "missing", "y", core.ThreadDelegation, "")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)

	children, err := s.Children(root)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child, children[0].ID)
	assert.Equal(t, "planner", children[0].ParentAgent)

	require.NoError(t, s.Append(root, core.UserMessage("one")))
	require.NoError(t, s.Append(root, core.AssistantMessage("two")))
	forkID, err := s.Fork(root, 1, "alt")
	require.NoError(t, err)
	fork, err := s.Get(forkID)
	require.NoError(t, err)
	assert.Equal(t, core.ThreadFork, fork.Type)
	assert.Equal(t, root, fork.ParentID)
	require.Len(t, fork.Messages, 1)
	assert.Equal(t, "one", fork.Messages[0].Content)
}

func TestStore_ListFiltersByAgent(t *testing.T) {
	s, _ := openStore(t)

	a, err := s.Create("planner", "", "", core.ThreadRoot, "")
	require.NoError(t, err)
	_, err = s.Create("writer", "", "", core.ThreadRoot, "")
	require.NoError(t, err)

	planner, err := s.List("planner")
	require.NoError(t, err)
	require.Len(t, planner, 1)
	assert.Equal(t, a, planner[0].ID)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_WorksWithThreadHelpers(t *testing.T) {
	s, _ := openStore(t)

	root, err := s.Create("planner", "", "", core.ThreadRoot, "")
	require.NoError(t, err)
	child, err := s.Create("researcher", root, "planner", core.ThreadDelegation, "")
	require.NoError(t, err)
	require.NoError(t, s.AddUsage(root, "anthropic/claude", core.ModelUsage{InputTokens: 2, OutputTokens: 1}))
	require.NoError(t, s.AddUsage(child, "anthropic/claude", core.ModelUsage{InputTokens: 3, OutputTokens: 1}))

	total, err := session.TreeUsage(s, root)
	require.NoError(t, err)
	assert.Equal(t, core.ModelUsage{InputTokens: 5, OutputTokens: 2}, total["anthropic/claude"])
}
