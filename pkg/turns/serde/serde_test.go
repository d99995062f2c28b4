package serde

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadReplay(t *testing.T) {
	tr := turns.NewTranscript()
	tr.AppendUser("How much is the t-bone steak?")
	require.NoError(t, tr.OpenToolCalls([]turns.ToolCallRequest{
		{CallID: "1", ToolName: "get_item_price", Arguments: map[string]string{"menu_item": "t-bone steak"}},
	}))
	_, err := tr.AppendToolResult("1", "get_item_price", "$9.99")
	require.NoError(t, err)
	tr.AppendAssistant("$9.99.", "Host")

	path := filepath.Join(t.TempDir(), "transcript.yaml")
	require.NoError(t, SaveTranscriptYAML(path, Document{SessionID: "s-1", Agent: "Host", Turns: tr.Turns()}))

	doc, err := LoadTranscriptYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "s-1", doc.SessionID)
	require.Len(t, doc.Turns, 3)

	replayed, err := Replay(doc)
	require.NoError(t, err)
	got := replayed.Turns()
	require.Len(t, got, 3)
	assert.Equal(t, turns.RoleTool, got[1].Role)
	assert.Equal(t, "t-bone steak", got[1].ToolCalls[0].Arguments["menu_item"])
	assert.Equal(t, "$9.99.", got[2].Content)
	assert.Equal(t, "Host", got[2].Author)
}

func TestReplay_KeepsToolRoundsApart(t *testing.T) {
	tr := turns.NewTranscript()
	tr.AppendUser("chain")
	for _, name := range []string{"first", "second"} {
		require.NoError(t, tr.OpenToolCalls([]turns.ToolCallRequest{{CallID: "call_1", ToolName: name}}))
		_, err := tr.AppendToolResult("call_1", name, name)
		require.NoError(t, err)
	}
	tr.AppendAssistant("done second", "Host")

	b, err := ToYAML(Document{Turns: tr.Turns()})
	require.NoError(t, err)
	assert.Contains(t, string(b), "round: 2")

	doc, err := FromYAML(b)
	require.NoError(t, err)
	replayed, err := Replay(doc)
	require.NoError(t, err)
	got := replayed.Turns()
	require.Len(t, got, 4)
	assert.Equal(t, 1, got[1].Round)
	assert.Equal(t, 2, got[2].Round)
	assert.Equal(t, "second", got[2].ToolName())
}

func TestFromYAML_RejectsUnknownRole(t *testing.T) {
	_, err := FromYAML([]byte("turns:\n  - role: system\n    content: hi\n"))
	assert.Error(t, err)
}

func TestReplay_DuplicateResultIsDangling(t *testing.T) {
	doc := &Document{Turns: []turns.Turn{
		{Role: turns.RoleUser, Content: "hi"},
		{Role: turns.RoleTool, Content: "a", ToolCalls: []turns.ToolCallRequest{{CallID: "1", ToolName: "x"}}},
		{Role: turns.RoleTool, Content: "b"},
	}}
	_, err := Replay(doc)
	var dangling *turns.DanglingToolResultError
	assert.True(t, errors.As(err, &dangling))
}
