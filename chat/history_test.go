package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcileHistoryPlainConversation(t *testing.T) {
	history := []ServerMessage{
		{Role: "system", Content: "you are helpful"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello!"},
		{Role: "user", Content: "bye"},
		{Role: "assistant", Content: "goodbye"},
	}
	messages := ReconcileHistory(history)
	require.Len(t, messages, 4)
	require.Equal(t, RoleUser, messages[0].Role)
	require.Equal(t, "hi", messages[0].Content)
	require.Equal(t, RoleAssistant, messages[1].Role)
	require.Equal(t, "hello!", messages[1].Content)
	require.Equal(t, RoleAssistant, messages[3].Role)
}

func TestReconcileHistoryToolCalls(t *testing.T) {
	history := []ServerMessage{
		{Role: "user", Content: "list files and check time"},
		{
			Role:    "assistant",
			Content: "on it",
			ToolCalls: []ServerToolCall{
				{Name: "shell", Arguments: json.RawMessage(`{"cmd":"ls"}`)},
				{Name: "clock"},
			},
		},
		{Role: "tool", Content: `{"files":["a","b"]}`},
		{Role: "tool", Content: "3pm sharp"},
	}
	messages := ReconcileHistory(history)
	require.Len(t, messages, 2)

	assistant := messages[1]
	require.Equal(t, RoleAssistant, assistant.Role)
	// One text block plus one completed tool block per call.
	require.Len(t, assistant.Blocks, 3)

	text := assistant.Blocks[0].(*TextBlock)
	require.Equal(t, "on it", text.Content)

	shell := assistant.Blocks[1].(*ToolBlock)
	require.Equal(t, "shell", shell.ToolName)
	require.Equal(t, ToolStatusCompleted, shell.Status)
	require.Equal(t, `{"cmd":"ls"}`, shell.Arguments)
	// Valid JSON results are parsed.
	require.Equal(t, map[string]any{"files": []any{"a", "b"}}, shell.Result)

	clock := assistant.Blocks[2].(*ToolBlock)
	require.Equal(t, ToolStatusCompleted, clock.Status)
	// Non-JSON results stay raw strings.
	require.Equal(t, "3pm sharp", clock.Result)
}

func TestReconcileHistoryToolOnlyAssistant(t *testing.T) {
	history := []ServerMessage{
		{Role: "user", Content: "go"},
		{
			Role:      "assistant",
			ToolCalls: []ServerToolCall{{Name: "shell"}},
		},
		{Role: "tool", Content: "done"},
	}
	messages := ReconcileHistory(history)
	require.Len(t, messages, 2)
	require.Len(t, messages[1].Blocks, 1)
	require.IsType(t, &ToolBlock{}, messages[1].Blocks[0])
}

func TestReconcileHistoryEmptyGroupOmitted(t *testing.T) {
	history := []ServerMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: ""},
		{Role: "user", Content: "still there?"},
	}
	messages := ReconcileHistory(history)
	require.Len(t, messages, 2)
	require.Equal(t, RoleUser, messages[0].Role)
	require.Equal(t, RoleUser, messages[1].Role)
}

func TestReconcileHistoryTrailingGroupFlushed(t *testing.T) {
	history := []ServerMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "part one"},
		{Role: "assistant", Content: " part two"},
	}
	messages := ReconcileHistory(history)
	require.Len(t, messages, 2)
	require.Equal(t, "part one part two", messages[1].Content)
	require.Len(t, messages[1].Blocks, 2)
}

func TestReconcileHistoryOrphanToolSkipped(t *testing.T) {
	history := []ServerMessage{
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "stray"},
		{Role: "assistant", Content: "hello"},
	}
	messages := ReconcileHistory(history)
	require.Len(t, messages, 2)
	require.Len(t, messages[1].Blocks, 1)
	require.IsType(t, &TextBlock{}, messages[1].Blocks[0])
}

func TestReconcileHistoryEmpty(t *testing.T) {
	require.Empty(t, ReconcileHistory(nil))
	require.Empty(t, ReconcileHistory([]ServerMessage{{Role: "system", Content: "x"}}))
}
