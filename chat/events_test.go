package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpretTextDelta(t *testing.T) {
	events, err := Interpret(`{"content":"hello"}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, &TextDeltaEvent{Content: "hello"}, events[0])
}

func TestInterpretEmptyContent(t *testing.T) {
	// Empty content is present but not actionable.
	events, err := Interpret(`{"content":""}`)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestInterpretMalformedRecord(t *testing.T) {
	events, err := Interpret(`{not json`)
	require.Error(t, err)
	require.Nil(t, events)
}

func TestInterpretConversationIDWithDelta(t *testing.T) {
	// One record can classify as several events; the conversation id comes
	// first so the turn learns it before applying the payload.
	events, err := Interpret(`{"conversation_id":"c1","content":"hi"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{
		&ConversationIDEvent{ID: "c1"},
		&TextDeltaEvent{Content: "hi"},
	}, events)
}

func TestInterpretDone(t *testing.T) {
	events, err := Interpret(`{"done":true}`)
	require.NoError(t, err)
	require.Equal(t, []Event{&DoneEvent{}}, events)
}

func TestInterpretStatusEvents(t *testing.T) {
	events, err := Interpret(`{"type":"thinking"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{&ThinkingEvent{}}, events)

	events, err = Interpret(`{"type":"checking_tools"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{&CheckingToolsEvent{}}, events)

	events, err = Interpret(`{"type":"cancelled"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{&CancelledEvent{}}, events)
}

func TestInterpretToolStart(t *testing.T) {
	events, err := Interpret(`{"type":"tool_start","tool_name":"shell","arguments":{"cmd":"ls"}}`)
	require.NoError(t, err)
	require.Equal(t, []Event{
		&ToolStartEvent{ToolName: "shell", Arguments: `{"cmd":"ls"}`},
	}, events)

	// String arguments are unquoted.
	events, err = Interpret(`{"type":"tool_start","tool_name":"shell","arguments":"ls -la"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{
		&ToolStartEvent{ToolName: "shell", Arguments: "ls -la"},
	}, events)
}

func TestInterpretToolStreamDefaultName(t *testing.T) {
	events, err := Interpret(`{"type":"tool_stream","chunk":"partial"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{
		&ToolStreamEvent{ToolName: DefaultToolName, Chunk: "partial"},
	}, events)
}

func TestInterpretToolResult(t *testing.T) {
	events, err := Interpret(`{"type":"tool_result","tool_name":"shell","result":{"exit_code":0}}`)
	require.NoError(t, err)
	require.Len(t, events, 1)
	result := events[0].(*ToolResultEvent)
	require.Equal(t, "shell", result.ToolName)
	require.Equal(t, map[string]any{"exit_code": float64(0)}, result.Result)
}

func TestInterpretSafetyRequired(t *testing.T) {
	payload := `{"type":"safety_confirmation_required","tool_name":"shell",` +
		`"review_id":"r1","command":"rm -rf /tmp/x","cwd":"/home","conversation_id":"c1",` +
		`"review":{"risk":"high"}}`
	events, err := Interpret(payload)
	require.NoError(t, err)
	require.Equal(t, []Event{
		&ConversationIDEvent{ID: "c1"},
		&SafetyRequiredEvent{
			ToolName:       "shell",
			ReviewID:       "r1",
			Command:        "rm -rf /tmp/x",
			Cwd:            "/home",
			Review:         map[string]any{"risk": "high"},
			ConversationID: "c1",
		},
	}, events)
}

func TestInterpretError(t *testing.T) {
	events, err := Interpret(`{"error":"boom"}`)
	require.NoError(t, err)
	require.Equal(t, []Event{&ErrorEvent{Message: "boom"}}, events)

	// Object-shaped errors surface their message.
	events, err = Interpret(`{"error":{"message":"rate limited"}}`)
	require.NoError(t, err)
	require.Equal(t, []Event{&ErrorEvent{Message: "rate limited"}}, events)
}

func TestInterpretFalsyError(t *testing.T) {
	for _, payload := range []string{
		`{"error":null,"content":"ok"}`,
		`{"error":false,"content":"ok"}`,
		`{"error":"","content":"ok"}`,
		`{"error":0,"content":"ok"}`,
	} {
		events, err := Interpret(payload)
		require.NoError(t, err, payload)
		require.Equal(t, []Event{&TextDeltaEvent{Content: "ok"}}, events, payload)
	}
}
