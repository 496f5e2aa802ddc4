package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventType identifies the kind of a semantic stream event.
type EventType string

const (
	EventTypeError          EventType = "error"
	EventTypeThinking       EventType = "thinking"
	EventTypeCheckingTools  EventType = "checking_tools"
	EventTypeToolStart      EventType = "tool_start"
	EventTypeToolStream     EventType = "tool_stream"
	EventTypeToolResult     EventType = "tool_result"
	EventTypeSafetyRequired EventType = "safety_confirmation_required"
	EventTypeTextDelta      EventType = "text_delta"
	EventTypeDone           EventType = "done"
	EventTypeCancelled      EventType = "cancelled"
	EventTypeConversationID EventType = "conversation_id"
)

func (e EventType) String() string {
	return string(e)
}

// DefaultToolName is assumed for tool_stream records that omit a tool name.
const DefaultToolName = "local_cursor_agent"

// Event is one semantic event decoded from a stream record. The concrete
// types below form a closed set; payload shapes are validated once here at
// the interpreter boundary and never re-probed downstream.
type Event interface {
	EventType() EventType
}

// ErrorEvent is a server-reported error. It aborts the current turn.
type ErrorEvent struct {
	Message string
}

func (e *ErrorEvent) EventType() EventType { return EventTypeError }

// ThinkingEvent reports that the assistant is thinking.
type ThinkingEvent struct{}

func (e *ThinkingEvent) EventType() EventType { return EventTypeThinking }

// CheckingToolsEvent reports that the server is resolving available tools.
type CheckingToolsEvent struct{}

func (e *CheckingToolsEvent) EventType() EventType { return EventTypeCheckingTools }

// ToolStartEvent reports that a tool invocation began.
type ToolStartEvent struct {
	ToolName  string
	Arguments string
}

func (e *ToolStartEvent) EventType() EventType { return EventTypeToolStart }

// ToolStreamEvent carries a chunk of a running tool's streamed output.
type ToolStreamEvent struct {
	ToolName string
	Chunk    string
}

func (e *ToolStreamEvent) EventType() EventType { return EventTypeToolStream }

// ToolResultEvent carries a tool invocation's final result.
type ToolResultEvent struct {
	ToolName string
	Result   any
}

func (e *ToolResultEvent) EventType() EventType { return EventTypeToolResult }

// SafetyRequiredEvent reports that a tool is paused pending an explicit
// client approval.
type SafetyRequiredEvent struct {
	ToolName       string
	ReviewID       string
	Command        string
	Cwd            string
	Review         map[string]any
	ConversationID string
}

func (e *SafetyRequiredEvent) EventType() EventType { return EventTypeSafetyRequired }

// TextDeltaEvent carries an increment of assistant text.
type TextDeltaEvent struct {
	Content string
}

func (e *TextDeltaEvent) EventType() EventType { return EventTypeTextDelta }

// DoneEvent marks the end of a successful turn. No further records follow.
type DoneEvent struct{}

func (e *DoneEvent) EventType() EventType { return EventTypeDone }

// CancelledEvent reports that the server acknowledged a cancellation.
type CancelledEvent struct{}

func (e *CancelledEvent) EventType() EventType { return EventTypeCancelled }

// ConversationIDEvent back-fills the server-assigned conversation id when it
// was still unknown at turn start.
type ConversationIDEvent struct {
	ID string
}

func (e *ConversationIDEvent) EventType() EventType { return EventTypeConversationID }

// streamRecord is the loose wire shape of one record's JSON payload.
type streamRecord struct {
	Type           string          `json:"type"`
	Error          json.RawMessage `json:"error"`
	Content        *string         `json:"content"`
	Done           bool            `json:"done"`
	ConversationID string          `json:"conversation_id"`
	ToolName       string          `json:"tool_name"`
	Arguments      json.RawMessage `json:"arguments"`
	Chunk          string          `json:"chunk"`
	Result         json.RawMessage `json:"result"`
	ReviewID       string          `json:"review_id"`
	Command        string          `json:"command"`
	Cwd            string          `json:"cwd"`
	Review         map[string]any  `json:"review"`
}

// Interpret decodes one raw record payload into its semantic events. A
// single record may produce several events (a conversation id plus a text
// delta, for example); all applicable events are returned, in the order the
// controller should apply them. A JSON parse failure is returned as an error
// so the caller can skip the record without aborting the stream.
func Interpret(payload string) ([]Event, error) {
	var rec streamRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("malformed stream record: %w", err)
	}

	var events []Event

	if rec.ConversationID != "" {
		events = append(events, &ConversationIDEvent{ID: rec.ConversationID})
	}
	if truthy(rec.Error) {
		events = append(events, &ErrorEvent{Message: errorText(rec.Error)})
	}

	switch rec.Type {
	case "thinking":
		events = append(events, &ThinkingEvent{})
	case "checking_tools":
		events = append(events, &CheckingToolsEvent{})
	case "tool_start":
		events = append(events, &ToolStartEvent{
			ToolName:  rec.ToolName,
			Arguments: rawToString(rec.Arguments),
		})
	case "tool_stream":
		name := rec.ToolName
		if name == "" {
			name = DefaultToolName
		}
		events = append(events, &ToolStreamEvent{ToolName: name, Chunk: rec.Chunk})
	case "tool_result":
		events = append(events, &ToolResultEvent{
			ToolName: rec.ToolName,
			Result:   rawToValue(rec.Result),
		})
	case "safety_confirmation_required":
		events = append(events, &SafetyRequiredEvent{
			ToolName:       rec.ToolName,
			ReviewID:       rec.ReviewID,
			Command:        rec.Command,
			Cwd:            rec.Cwd,
			Review:         rec.Review,
			ConversationID: rec.ConversationID,
		})
	case "cancelled":
		events = append(events, &CancelledEvent{})
	default:
		// Untyped records carry plain text deltas. Empty content is a no-op.
		if rec.Content != nil && *rec.Content != "" {
			events = append(events, &TextDeltaEvent{Content: *rec.Content})
		}
	}

	if rec.Done {
		events = append(events, &DoneEvent{})
	}
	return events, nil
}

// truthy reports whether a raw JSON error field is present and truthy in the
// loose sense: not absent, null, false, zero, or an empty string.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// errorText extracts a human-readable message from an error field that may
// be a bare string, an object with a message or detail, or anything else.
func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Detail != "" {
			return obj.Detail
		}
	}
	return string(raw)
}

// rawToString renders a raw JSON value as a plain string. Quoted strings are
// unquoted; any other value keeps its JSON text.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// rawToValue decodes a raw JSON value into a generic Go value, falling back
// to the raw text when it is not valid JSON.
func rawToValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
