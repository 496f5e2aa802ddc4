package chat

import (
	"encoding/json"
	"fmt"
)

// BlockType indicates the type of a content block in an assistant turn.
type BlockType string

const (
	BlockTypeText BlockType = "text"
	BlockTypeTool BlockType = "tool"
)

// ToolStatus is the lifecycle state of a tool invocation. A tool moves only
// forward: running -> completed, or running -> awaiting_confirmation ->
// completed. A new tool_start for the same tool may restart a block that is
// awaiting confirmation.
type ToolStatus string

const (
	ToolStatusRunning              ToolStatus = "running"
	ToolStatusCompleted            ToolStatus = "completed"
	ToolStatusAwaitingConfirmation ToolStatus = "awaiting_confirmation"
)

func (s ToolStatus) String() string {
	return string(s)
}

// ContentBlock is a single block in an assistant turn. A turn contains an
// ordered sequence of blocks of varying types.
type ContentBlock interface {
	BlockType() BlockType
}

// TextBlock holds a span of assistant text. Streaming text deltas are
// appended to the trailing TextBlock of the turn.
type TextBlock struct {
	Content string `json:"content"`
}

func (b *TextBlock) BlockType() BlockType {
	return BlockTypeText
}

func (b *TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		*alias
	}{Type: b.BlockType(), alias: (*alias)(b)})
}

// ToolBlock records one tool invocation: its streamed output while running,
// its final result once completed, and review metadata when the server pauses
// the tool for a safety confirmation.
type ToolBlock struct {
	ToolName         string         `json:"tool_name"`
	Status           ToolStatus     `json:"status"`
	Arguments        string         `json:"arguments,omitempty"`
	StreamingContent string         `json:"streaming_content,omitempty"`
	Result           any            `json:"result,omitempty"`
	ReviewID         string         `json:"review_id,omitempty"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	Review           map[string]any `json:"review,omitempty"`
	Command          string         `json:"command,omitempty"`
	Cwd              string         `json:"cwd,omitempty"`
}

func (b *ToolBlock) BlockType() BlockType {
	return BlockTypeTool
}

func (b *ToolBlock) MarshalJSON() ([]byte, error) {
	type alias ToolBlock
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		*alias
	}{Type: b.BlockType(), alias: (*alias)(b)})
}

// UnmarshalContentBlock decodes a single block previously marshaled with a
// "type" tag.
func UnmarshalContentBlock(data []byte) (ContentBlock, error) {
	var probe struct {
		Type BlockType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case BlockTypeText:
		var b TextBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	case BlockTypeTool:
		var b ToolBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("unsupported block type: %q", probe.Type)
	}
}
