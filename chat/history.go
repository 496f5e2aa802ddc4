package chat

import "encoding/json"

// ServerToolCall is a tool-call descriptor attached to a persisted assistant
// message.
type ServerToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ServerMessage is one entry of a conversation's flat persisted log, as
// returned by the server.
type ServerMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ServerToolCall `json:"tool_calls,omitempty"`
}

// ReconcileHistory converts a flat persisted message log back into the same
// block-structured messages that live streaming produces, so history and
// live turns render identically.
//
// System messages are dropped. A user message flushes any pending assistant
// group and is emitted as-is. Assistant and tool messages accumulate into a
// group: an assistant message with N tool-call descriptors consumes the next
// N tool messages as their results, paired by position, and the group
// flattens into a single assistant message whose blocks are the assistant's
// own text (if any) followed by one completed tool block per call. A group
// that produces no blocks is omitted entirely.
func ReconcileHistory(history []ServerMessage) []*Message {
	var messages []*Message
	var group []ServerMessage

	flush := func() {
		if msg := flattenGroup(group); msg != nil {
			messages = append(messages, msg)
		}
		group = nil
	}

	for _, m := range history {
		switch m.Role {
		case "system":
			// dropped
		case "user":
			flush()
			messages = append(messages, NewUserMessage(m.Content))
		case "assistant", "tool":
			group = append(group, m)
		}
	}
	flush()

	return messages
}

// flattenGroup folds one run of assistant/tool messages into a single
// assistant message.
func flattenGroup(group []ServerMessage) *Message {
	var blocks []ContentBlock
	var text string

	for i := 0; i < len(group); i++ {
		m := group[i]
		if m.Role != "assistant" {
			// A tool message not consumed by a preceding assistant's
			// descriptors has nothing to pair with; skip it.
			continue
		}
		if m.Content != "" {
			blocks = append(blocks, &TextBlock{Content: m.Content})
			text += m.Content
		}
		for _, call := range m.ToolCalls {
			block := &ToolBlock{
				ToolName:  call.Name,
				Status:    ToolStatusCompleted,
				Arguments: rawToString(call.Arguments),
			}
			// Pair with the next tool message, by position.
			if j := i + 1; j < len(group) && group[j].Role == "tool" {
				block.Result = parseToolResult(group[j].Content)
				i = j
			}
			blocks = append(blocks, block)
		}
	}

	if len(blocks) == 0 {
		return nil
	}
	return &Message{
		Role:    RoleAssistant,
		Content: text,
		Blocks:  blocks,
	}
}

// parseToolResult decodes a persisted tool result, keeping the raw string
// when it is not valid JSON.
func parseToolResult(content string) any {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err == nil {
		return v
	}
	return content
}
