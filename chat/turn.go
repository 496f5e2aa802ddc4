package chat

import "strings"

// Role indicates the role of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"

	// RoleError marks a locally committed message describing a failed turn.
	// It is never sent to the server.
	RoleError Role = "error"
)

func (r Role) String() string {
	return string(r)
}

const (
	// EmptyResponsePlaceholder is committed as the message text when a turn
	// completes without producing any text.
	EmptyResponsePlaceholder = "(empty response)"

	// StoppedMarker is prepended to a turn that the user stopped mid-stream.
	StoppedMarker = "[stopped by user]"
)

// Turn is an assistant response under construction: an ordered sequence of
// content blocks plus turn-level status. It is mutated in place by Apply for
// each interpreted stream event and frozen into a Message when the stream
// finishes. A Turn is owned by exactly one stream session; it must not be
// mutated concurrently.
type Turn struct {
	ConversationID  string
	Blocks          []ContentBlock
	StatusLabel     string
	Done            bool
	PendingReviewID string
}

// NewTurn creates an empty turn for the given conversation. The conversation
// id may be empty; it is back-filled from the first stream event carrying one.
func NewTurn(conversationID string) *Turn {
	return &Turn{ConversationID: conversationID}
}

// Text returns the turn's flattened plain-text representation: the
// concatenation of all text block contents in order.
func (t *Turn) Text() string {
	var sb strings.Builder
	for _, block := range t.Blocks {
		if tb, ok := block.(*TextBlock); ok {
			sb.WriteString(tb.Content)
		}
	}
	return sb.String()
}

// Reset clears session-scoped transient state after finalization. Committed
// blocks keep whatever data they accumulated.
func (t *Turn) Reset() {
	t.StatusLabel = ""
	t.PendingReviewID = ""
}

// Message is a finalized conversation entry, either persisted by the server
// or committed locally from a finished Turn.
type Message struct {
	ID      string         `json:"id,omitempty"`
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// Text returns the message's plain-text content.
func (m *Message) Text() string {
	return m.Content
}

// NewUserMessage creates a user message with a single text block.
func NewUserMessage(text string) *Message {
	return &Message{
		Role:    RoleUser,
		Content: text,
		Blocks:  []ContentBlock{&TextBlock{Content: text}},
	}
}

// NewErrorMessage creates an error-role message describing a failed turn.
func NewErrorMessage(text string) *Message {
	return &Message{Role: RoleError, Content: text}
}

// CommitMessage freezes the turn into an assistant message. If the turn
// produced no text, the message text is a placeholder.
func (t *Turn) CommitMessage() *Message {
	text := t.Text()
	if text == "" {
		text = EmptyResponsePlaceholder
	}
	return &Message{
		Role:    RoleAssistant,
		Content: text,
		Blocks:  t.Blocks,
	}
}

// CommitStoppedMessage freezes a manually stopped turn. Whatever partial
// blocks exist are kept, prefixed with a stopped-marker text block. A turn
// with no blocks at all still commits a marker-only message.
func (t *Turn) CommitStoppedMessage() *Message {
	blocks := append([]ContentBlock{&TextBlock{Content: StoppedMarker}}, t.Blocks...)
	text := t.Text()
	if text == "" {
		text = StoppedMarker
	} else {
		text = StoppedMarker + "\n" + text
	}
	return &Message{
		Role:    RoleAssistant,
		Content: text,
		Blocks:  blocks,
	}
}
