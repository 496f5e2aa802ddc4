package chat

// Apply folds one semantic event into the turn. Events are applied strictly
// in stream order by a single goroutine; the reducer itself performs no I/O
// and is independently testable.
//
// Tool events use two different search directions on purpose. A tool_start
// prefers reusing the earliest non-terminal placeholder for its tool name
// (first match), so a re-invocation restarts the pending block instead of
// growing the turn. Streaming chunks, results, and safety pauses bind to the
// most recently started invocation of that tool (last match), so a late
// chunk cannot attach to a stale, already-completed call.
func (t *Turn) Apply(event Event) {
	switch e := event.(type) {
	case *TextDeltaEvent:
		if n := len(t.Blocks); n > 0 {
			if tb, ok := t.Blocks[n-1].(*TextBlock); ok {
				tb.Content += e.Content
				return
			}
		}
		t.Blocks = append(t.Blocks, &TextBlock{Content: e.Content})

	case *ToolStartEvent:
		if block := t.firstToolBlock(e.ToolName, func(b *ToolBlock) bool {
			return b.Status != ToolStatusCompleted
		}); block != nil {
			block.Status = ToolStatusRunning
			block.Arguments = e.Arguments
			block.StreamingContent = ""
			return
		}
		t.Blocks = append(t.Blocks, &ToolBlock{
			ToolName:  e.ToolName,
			Status:    ToolStatusRunning,
			Arguments: e.Arguments,
		})

	case *ToolStreamEvent:
		// A chunk with no open invocation is dropped.
		if block := t.lastToolBlock(e.ToolName, func(b *ToolBlock) bool {
			return b.Status == ToolStatusRunning
		}); block != nil {
			block.StreamingContent += e.Chunk
		}

	case *ToolResultEvent:
		// A result with no matching invocation is dropped.
		if block := t.lastToolBlock(e.ToolName, nil); block != nil {
			block.Status = ToolStatusCompleted
			block.Result = e.Result
		}

	case *SafetyRequiredEvent:
		conversationID := e.ConversationID
		if conversationID == "" {
			conversationID = t.ConversationID
		}
		block := t.lastToolBlock(e.ToolName, nil)
		if block == nil {
			block = &ToolBlock{ToolName: e.ToolName}
			t.Blocks = append(t.Blocks, block)
		}
		block.Status = ToolStatusAwaitingConfirmation
		block.ReviewID = e.ReviewID
		block.Command = e.Command
		block.Cwd = e.Cwd
		block.Review = e.Review
		block.ConversationID = conversationID
		t.PendingReviewID = e.ReviewID

	case *ThinkingEvent:
		t.StatusLabel = "thinking"

	case *CheckingToolsEvent:
		t.StatusLabel = "checking tools"

	case *ConversationIDEvent:
		if t.ConversationID == "" {
			t.ConversationID = e.ID
		}

	case *DoneEvent:
		t.Done = true
		t.StatusLabel = ""
	}
	// ErrorEvent and CancelledEvent mutate no blocks; the stream controller
	// handles them during finalization.
}

// firstToolBlock returns the earliest tool block matching name and the
// optional predicate.
func (t *Turn) firstToolBlock(name string, match func(*ToolBlock) bool) *ToolBlock {
	for _, block := range t.Blocks {
		if tb, ok := block.(*ToolBlock); ok && tb.ToolName == name {
			if match == nil || match(tb) {
				return tb
			}
		}
	}
	return nil
}

// lastToolBlock returns the most recent tool block matching name and the
// optional predicate.
func (t *Turn) lastToolBlock(name string, match func(*ToolBlock) bool) *ToolBlock {
	for i := len(t.Blocks) - 1; i >= 0; i-- {
		if tb, ok := t.Blocks[i].(*ToolBlock); ok && tb.ToolName == name {
			if match == nil || match(tb) {
				return tb
			}
		}
	}
	return nil
}
