package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/halyard-ai/halyard/chat"
)

var (
	assistantStyle = color.New(color.FgGreen)
	toolStyle      = color.New(color.FgMagenta, color.Bold)
	statusStyle    = color.New(color.FgCyan, color.Faint)
	warnStyle      = color.New(color.FgYellow, color.Bold)
	errorStyle     = color.New(color.FgRed, color.Bold)
	mutedStyle     = color.New(color.FgHiBlack)
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// renderStreamEvent prints live streaming progress: text deltas as they
// arrive, tool lifecycle markers, and status changes.
func renderStreamEvent(event chat.Event, turn *chat.Turn) {
	switch e := event.(type) {
	case *chat.TextDeltaEvent:
		assistantStyle.Print(e.Content)
	case *chat.ToolStartEvent:
		fmt.Println()
		toolStyle.Printf("▶ %s", e.ToolName)
		if e.Arguments != "" {
			mutedStyle.Printf(" %s", truncateLine(e.Arguments, 80))
		}
		fmt.Println()
	case *chat.ToolStreamEvent:
		mutedStyle.Print(e.Chunk)
	case *chat.ToolResultEvent:
		fmt.Println()
		toolStyle.Printf("✓ %s\n", e.ToolName)
	case *chat.SafetyRequiredEvent:
		fmt.Println()
		warnStyle.Printf("⏸ %s awaiting confirmation\n", e.ToolName)
	case *chat.ThinkingEvent, *chat.CheckingToolsEvent:
		statusStyle.Printf("… %s\n", turn.StatusLabel)
	}
}

// renderMessage prints a finalized message, block by block.
func renderMessage(msg *chat.Message) {
	if msg.Role == chat.RoleError {
		errorStyle.Printf("✗ %s\n", msg.Content)
		return
	}
	if len(msg.Blocks) == 0 {
		fmt.Println(msg.Content)
		return
	}
	for _, block := range msg.Blocks {
		switch b := block.(type) {
		case *chat.TextBlock:
			fmt.Println(b.Content)
		case *chat.ToolBlock:
			renderToolBlock(b)
		}
	}
}

func renderToolBlock(b *chat.ToolBlock) {
	switch b.Status {
	case chat.ToolStatusCompleted:
		toolStyle.Printf("✓ %s", b.ToolName)
	case chat.ToolStatusAwaitingConfirmation:
		warnStyle.Printf("⏸ %s", b.ToolName)
	default:
		toolStyle.Printf("▶ %s", b.ToolName)
	}
	if b.Arguments != "" {
		mutedStyle.Printf(" %s", truncateLine(b.Arguments, 80))
	}
	fmt.Println()
	if b.Result != nil {
		mutedStyle.Printf("  %s\n", truncateLine(formatResult(b.Result), 120))
	}
}

func formatResult(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

// truncateLine collapses a value to one width-bounded line for display.
func truncateLine(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, width, "…")
}
