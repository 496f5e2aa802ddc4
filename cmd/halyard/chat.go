package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halyard-ai/halyard/chat"
	"github.com/halyard-ai/halyard/client"
)

func newChatCommand() *cobra.Command {
	var conversationID string
	var regenerateAfter int

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message and stream the assistant's response",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}

			regenerate := cmd.Flags().Changed("regenerate-after")
			if !regenerate && len(args) == 0 {
				return fmt.Errorf("a message is required unless --regenerate-after is set")
			}
			if regenerate && conversationID == "" {
				return fmt.Errorf("--regenerate-after requires --conversation")
			}

			sess := c.NewStreamSession(client.StreamSessionOptions{
				ConversationID: conversationID,
				Timeout:        a.cfg.StreamTimeoutDuration(),
				OnEvent:        renderStreamEvent,
				Logger:         a.logger,
			})

			// Ctrl-C stops the turn; the partial response is still committed.
			// The watcher stands down once the turn finalizes so the deferred
			// stop() cannot cancel a completed conversation.
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				select {
				case <-sess.Done():
				case <-sigCtx.Done():
					sess.Cancel()
				}
			}()

			var msg *chat.Message
			if regenerate {
				msg, err = sess.Regenerate(context.WithoutCancel(sigCtx), regenerateAfter)
			} else {
				msg, err = sess.Send(context.WithoutCancel(sigCtx), args[0])
			}
			if err != nil {
				return err
			}
			stop()

			fmt.Println()
			renderMessage(msg)
			a.rememberConversation(cmd.Context(), sess.ConversationID())

			// A tool paused for safety confirmation: ask, decide, and let the
			// user re-run chat to continue.
			if review := pendingReview(msg); review != nil {
				return promptSafetyDecision(cmd.Context(), c, review)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "existing conversation id (omit to start a new one)")
	cmd.Flags().IntVar(&regenerateAfter, "regenerate-after", 0, "regenerate the turn after this 0-based count of prior user turns")
	return cmd
}

// rememberConversation refreshes the cached conversation listing in the
// persisted session.
func (a *app) rememberConversation(ctx context.Context, conversationID string) {
	if conversationID == "" || a.sess == nil {
		return
	}
	a.sess.RememberConversation(conversationID, "")
	if err := a.store.Save(ctx, a.sess); err != nil {
		a.logger.Warn("failed to update session", "error", err)
	}
}

// pendingReview returns the awaiting-confirmation tool block of a committed
// message, if any.
func pendingReview(msg *chat.Message) *chat.ToolBlock {
	for _, block := range msg.Blocks {
		if tb, ok := block.(*chat.ToolBlock); ok && tb.Status == chat.ToolStatusAwaitingConfirmation {
			return tb
		}
	}
	return nil
}

func promptSafetyDecision(ctx context.Context, c *client.Client, review *chat.ToolBlock) error {
	fmt.Println()
	warnStyle.Printf("tool %q requires confirmation\n", review.ToolName)
	if review.Command != "" {
		fmt.Printf("  command: %s\n", review.Command)
	}
	if review.Cwd != "" {
		fmt.Printf("  cwd:     %s\n", review.Cwd)
	}
	fmt.Print("approve? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	approve := strings.EqualFold(strings.TrimSpace(line), "y")
	if err := c.SafetyDecision(ctx, review.ConversationID, review.ReviewID, approve); err != nil {
		return err
	}
	if approve {
		fmt.Println("approved; run 'halyard chat' again to continue the conversation")
	} else {
		fmt.Println("rejected")
	}
	return nil
}
