package main

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newConversationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}
			conversations, err := c.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			if len(conversations) == 0 {
				fmt.Println("no conversations")
				return nil
			}
			for _, conv := range conversations {
				title := conv.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%s  %s", conv.ID, runewidth.FillRight(runewidth.Truncate(title, 48, "…"), 48))
				if !conv.UpdatedAt.IsZero() {
					mutedStyle.Printf("  %s", conv.UpdatedAt.Format("2006-01-02 15:04"))
				}
				fmt.Println()
			}
			return nil
		},
	}
}
