package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halyard-ai/halyard/chat"
)

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Show a past conversation, reconstructed block by block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}
			detail, err := c.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			messages := chat.ReconcileHistory(detail.Messages)
			for i, msg := range messages {
				if i > 0 {
					fmt.Println()
				}
				switch msg.Role {
				case chat.RoleUser:
					statusStyle.Println("you:")
				default:
					statusStyle.Println("assistant:")
				}
				renderMessage(msg)
			}
			return nil
		},
	}
}
