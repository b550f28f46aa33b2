package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(groupsCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <message>",
	Short: "Send a chat message",
	Long:  "Post a message to a conversation over the REST endpoint.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, message := args[0], args[1]
		client := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := client.Chat().SendMessage(ctx, conversationID, message); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}

		fmt.Printf("Sent to %s\n", conversationID)
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		groups, err := client.Chat().Groups(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if len(groups) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, g := range groups {
			name := g.Name
			if name == "" {
				name = "Group Chat"
			}
			fmt.Printf("%-26s %s\n", g.ID, name)
		}
		return nil
	},
}
