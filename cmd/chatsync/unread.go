package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	chatsync "github.com/tapvera/chatsync"
)

var (
	unreadWatch    bool
	unreadInterval time.Duration
)

func init() {
	rootCmd.AddCommand(unreadCmd)
	unreadCmd.Flags().BoolVar(&unreadWatch, "watch", false, "Keep polling and print every change")
	unreadCmd.Flags().DurationVar(&unreadInterval, "interval", chatsync.DefaultPollInterval, "Poll interval used with --watch")
}

var unreadCmd = &cobra.Command{
	Use:   "unread [project-id]",
	Short: "Show the server-side unread message count for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		projectID := cfg.Default.Project
		if len(args) == 1 {
			projectID = args[0]
		}
		if projectID == "" {
			return fmt.Errorf("no project id: pass one or set default.project")
		}

		client := getClient()

		if !unreadWatch {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			count, err := client.Projects().UnreadCount(ctx, projectID)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			fmt.Println(count)
			return nil
		}

		poller := chatsync.NewUnreadPoller(client, projectID, func(count int) {
			fmt.Printf("%s unread=%d\n", time.Now().Format(time.TimeOnly), count)
		}, chatsync.WithPollInterval(unreadInterval))
		poller.Run(cmd.Context())
		return nil
	},
}
