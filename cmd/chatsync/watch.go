package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	chatsync "github.com/tapvera/chatsync"
	"pkt.systems/pslog"
)

var watchConversation string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchConversation, "conversation", "", "Mark this conversation active (its messages never count as unread)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live messages and unread counts",
	Long:  "Open the persistent connection and print every message and unread change until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client := getClient()
		logger := pslog.Ctx(cmd.Context())

		bus := chatsync.NewBus()
		session := chatsync.NewSession(cfg.Auth.UserID, bus)
		ledger := chatsync.NewUnreadLedger(chatsync.NewMemoryStore(), bus, session, logger)
		dispatcher := chatsync.NewDispatcher(bus, nil, chatsync.WithDispatcherLogger(logger))

		ctx := cmd.Context()

		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		groups, err := client.Chat().Groups(fetchCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		session.SetConversations(groups)
		if watchConversation != "" {
			session.SetActiveConversation(watchConversation)
		}

		msgSub := bus.OnMessage(func(env chatsync.Envelope) {
			name := session.ConversationName(env.ConversationID)
			fmt.Printf("[%s] %s: %s\n", name, env.SenderID, env.Body)
		})
		defer msgSub.Cancel()
		totalSub := bus.OnUnreadTotal(func(total int) {
			fmt.Printf("-- unread total: %d\n", total)
		})
		defer totalSub.Cancel()
		notifSub := bus.OnNotification(func(n chatsync.Notification) {
			fmt.Printf("** %s: %s\n", n.Channel, n.Text())
		})
		defer notifSub.Cancel()

		conn := chatsync.NewConn(client, session, ledger, bus, dispatcher, &chatsync.ConnConfig{
			Token:  cfg.Auth.Token,
			Logger: logger,
		})
		conn.Connect(ctx)
		defer conn.Close()

		fmt.Printf("Watching %d conversations. Ctrl-C to stop.\n", len(groups))
		<-ctx.Done()
		return nil
	},
}
