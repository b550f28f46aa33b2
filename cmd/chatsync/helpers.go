package main

import (
	"fmt"
	"os"

	chatsync "github.com/tapvera/chatsync"
)

// getClient creates a client authenticated with the stored session token.
func getClient() *chatsync.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "No session token. Run 'chatsync init <token>' first.")
		os.Exit(1)
	}

	var opts []chatsync.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, chatsync.WithBaseURL(cfg.Default.BaseURL))
	}

	return chatsync.NewClient(cfg.Auth.Token, opts...)
}
