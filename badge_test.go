package chatsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================================
// Unread Poller
// ============================================================================

func TestUnreadPoller(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Write([]byte(`{"unreadCount":3}`))
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	counts := make(chan int, 8)
	poller := NewUnreadPoller(client, "proj-1", func(count int) { counts <- count },
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	if got := waitFor(t, counts, "first poll"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := waitFor(t, counts, "second poll"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}

	cancel()
	waitFor(t, done, "poller shutdown")
}

func TestUnreadPollerKeepsGoingOnError(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"unreadCount":2}`))
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	counts := make(chan int, 8)
	poller := NewUnreadPoller(client, "proj-1", func(count int) { counts <- count },
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	// The failed first poll is skipped; the next delivers.
	if got := waitFor(t, counts, "poll after error"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
