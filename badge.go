package chatsync

import (
	"context"
	"time"

	"pkt.systems/pslog"
)

// ============================================================================
// Unread Poller
// ============================================================================

// DefaultPollInterval is how often the poller asks the server for a project's
// unread count when no interval is configured.
const DefaultPollInterval = 30 * time.Second

// UnreadPoller periodically fetches the server-side unread count for one
// project. It is a backstop beside the socket-driven ledger: the socket keeps
// badges live, the poller catches counts accrued while the tab was
// disconnected. Poll errors are logged and the stale count kept.
type UnreadPoller struct {
	client    *Client
	projectID string
	interval  time.Duration
	onCount   func(count int)
	log       pslog.Logger
}

// PollerOption configures an UnreadPoller.
type PollerOption func(*UnreadPoller)

// WithPollInterval overrides the poll interval.
func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *UnreadPoller) { p.interval = interval }
}

// WithPollerLogger overrides the poller's logger.
func WithPollerLogger(logger pslog.Logger) PollerOption {
	return func(p *UnreadPoller) { p.log = logger }
}

// NewUnreadPoller creates a poller that reports counts through onCount.
func NewUnreadPoller(client *Client, projectID string, onCount func(count int), opts ...PollerOption) *UnreadPoller {
	p := &UnreadPoller{
		client:    client,
		projectID: projectID,
		interval:  DefaultPollInterval,
		onCount:   onCount,
		log:       pslog.Ctx(context.Background()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *UnreadPoller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *UnreadPoller) poll(ctx context.Context) {
	count, err := p.client.Projects().UnreadCount(ctx, p.projectID)
	if err != nil {
		p.log.Warn("unread poll failed", "project", p.projectID, "err", err)
		return
	}
	if p.onCount != nil {
		p.onCount(count)
	}
}
