package chatsync

import (
	"context"

	"pkt.systems/pslog"
)

// ============================================================================
// Notification Dispatcher
// ============================================================================

// OSNotifier is the boundary to the platform's notification surface. Enabled
// reflects the user's permission flag; implementations must not prompt again
// once permission has been denied.
type OSNotifier interface {
	Enabled() bool
	Show(n Notification) error
}

// Dispatcher routes normalized notification requests: every request reaches
// in-app subscribers via the bus, and additionally the OS surface when
// permission allows. A denied permission degrades to in-app-only delivery
// with no retry loop.
type Dispatcher struct {
	bus      *Bus
	notifier OSNotifier
	sound    func(channel string)
	log      pslog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSound installs a hook invoked for channels that play an audible cue.
func WithSound(hook func(channel string)) DispatcherOption {
	return func(d *Dispatcher) { d.sound = hook }
}

// WithDispatcherLogger overrides the dispatcher's logger.
func WithDispatcherLogger(logger pslog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = logger }
}

// NewDispatcher creates a dispatcher. notifier may be nil when the host has
// no OS-level surface at all.
func NewDispatcher(bus *Bus, notifier OSNotifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		bus:      bus,
		notifier: notifier,
		log:      pslog.Ctx(context.Background()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers one notification.
func (d *Dispatcher) Dispatch(n Notification) {
	if n.Tag == "" {
		n.Tag = defaultTag(n)
	}

	if d.sound != nil && n.Channel == "payslip" {
		d.sound(n.Channel)
	}

	if d.bus != nil {
		d.bus.PublishNotification(n)
	}

	if d.notifier == nil || !d.notifier.Enabled() {
		return
	}
	if err := d.notifier.Show(n); err != nil {
		d.log.Warn("os notification failed", "channel", n.Channel, "err", err)
	}
}

// defaultTag gives OS notifications a stable identity per conversation or
// task so repeats replace rather than stack.
func defaultTag(n Notification) string {
	switch {
	case n.ConversationID != "":
		return "chat-" + n.ConversationID
	case n.TaskID != "":
		return "task-" + n.TaskID
	default:
		return "chatsync"
	}
}
