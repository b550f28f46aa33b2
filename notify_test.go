package chatsync

import (
	"errors"
	"testing"
)

// ============================================================================
// Test Notifier
// ============================================================================

type fakeNotifier struct {
	enabled bool
	err     error
	shown   []Notification
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) Show(n Notification) error {
	f.shown = append(f.shown, n)
	return f.err
}

// ============================================================================
// Dispatcher
// ============================================================================

func TestDispatcherRouting(t *testing.T) {
	t.Run("reaches bus and OS surface", func(t *testing.T) {
		bus := NewBus()
		var inApp []Notification
		bus.OnNotification(func(n Notification) { inApp = append(inApp, n) })

		notifier := &fakeNotifier{enabled: true}
		d := NewDispatcher(bus, notifier)
		d.Dispatch(Notification{Channel: "chat", ConversationID: "conv-1", Body: "hi"})

		if len(inApp) != 1 {
			t.Fatalf("expected 1 in-app delivery, got %d", len(inApp))
		}
		if len(notifier.shown) != 1 {
			t.Fatalf("expected 1 OS delivery, got %d", len(notifier.shown))
		}
	})

	t.Run("permission denied degrades to in-app only", func(t *testing.T) {
		bus := NewBus()
		var inApp []Notification
		bus.OnNotification(func(n Notification) { inApp = append(inApp, n) })

		notifier := &fakeNotifier{enabled: false}
		d := NewDispatcher(bus, notifier)
		d.Dispatch(Notification{Channel: "chat", ConversationID: "conv-1"})

		if len(inApp) != 1 {
			t.Fatalf("expected in-app delivery despite denied permission, got %d", len(inApp))
		}
		if len(notifier.shown) != 0 {
			t.Fatalf("expected no OS delivery, got %d", len(notifier.shown))
		}
	})

	t.Run("nil notifier is fine", func(t *testing.T) {
		d := NewDispatcher(NewBus(), nil)
		d.Dispatch(Notification{Channel: "task", TaskID: "t-1"})
	})

	t.Run("show errors are absorbed", func(t *testing.T) {
		notifier := &fakeNotifier{enabled: true, err: errors.New("display gone")}
		d := NewDispatcher(NewBus(), notifier)
		d.Dispatch(Notification{Channel: "chat", ConversationID: "conv-1"})
	})
}

func TestDispatcherTags(t *testing.T) {
	notifier := &fakeNotifier{enabled: true}
	d := NewDispatcher(NewBus(), notifier)

	d.Dispatch(Notification{Channel: "chat", ConversationID: "conv-1"})
	d.Dispatch(Notification{Channel: "task", TaskID: "task-9"})
	d.Dispatch(Notification{Channel: "payslip"})
	d.Dispatch(Notification{Channel: "chat", ConversationID: "conv-1", Tag: "custom"})

	want := []string{"chat-conv-1", "task-task-9", "chatsync", "custom"}
	if len(notifier.shown) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(notifier.shown))
	}
	for i, w := range want {
		if notifier.shown[i].Tag != w {
			t.Fatalf("delivery %d: expected tag %q, got %q", i, w, notifier.shown[i].Tag)
		}
	}
}

func TestDispatcherSound(t *testing.T) {
	var played []string
	d := NewDispatcher(NewBus(), nil, WithSound(func(channel string) {
		played = append(played, channel)
	}))

	d.Dispatch(Notification{Channel: "payslip"})
	d.Dispatch(Notification{Channel: "chat", ConversationID: "conv-1"})

	if len(played) != 1 || played[0] != "payslip" {
		t.Fatalf("expected one payslip cue, got %v", played)
	}
}
