package chatsync

import "testing"

// ============================================================================
// Event Bus Bridge
// ============================================================================

func TestBusDelivery(t *testing.T) {
	t.Run("all subscribers receive", func(t *testing.T) {
		bus := NewBus()
		var a, b int
		bus.OnUnreadTotal(func(total int) { a = total })
		bus.OnUnreadTotal(func(total int) { b = total })

		bus.PublishUnreadTotal(7)

		if a != 7 || b != 7 {
			t.Fatalf("expected both subscribers at 7, got %d and %d", a, b)
		}
	})

	t.Run("no replay for late subscribers", func(t *testing.T) {
		bus := NewBus()
		bus.PublishUnreadTotal(7)

		called := false
		bus.OnUnreadTotal(func(int) { called = true })
		if called {
			t.Fatal("late subscriber saw an earlier publication")
		}
	})

	t.Run("topics are independent", func(t *testing.T) {
		bus := NewBus()
		var messages, notifications int
		bus.OnMessage(func(Envelope) { messages++ })
		bus.OnNotification(func(Notification) { notifications++ })

		bus.PublishMessage(Envelope{ConversationID: "conv-1"})

		if messages != 1 || notifications != 0 {
			t.Fatalf("expected 1/0, got %d/%d", messages, notifications)
		}
	})
}

func TestBusCancel(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub := bus.OnActiveConversation(func(string) { calls++ })

	bus.PublishActiveConversation("conv-1")
	sub.Cancel()
	bus.PublishActiveConversation("conv-2")
	sub.Cancel() // idempotent

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBusPanicIsolation(t *testing.T) {
	bus := NewBus()
	delivered := false
	bus.OnMessage(func(Envelope) { panic("broken surface") })
	bus.OnMessage(func(Envelope) { delivered = true })

	bus.PublishMessage(Envelope{ConversationID: "conv-1"})

	if !delivered {
		t.Fatal("a panicking subscriber blocked delivery to the others")
	}
}

func TestBusUnreadMapSnapshot(t *testing.T) {
	bus := NewBus()
	var seen map[string]int
	bus.OnUnreadMap(func(counts map[string]int) {
		counts["conv-1"] = 99 // mutation must not leak
		seen = counts
	})
	var second map[string]int
	bus.OnUnreadMap(func(counts map[string]int) { second = counts })

	src := map[string]int{"conv-1": 1}
	bus.PublishUnreadMap(src)

	if src["conv-1"] != 1 {
		t.Fatalf("subscriber mutated the publisher's map: %v", src)
	}
	if seen == nil || second == nil {
		t.Fatal("expected both subscribers called")
	}
	if second["conv-1"] != 1 {
		t.Fatalf("one subscriber's mutation leaked into another's copy: %v", second)
	}
}

// ============================================================================
// Session
// ============================================================================

func TestSessionActiveConversation(t *testing.T) {
	bus := NewBus()
	var announced []string
	bus.OnActiveConversation(func(id string) { announced = append(announced, id) })

	session := NewSession("user-1", bus)
	session.SetActiveConversation("conv-1")
	session.SetActiveConversation("")

	if session.ActiveConversation() != "" {
		t.Fatalf("expected no active conversation, got %q", session.ActiveConversation())
	}
	if len(announced) != 2 || announced[0] != "conv-1" || announced[1] != "" {
		t.Fatalf("unexpected announcements: %v", announced)
	}
}

func TestSessionConversations(t *testing.T) {
	session := NewSession("user-1", nil)
	session.SetConversations([]Conversation{
		{ID: "conv-1", Name: "Design"},
		{ID: "conv-2"},
	})

	ids := session.ConversationIDs()
	if len(ids) != 2 || ids[0] != "conv-1" || ids[1] != "conv-2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if got := session.ConversationName("conv-1"); got != "Design" {
		t.Fatalf("expected Design, got %q", got)
	}
	if got := session.ConversationName("conv-2"); got != "Group Chat" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	if got := session.ConversationName("conv-9"); got != "Group Chat" {
		t.Fatalf("expected fallback name for unknown id, got %q", got)
	}
}
