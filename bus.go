package chatsync

import "sync"

// ============================================================================
// Event Bus Bridge
// ============================================================================

// Bus is a process-wide publish/subscribe bridge between the connection and
// ledger on one side and any number of independent UI surfaces on the other.
// Publish is synchronous and fire-and-forget: a subscriber registered after a
// publish never sees that publication, and there is no buffering or replay.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64

	unreadTotal        map[uint64]func(int)
	unreadMap          map[uint64]func(map[string]int)
	activeConversation map[uint64]func(string)
	messages           map[uint64]func(Envelope)
	notifications      map[uint64]func(Notification)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		unreadTotal:        make(map[uint64]func(int)),
		unreadMap:          make(map[uint64]func(map[string]int)),
		activeConversation: make(map[uint64]func(string)),
		messages:           make(map[uint64]func(Envelope)),
		notifications:      make(map[uint64]func(Notification)),
	}
}

// Subscription is a handle to one registered subscriber. Cancel removes the
// subscriber and releases the bus's reference to it; it is safe to call more
// than once.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel unsubscribes.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (b *Bus) id() uint64 {
	b.nextID++
	return b.nextID
}

// OnUnreadTotal registers a handler for unread-total changes.
func (b *Bus) OnUnreadTotal(h func(total int)) *Subscription {
	b.mu.Lock()
	id := b.id()
	b.unreadTotal[id] = h
	b.mu.Unlock()
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.unreadTotal, id)
		b.mu.Unlock()
	}}
}

// OnUnreadMap registers a handler for unread-map changes.
func (b *Bus) OnUnreadMap(h func(counts map[string]int)) *Subscription {
	b.mu.Lock()
	id := b.id()
	b.unreadMap[id] = h
	b.mu.Unlock()
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.unreadMap, id)
		b.mu.Unlock()
	}}
}

// OnActiveConversation registers a handler for active-conversation changes.
// The id is empty when no conversation is active.
func (b *Bus) OnActiveConversation(h func(conversationID string)) *Subscription {
	b.mu.Lock()
	id := b.id()
	b.activeConversation[id] = h
	b.mu.Unlock()
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.activeConversation, id)
		b.mu.Unlock()
	}}
}

// OnMessage registers a handler for inbound chat envelopes.
func (b *Bus) OnMessage(h func(Envelope)) *Subscription {
	b.mu.Lock()
	id := b.id()
	b.messages[id] = h
	b.mu.Unlock()
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.messages, id)
		b.mu.Unlock()
	}}
}

// OnNotification registers a handler for notification envelopes (toasts and
// other in-app surfaces).
func (b *Bus) OnNotification(h func(Notification)) *Subscription {
	b.mu.Lock()
	id := b.id()
	b.notifications[id] = h
	b.mu.Unlock()
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.notifications, id)
		b.mu.Unlock()
	}}
}

// PublishUnreadTotal delivers the new total to all current subscribers.
func (b *Bus) PublishUnreadTotal(total int) {
	b.mu.RLock()
	handlers := make([]func(int), 0, len(b.unreadTotal))
	for _, h := range b.unreadTotal {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		call(func() { h(total) })
	}
}

// PublishUnreadMap delivers a copy of the unread map to all current subscribers.
func (b *Bus) PublishUnreadMap(counts map[string]int) {
	b.mu.RLock()
	handlers := make([]func(map[string]int), 0, len(b.unreadMap))
	for _, h := range b.unreadMap {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		snapshot := make(map[string]int, len(counts))
		for k, v := range counts {
			snapshot[k] = v
		}
		h := h
		call(func() { h(snapshot) })
	}
}

// PublishActiveConversation announces a navigation change.
func (b *Bus) PublishActiveConversation(conversationID string) {
	b.mu.RLock()
	handlers := make([]func(string), 0, len(b.activeConversation))
	for _, h := range b.activeConversation {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		call(func() { h(conversationID) })
	}
}

// PublishMessage delivers an inbound chat envelope.
func (b *Bus) PublishMessage(env Envelope) {
	b.mu.RLock()
	handlers := make([]func(Envelope), 0, len(b.messages))
	for _, h := range b.messages {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		call(func() { h(env) })
	}
}

// PublishNotification delivers a notification to in-app subscribers.
func (b *Bus) PublishNotification(n Notification) {
	b.mu.RLock()
	handlers := make([]func(Notification), 0, len(b.notifications))
	for _, h := range b.notifications {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		call(func() { h(n) })
	}
}

// call invokes a subscriber, swallowing panics so one broken surface cannot
// take down the delivery path.
func call(f func()) {
	defer func() { _ = recover() }()
	f()
}
