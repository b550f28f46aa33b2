package chatsync

import "sync"

// ============================================================================
// Session State
// ============================================================================

// Session is the explicit state container shared by the connection, the
// reconciler, and the unread ledger: the current user's identity, the
// conversations the user belongs to, and the active-conversation marker.
// It replaces the ambient lookups the surfaces would otherwise scatter
// across call sites; tests construct isolated instances per case.
type Session struct {
	mu            sync.RWMutex
	userID        string
	active        string
	conversations []Conversation

	bus *Bus
}

// NewSession creates a session for the given user. The bus is notified on
// every active-conversation change; it may be nil in tests that do not care.
func NewSession(userID string, bus *Bus) *Session {
	return &Session{userID: userID, bus: bus}
}

// UserID returns the current user's id.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// ActiveConversation returns the currently viewed conversation id, or empty
// when none is active.
func (s *Session) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveConversation records a navigation change and announces it on the
// bus. Pass empty to mark no conversation active.
func (s *Session) SetActiveConversation(conversationID string) {
	s.mu.Lock()
	s.active = conversationID
	bus := s.bus
	s.mu.Unlock()
	if bus != nil {
		bus.PublishActiveConversation(conversationID)
	}
}

// SetConversations replaces the subscribed conversation list.
func (s *Session) SetConversations(convs []Conversation) {
	s.mu.Lock()
	s.conversations = append([]Conversation(nil), convs...)
	s.mu.Unlock()
}

// ConversationIDs returns the ids of all subscribed conversations, in order.
func (s *Session) ConversationIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.conversations))
	for i, c := range s.conversations {
		ids[i] = c.ID
	}
	return ids
}

// ConversationName returns the display name for a conversation, or a generic
// fallback when the conversation is unknown or unnamed.
func (s *Session) ConversationName(conversationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == conversationID && c.Name != "" {
			return c.Name
		}
	}
	return "Group Chat"
}
