package chatsync

import "sync"

// ============================================================================
// Session Store
// ============================================================================

// Storage keys for the unread ledger. The map and total are re-derivable from
// each other and revalidated on every write.
const (
	unreadMapKey   = "chat_unread_map"
	unreadTotalKey = "chat_unread_total"
)

// Store is a session-scoped key/value area shared by all UI surfaces in a
// tab. It survives navigation within the tab; surviving process restarts is
// not part of the contract.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryStore is a goroutine-safe in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
