package chatsync

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"pkt.systems/pslog"
)

// ============================================================================
// Unread Ledger
// ============================================================================

// UnreadLedger tracks per-conversation unread counters. It is the only writer
// of the persisted copy: every mutation re-persists the full map and the
// derived total, then broadcasts both on the bus so independent badges stay
// consistent without polling the store.
type UnreadLedger struct {
	mu      sync.Mutex
	counts  map[string]int
	store   Store
	bus     *Bus
	session *Session
	log     pslog.Logger
}

// NewUnreadLedger creates a ledger seeded from the persisted store. The
// persisted map and total are reconciled at startup: the map is the source of
// truth and a stale total is rewritten. The ledger subscribes to navigation
// changes on the bus so activating a conversation clears its counter.
func NewUnreadLedger(store Store, bus *Bus, session *Session, logger pslog.Logger) *UnreadLedger {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	u := &UnreadLedger{
		counts:  make(map[string]int),
		store:   store,
		bus:     bus,
		session: session,
		log:     logger,
	}
	u.load()
	if bus != nil {
		bus.OnActiveConversation(func(conversationID string) {
			if conversationID != "" {
				u.Clear(conversationID)
			}
		})
	}
	return u
}

func (u *UnreadLedger) load() {
	raw, ok := u.store.Get(unreadMapKey)
	if !ok {
		return
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		u.log.Warn("unread map unreadable, resetting", "err", err)
		u.store.Delete(unreadMapKey)
		u.store.Delete(unreadTotalKey)
		return
	}
	for conv, n := range counts {
		if n > 0 {
			u.counts[conv] = n
		}
	}
	// Rewrite a total that drifted from the map.
	sum := u.sumLocked()
	if stored, ok := u.store.Get(unreadTotalKey); !ok || stored != strconv.Itoa(sum) {
		u.store.Set(unreadTotalKey, strconv.Itoa(sum))
	}
}

// RecordInbound counts one inbound envelope for a conversation. Messages from
// the current user and messages for the active conversation never increment.
func (u *UnreadLedger) RecordInbound(conversationID string, fromSelf bool) {
	if fromSelf || conversationID == "" {
		return
	}
	if u.session != nil && u.session.ActiveConversation() == conversationID {
		return
	}
	u.mu.Lock()
	u.counts[conversationID]++
	u.persistLocked()
	counts, total := u.snapshotLocked()
	u.mu.Unlock()
	u.broadcast(counts, total)
}

// Clear removes the counter for a conversation; called whenever the user
// navigates to it.
func (u *UnreadLedger) Clear(conversationID string) {
	u.mu.Lock()
	if _, ok := u.counts[conversationID]; !ok {
		u.mu.Unlock()
		return
	}
	delete(u.counts, conversationID)
	u.persistLocked()
	counts, total := u.snapshotLocked()
	u.mu.Unlock()
	u.broadcast(counts, total)
}

// Count returns the unread counter for one conversation.
func (u *UnreadLedger) Count(conversationID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[conversationID]
}

// Counts returns a snapshot of the whole map.
func (u *UnreadLedger) Counts() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	counts, _ := u.snapshotLocked()
	return counts
}

// Total returns the sum over all entries, recomputed from the map so the two
// can never drift apart.
func (u *UnreadLedger) Total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sumLocked()
}

func (u *UnreadLedger) sumLocked() int {
	sum := 0
	for _, n := range u.counts {
		sum += n
	}
	return sum
}

func (u *UnreadLedger) snapshotLocked() (map[string]int, int) {
	counts := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		counts[k] = v
	}
	return counts, u.sumLocked()
}

func (u *UnreadLedger) persistLocked() {
	data, err := json.Marshal(u.counts)
	if err != nil {
		u.log.Error("unread map marshal failed", "err", err)
		return
	}
	u.store.Set(unreadMapKey, string(data))
	u.store.Set(unreadTotalKey, strconv.Itoa(u.sumLocked()))
}

func (u *UnreadLedger) broadcast(counts map[string]int, total int) {
	if u.bus == nil {
		return
	}
	u.bus.PublishUnreadMap(counts)
	u.bus.PublishUnreadTotal(total)
}
