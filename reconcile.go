package chatsync

import (
	"sort"
	"sync"
	"time"
)

// ============================================================================
// Message Reconciler
// ============================================================================

// EchoWindow bounds how far apart a local placeholder and its server echo may
// be and still count as the same logical message. Matching is strict: an echo
// arriving exactly EchoWindow later is treated as a distinct message.
const EchoWindow = 5 * time.Second

// echoOf reports whether incoming is the server confirmation of the local
// placeholder. The HTTP fallback path does not thread a client id through to
// the socket echo, so confirmation is matched heuristically on body, sender,
// and timestamp distance. This trades a small risk of misattribution (two
// identical rapid messages from one sender inside the window) for simplicity;
// it is an accepted approximation, not a bug.
func echoOf(local, incoming Envelope) bool {
	if !local.Local() || incoming.Local() {
		return false
	}
	if local.Body != incoming.Body || local.SenderID != incoming.SenderID {
		return false
	}
	d := local.Timestamp.Sub(incoming.Timestamp)
	if d < 0 {
		d = -d
	}
	return d < EchoWindow
}

// Reconcile merges one incoming envelope into the known sequence for a
// conversation. If the envelope confirms an existing local placeholder the
// placeholder is removed and the server envelope takes its place; if the
// envelope's server id is already present the sequence is unchanged;
// otherwise the envelope is appended. The result is always ordered ascending
// by timestamp.
func Reconcile(known []Envelope, incoming Envelope) []Envelope {
	if incoming.ID != "" && !incoming.Local() {
		for _, e := range known {
			if e.ID == incoming.ID {
				return sortByTime(append([]Envelope(nil), known...))
			}
		}
	}
	merged := make([]Envelope, 0, len(known)+1)
	for _, e := range known {
		if echoOf(e, incoming) {
			continue
		}
		merged = append(merged, e)
	}
	merged = append(merged, incoming)
	return sortByTime(merged)
}

// MergeSources builds the full conversation sequence from its three sources:
// fetched history (authoritative), optimistic local envelopes, and live
// envelopes received over the connection. The merge is idempotent: the same
// inputs always produce the same sequence, and the non-local envelope wins
// over its matched local counterpart regardless of source order.
func MergeSources(history, local, live []Envelope) []Envelope {
	merged := append([]Envelope(nil), history...)
	for _, e := range live {
		merged = Reconcile(merged, e)
	}
	for _, l := range local {
		confirmed := false
		for _, e := range merged {
			if echoOf(l, e) {
				confirmed = true
				break
			}
		}
		if !confirmed {
			merged = append(merged, l)
		}
	}
	return sortByTime(merged)
}

func sortByTime(envs []Envelope) []Envelope {
	sort.SliceStable(envs, func(i, j int) bool {
		return envs[i].Timestamp.Before(envs[j].Timestamp)
	})
	return envs
}

// ============================================================================
// Message Log
// ============================================================================

// MessageLog holds the reconciled per-conversation message sequences. It is
// the single owner of the merged view; surfaces read snapshots and subscribe
// to the bus for changes rather than merging on their own.
type MessageLog struct {
	mu     sync.RWMutex
	byConv map[string][]Envelope
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{byConv: make(map[string][]Envelope)}
}

// LoadHistory merges a fetched history page into a conversation. History is
// authoritative: existing live and local entries are reconciled against it
// rather than replaced wholesale.
func (l *MessageLog) LoadHistory(conversationID string, history []Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	known := l.byConv[conversationID]
	merged := append([]Envelope(nil), history...)
	for _, e := range known {
		merged = Reconcile(merged, e)
	}
	l.byConv[conversationID] = merged
}

// AddLocal appends an optimistic placeholder created by the HTTP fallback.
func (l *MessageLog) AddLocal(env Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byConv[env.ConversationID] = sortByTime(append(l.byConv[env.ConversationID], env))
}

// Ingest reconciles one live envelope into its conversation.
func (l *MessageLog) Ingest(env Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byConv[env.ConversationID] = Reconcile(l.byConv[env.ConversationID], env)
}

// Messages returns a snapshot of the ordered sequence for a conversation.
func (l *MessageLog) Messages(conversationID string) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Envelope(nil), l.byConv[conversationID]...)
}
