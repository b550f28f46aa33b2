package chatsync

import (
	"encoding/json"
	"strings"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// ============================================================================
// Envelopes
// ============================================================================

// Kind classifies a wire-level unit.
type Kind string

const (
	KindChat         Kind = "chat"
	KindNotification Kind = "notification"
)

// LocalIDPrefix marks envelopes created optimistically on this client before
// the server has confirmed them.
const LocalIDPrefix = "local-"

// Envelope is one logical unit on the connection: a chat message or a
// notification, normalized from whichever wire shape it arrived in.
type Envelope struct {
	Kind           Kind      `json:"kind"`
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	Timestamp      time.Time `json:"timestamp"`
}

// Local reports whether the envelope is an unconfirmed optimistic placeholder.
func (e Envelope) Local() bool {
	return strings.HasPrefix(e.ID, LocalIDPrefix)
}

// ============================================================================
// Wire Frames
// ============================================================================

// authFrame is the first frame sent after the socket opens. The conversation
// id list scopes server-side delivery to conversations the client cares about.
type authFrame struct {
	Type            string   `json:"type"`
	Token           string   `json:"token"`
	ConversationIDs []string `json:"conversationIds"`
}

// chatSendFrame is a client-to-server chat message.
type chatSendFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// wireFrame is the loose shape of any inbound frame. The server uses both
// "message" and "private_message" for chat, "senderId" and "from" for the
// sender, and "message" and "text" for the body; all are treated identically.
type wireFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	From           string `json:"from"`
	Message        string `json:"message"`
	Text           string `json:"text"`
	Timestamp      string `json:"timestamp"`

	// Notification fields.
	Channel string `json:"channel"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	TaskID  string `json:"taskId"`
}

func (f *wireFrame) sender() string {
	if f.SenderID != "" {
		return f.SenderID
	}
	return f.From
}

func (f *wireFrame) body() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Text
}

// parsedTime decodes the frame timestamp, falling back to the receipt time
// when the server sent none or an unparseable value.
func (f *wireFrame) parsedTime() time.Time {
	if f.Timestamp == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, f.Timestamp); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// ============================================================================
// Notifications
// ============================================================================

// Notification is a normalized notification request handed to the dispatcher.
type Notification struct {
	Channel        string `json:"channel"`
	Title          string `json:"title,omitempty"`
	Body           string `json:"body,omitempty"`
	Message        string `json:"message,omitempty"`
	From           string `json:"from,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	TaskID         string `json:"taskId,omitempty"`
	Tag            string `json:"tag,omitempty"`
}

// Text returns the notification body, preferring the explicit Body field.
func (n Notification) Text() string {
	if n.Body != "" {
		return n.Body
	}
	return n.Message
}

// ============================================================================
// REST Types
// ============================================================================

// Conversation is a chat group the user belongs to.
type Conversation struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// ChatMessage is a message as returned by the history endpoint.
type ChatMessage struct {
	ID             string `json:"_id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

// Envelope converts a REST history message into the normalized form.
func (m ChatMessage) Envelope() Envelope {
	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		if ts, err = time.Parse(time.RFC3339, m.Timestamp); err != nil {
			ts = time.Time{}
		}
	}
	return Envelope{
		Kind:           KindChat,
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Message,
		Timestamp:      ts,
	}
}

// UnreadCountData is the project unread-count backstop response.
type UnreadCountData struct {
	UnreadCount int `json:"unreadCount"`
}

// SendMessageData is the send-message fallback response. Only success matters
// to callers; the payload is kept for diagnostics.
type SendMessageData struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}
