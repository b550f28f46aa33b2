package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"nhooyr.io/websocket"
	"pkt.systems/pslog"
)

// ============================================================================
// Configuration
// ============================================================================

// ConnConfig configures a Conn.
type ConnConfig struct {
	// Token is the session's auth token. Without one Connect is a silent
	// no-op; the core never attempts anonymous connections.
	Token string

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	// MaxReconnectAttempts bounds consecutive failed attempts before the
	// connection gives up until the next explicit Connect.
	MaxReconnectAttempts int

	Logger pslog.Logger
}

func (c *ConnConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.Logger == nil {
		c.Logger = pslog.Ctx(context.Background())
	}
}

// ConnState is the connection lifecycle state.
type ConnState string

const (
	StateIdle       ConnState = "idle"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed"
)

// ============================================================================
// Reconnector
// ============================================================================

// reconnector tracks the backoff schedule: delays double from the base up to
// the cap, and the attempt counter resets once a connection has stayed up
// long enough to count as stable.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *ConnConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
	r.attempt = 0
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt)),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// ============================================================================
// Connection Manager
// ============================================================================

// Conn owns the tab's one persistent socket: the authentication handshake,
// frame classification, the send path with its HTTP fallback, and reconnect
// scheduling. Nothing on the event path returns an error to callers; failures
// are logged and either retried (transport) or dropped (malformed input).
type Conn struct {
	client     *Client
	session    *Session
	ledger     *UnreadLedger
	bus        *Bus
	dispatcher *Dispatcher
	msgLog     *MessageLog
	config     *ConnConfig
	log        pslog.Logger

	mu             sync.Mutex
	state          ConnState
	ws             *websocket.Conn
	cancelRead     context.CancelFunc
	reconnectTimer *time.Timer
	recon          *reconnector
	localSeq       int64
	tornDown       bool
}

// NewConn creates a connection manager. dispatcher may be nil when the host
// has no notification surface; ledger and bus may be nil in narrow tests.
func NewConn(client *Client, session *Session, ledger *UnreadLedger, bus *Bus, dispatcher *Dispatcher, config *ConnConfig) *Conn {
	cfg := ConnConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.defaults()
	return &Conn{
		client:     client,
		session:    session,
		ledger:     ledger,
		bus:        bus,
		dispatcher: dispatcher,
		msgLog:     NewMessageLog(),
		config:     &cfg,
		log:        cfg.Logger,
		state:      StateIdle,
		recon:      newReconnector(&cfg),
	}
}

// Log returns the reconciled message log fed by this connection.
func (c *Conn) Log() *MessageLog { return c.msgLog }

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the socket and performs the authentication handshake, sending
// the token and the ids of every subscribed conversation so the server scopes
// delivery. Without a token it is a silent no-op. Failures are absorbed: a
// failed dial marks the connection Closed and schedules a reconnect.
func (c *Conn) Connect(ctx context.Context) {
	if c.config.Token == "" {
		c.log.Warn("no auth token, skipping connection")
		return
	}

	c.mu.Lock()
	if c.tornDown || c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, _, err := websocket.Dial(ctx, c.client.WSURL(), nil)
	if err != nil {
		c.log.Warn("websocket dial failed", "err", err)
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		c.scheduleReconnect()
		return
	}

	auth := authFrame{
		Type:            "authenticate",
		Token:           c.config.Token,
		ConversationIDs: c.session.ConversationIDs(),
	}
	data, _ := json.Marshal(auth)
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		c.log.Warn("authentication frame failed", "err", err)
		ws.Close(websocket.StatusNormalClosure, "")
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		c.scheduleReconnect()
		return
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	// Close may have run while the dial was in flight; a late handshake must
	// not resurrect the connection.
	if c.tornDown {
		c.mu.Unlock()
		cancel()
		ws.Close(websocket.StatusNormalClosure, "client teardown")
		return
	}
	c.ws = ws
	c.state = StateOpen
	c.cancelRead = cancel
	c.recon.markConnected()
	c.mu.Unlock()

	go c.readLoop(readCtx, ws)
}

// Send transmits a chat message. With the socket open it is fire-and-forget
// over the connection; the server echo will carry the stored message back.
// Otherwise it degrades to the REST fallback and, on success, records an
// optimistic local envelope so the UI shows the message before the echo.
// Send never surfaces transport errors to the caller.
func (c *Conn) Send(ctx context.Context, conversationID, body string) {
	c.mu.Lock()
	ws := c.ws
	open := c.state == StateOpen
	c.mu.Unlock()

	if open && ws != nil {
		frame := chatSendFrame{Type: "message", ConversationID: conversationID, Message: body}
		data, _ := json.Marshal(frame)
		err := ws.Write(ctx, websocket.MessageText, data)
		if err == nil {
			return
		}
		c.log.Warn("socket send failed, using fallback", "conversation", conversationID, "err", err)
	}

	if err := c.client.Chat().SendMessage(ctx, conversationID, body); err != nil {
		c.log.Warn("fallback send failed", "conversation", conversationID, "err", err)
		return
	}

	c.mu.Lock()
	c.localSeq++
	seq := c.localSeq
	c.mu.Unlock()

	env := Envelope{
		Kind:           KindChat,
		ID:             fmt.Sprintf("%s%d", LocalIDPrefix, seq),
		ConversationID: conversationID,
		SenderID:       c.session.UserID(),
		Body:           body,
		Timestamp:      time.Now().UTC(),
	}
	c.msgLog.AddLocal(env)
	if c.bus != nil {
		c.bus.PublishMessage(env)
	}
}

// Close tears the connection down: the pending reconnect timer is cancelled,
// the read loop stopped, and the socket closed. The Conn does not reconnect
// after Close.
func (c *Conn) Close() {
	c.mu.Lock()
	c.tornDown = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.cancelRead != nil {
		c.cancelRead()
		c.cancelRead = nil
	}
	ws := c.ws
	c.ws = nil
	c.state = StateClosed
	c.mu.Unlock()

	if ws != nil {
		ws.Close(websocket.StatusNormalClosure, "client teardown")
	}
}

// ============================================================================
// Read path
// ============================================================================

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			c.handleClose(err)
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame classifies one inbound frame. Malformed frames are logged and
// dropped; unrecognized kinds are ignored.
func (c *Conn) handleFrame(data []byte) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Warn("malformed frame dropped", "err", err)
		return
	}

	switch f.Type {
	case "message", "private_message":
		c.handleChat(&f)
	case "notification":
		c.handleNotification(&f)
	default:
		c.log.Debug("frame ignored", "type", f.Type)
	}
}

func (c *Conn) handleChat(f *wireFrame) {
	env := Envelope{
		Kind:           KindChat,
		ConversationID: f.ConversationID,
		SenderID:       f.sender(),
		Body:           f.body(),
		Timestamp:      f.parsedTime(),
	}
	c.msgLog.Ingest(env)

	fromSelf := env.SenderID != "" && env.SenderID == c.session.UserID()
	if c.ledger != nil {
		c.ledger.RecordInbound(env.ConversationID, fromSelf)
	}
	if c.bus != nil {
		c.bus.PublishMessage(env)
	}

	// Messages for a conversation the user is not looking at surface as
	// notifications too.
	if c.dispatcher != nil && !fromSelf && c.session.ActiveConversation() != env.ConversationID {
		name := c.session.ConversationName(env.ConversationID)
		c.dispatcher.Dispatch(Notification{
			Channel:        "chat",
			Title:          "New message in " + name,
			Body:           preview(env.Body),
			From:           env.SenderID,
			ConversationID: env.ConversationID,
		})
	}
}

func (c *Conn) handleNotification(f *wireFrame) {
	n := Notification{
		Channel:        f.Channel,
		Title:          f.Title,
		Body:           f.Body,
		Message:        f.Message,
		From:           f.From,
		ConversationID: f.ConversationID,
		TaskID:         f.TaskID,
	}

	// Chat-channel notifications count toward unread like chat frames do.
	if strings.EqualFold(n.Channel, "chat") && c.ledger != nil {
		fromSelf := n.From != "" && n.From == c.session.UserID()
		c.ledger.RecordInbound(n.ConversationID, fromSelf)
	}

	if c.dispatcher != nil {
		c.dispatcher.Dispatch(n)
	}
}

// handleClose runs when the read loop ends for any reason other than
// teardown. It marks the connection Closed and schedules exactly one
// reconnect attempt.
func (c *Conn) handleClose(err error) {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.ws = nil
	c.cancelRead = nil
	c.mu.Unlock()

	c.log.Warn("connection closed", "err", err)
	c.scheduleReconnect()
}

// ============================================================================
// Reconnect scheduling
// ============================================================================

func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	if c.tornDown || !c.recon.shouldReconnect() {
		abandoned := !c.tornDown
		attempts := c.recon.attempt
		c.mu.Unlock()
		if abandoned {
			c.log.Warn("reconnect abandoned", "attempts", attempts)
		}
		return
	}
	delay := c.recon.nextDelay()
	attempt := c.recon.attempt
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.Connect(context.Background())
	})
	c.mu.Unlock()

	c.log.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// preview truncates a message body for notification display, never splitting
// a rune.
func preview(body string) string {
	const max = 100
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	return string([]rune(body)[:max])
}
