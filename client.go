// Package chatsync is the real-time messaging and unread-state core of the
// Tapvera dashboard: a persistent authenticated connection, reconciliation of
// optimistic local messages with server echoes, a durable per-conversation
// unread ledger, and a process-wide event bus that fans changes out to
// independent UI surfaces.
//
// Example:
//
//	client := chatsync.NewClient(token, chatsync.WithBaseURL("https://api.example.com"))
//	bus := chatsync.NewBus()
//	session := chatsync.NewSession(userID, bus)
//	ledger := chatsync.NewUnreadLedger(chatsync.NewMemoryStore(), bus, session, nil)
//
//	conn := chatsync.NewConn(client, session, ledger, bus, nil, &chatsync.ConnConfig{Token: token})
//	conn.Connect(ctx)
//	conn.Send(ctx, "conv-1", "hello")
package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"
)

const (
	// DefaultBaseURL is the dashboard API origin.
	DefaultBaseURL = "http://localhost:5000"
	// DefaultTimeout bounds one REST request.
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the REST boundary of the core: the send-message fallback, the
// conversation list used to scope the connection, and the project unread
// backstop. All calls carry the session's bearer token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	log        pslog.Logger

	chat     *ChatClient
	projects *ProjectsClient
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API origin.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithLogger overrides the client's logger.
func WithLogger(logger pslog.Logger) ClientOption {
	return func(c *Client) { c.log = logger }
}

// NewClient creates a new dashboard API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: pslog.Ctx(context.Background()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.chat = &ChatClient{client: c}
	c.projects = &ProjectsClient{client: c}
	return c
}

// SetToken updates the bearer token, e.g. after a session refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Chat returns the chat API sub-client.
func (c *Client) Chat() *ChatClient { return c.chat }

// Projects returns the projects API sub-client.
func (c *Client) Projects() *ProjectsClient { return c.projects }

// WSURL returns the WebSocket endpoint derived from the API origin.
func (c *Client) WSURL() string {
	u := strings.Replace(c.baseURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws"
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string) ([]byte, error) {
	u := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Chat API
// ============================================================================

// ChatClient covers the chat endpoints the core depends on.
type ChatClient struct{ client *Client }

// SendMessage posts a message over REST. This is the fallback path used when
// the socket is not open; an idempotency key is attached so a retried POST
// cannot double-send, though the server does not thread it back through the
// socket echo.
func (ch *ChatClient) SendMessage(ctx context.Context, conversationID, message string) error {
	_, err := ch.client.doRequest(ctx, "POST", "/api/chat/messages",
		map[string]string{"conversationId": conversationID, "message": message},
		map[string]string{"X-Idempotency-Key": "sdk-" + uuid.NewString()},
	)
	return err
}

// Groups lists the conversations the user belongs to.
func (ch *ChatClient) Groups(ctx context.Context) ([]Conversation, error) {
	data, err := ch.client.doRequest(ctx, "GET", "/api/chat/groups", nil, nil)
	if err != nil {
		return nil, err
	}
	groups, err := decodeJSON[[]Conversation](data)
	if err != nil {
		return nil, err
	}
	return *groups, nil
}

// History fetches the stored messages for a conversation.
func (ch *ChatClient) History(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	data, err := ch.client.doRequest(ctx, "GET", "/api/chat/messages/"+url.PathEscape(conversationID), nil, nil)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeJSON[[]ChatMessage](data)
	if err != nil {
		return nil, err
	}
	return *msgs, nil
}

// ============================================================================
// Projects API
// ============================================================================

// ProjectsClient covers the project endpoints the core depends on.
type ProjectsClient struct{ client *Client }

// UnreadCount returns the server-side unread message count for a project.
// This is the poll backstop beside the socket-driven ledger.
func (p *ProjectsClient) UnreadCount(ctx context.Context, projectID string) (int, error) {
	data, err := p.client.doRequest(ctx, "GET", "/api/projects/"+url.PathEscape(projectID)+"/messages/unread-count", nil, nil)
	if err != nil {
		return 0, err
	}
	result, err := decodeJSON[UnreadCountData](data)
	if err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}
