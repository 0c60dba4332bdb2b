package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chatloom/loom/internal/types"
)

// APIError represents a non-2xx response from the chat API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("chat api error: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("chat api error: %s (%d)", e.Code, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("chat api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("chat api error (%d)", e.Status)
}

type apiErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the hosted chat API on behalf of one user.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
}

// NewClient constructs a chat API client.
func NewClient(baseURL, token, userID string) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	return &Client{
		baseURL: normalized,
		token:   token,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// UserID returns the local user this client authenticates as.
func (c *Client) UserID() string {
	return c.userID
}

// NormalizeBaseURL normalizes a chat API base URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("chat api url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid chat api url: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("chat api url must include scheme (https://)")
	}
	value = strings.TrimRight(value, "/")
	return value, nil
}

// ChannelStateResponse is the authoritative channel snapshot returned by a
// channel query.
type ChannelStateResponse struct {
	ChannelID    string              `json:"channel_id"`
	Config       types.ChannelConfig `json:"config"`
	Messages     []types.Message     `json:"messages"`
	Members      []types.Member      `json:"members"`
	Watchers     []types.User        `json:"watchers"`
	WatcherCount int                 `json:"watcher_count"`
	Reads        []types.Read        `json:"reads"`
}

// QueryChannelRequest asks for a channel's state and optionally registers
// the caller as a watcher.
type QueryChannelRequest struct {
	ChannelID string              `json:"channel_id"`
	Messages  types.MessagesQuery `json:"messages"`
	Watch     bool                `json:"watch,omitempty"`
}

// QueryChannel fetches channel state from the backend.
func (c *Client) QueryChannel(ctx context.Context, req QueryChannelRequest) (ChannelStateResponse, error) {
	var resp ChannelStateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/channels/query", nil, req, &resp); err != nil {
		return ChannelStateResponse{}, err
	}
	return resp, nil
}

type messagesPage struct {
	Messages []types.Message `json:"messages"`
}

// QueryMessages fetches a backward page from a channel's main sequence.
func (c *Client) QueryMessages(ctx context.Context, channelID string, q types.MessagesQuery) ([]types.Message, error) {
	var resp messagesPage
	path := fmt.Sprintf("/v1/channels/%s/messages", url.PathEscape(channelID))
	if err := c.doJSON(ctx, http.MethodGet, path, pageQuery(q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// QueryReplies fetches a backward page of replies to one parent message.
func (c *Client) QueryReplies(ctx context.Context, parentID string, q types.MessagesQuery) ([]types.Message, error) {
	var resp messagesPage
	path := fmt.Sprintf("/v1/messages/%s/replies", url.PathEscape(parentID))
	if err := c.doJSON(ctx, http.MethodGet, path, pageQuery(q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

type messageEnvelope struct {
	Message types.Message `json:"message"`
}

// SendMessage posts a message and returns the authoritative copy.
func (c *Client) SendMessage(ctx context.Context, channelID string, msg types.Message) (types.Message, error) {
	var resp messageEnvelope
	path := fmt.Sprintf("/v1/channels/%s/messages", url.PathEscape(channelID))
	if err := c.doJSON(ctx, http.MethodPost, path, nil, messageEnvelope{Message: msg}, &resp); err != nil {
		return types.Message{}, err
	}
	return resp.Message, nil
}

// UpdateMessage edits an existing message and returns the authoritative copy.
func (c *Client) UpdateMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	var resp messageEnvelope
	path := fmt.Sprintf("/v1/messages/%s", url.PathEscape(msg.ID))
	if err := c.doJSON(ctx, http.MethodPut, path, nil, messageEnvelope{Message: msg}, &resp); err != nil {
		return types.Message{}, err
	}
	return resp.Message, nil
}

// MarkRead records that the local user has read the channel up to now.
func (c *Client) MarkRead(ctx context.Context, channelID string) error {
	path := fmt.Sprintf("/v1/channels/%s/read", url.PathEscape(channelID))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, nil)
}

// WebSocketURL returns the realtime connect endpoint for a channel.
func (c *Client) WebSocketURL(channelID string) string {
	scheme := "ws"
	if strings.HasPrefix(c.baseURL, "https://") {
		scheme = "wss"
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(c.baseURL, "https://"), "http://")
	query := url.Values{}
	query.Set("channel_id", channelID)
	query.Set("user_id", c.userID)
	return fmt.Sprintf("%s://%s/v1/connect?%s", scheme, trimmed, query.Encode())
}

func pageQuery(q types.MessagesQuery) url.Values {
	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.IDLT != "" {
		query.Set("id_lt", q.IDLT)
	}
	return query
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload apiErrorPayload
		if err := json.Unmarshal(respData, &payload); err == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}

	if respBody == nil {
		return nil
	}
	if len(respData) == 0 {
		return nil
	}
	return json.Unmarshal(respData, respBody)
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	endpoint := base.ResolveReference(ref)
	if query != nil && len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
