package backend

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chatloom/loom/internal/types"
)

const maxReconnectBackoff = 30 * time.Second

// Channel is the client SDK handle for one channel: it wraps the HTTP API,
// owns the realtime socket, and keeps an authoritative local mirror of the
// backend-held channel state.
type Channel struct {
	client *Client
	id     string
	logger *log.Logger

	mu        sync.Mutex
	state     *channelState
	config    types.ChannelConfig
	connected bool
	closed    bool
	socket    *Socket
	subs      map[int]func(types.Event)
	nextSub   int
}

// NewChannel binds a client to one channel id. Watch must be called before
// the handle is useful.
func NewChannel(client *Client, channelID string, logger *log.Logger) *Channel {
	return &Channel{
		client: client,
		id:     channelID,
		logger: logger,
		state:  newChannelState(),
		subs:   make(map[int]func(types.Event)),
	}
}

// ID returns the channel identifier.
func (c *Channel) ID() string {
	return c.id
}

// Watch queries initial channel state, registers the caller as a watcher,
// and establishes the realtime subscription.
func (c *Channel) Watch(ctx context.Context) error {
	resp, err := c.client.QueryChannel(ctx, QueryChannelRequest{
		ChannelID: c.id,
		Messages:  types.MessagesQuery{Limit: 25},
		Watch:     true,
	})
	if err != nil {
		return fmt.Errorf("watch channel %s: %w", c.id, err)
	}

	socket, err := DialSocket(ctx, c.client.WebSocketURL(c.id), c.client.token, c.dispatch, c.logger)
	if err != nil {
		return fmt.Errorf("watch channel %s: %w", c.id, err)
	}

	c.mu.Lock()
	c.state.hydrate(resp)
	c.config = resp.Config
	c.socket = socket
	c.connected = true
	c.mu.Unlock()

	go c.superviseSocket(socket)
	return nil
}

// superviseSocket redials with backoff after the realtime connection drops,
// re-queries channel state, and announces recovery to subscribers.
func (c *Channel) superviseSocket(socket *Socket) {
	<-socket.Done()

	c.mu.Lock()
	if c.closed || c.socket != socket {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.socket = nil
	c.mu.Unlock()

	backoff := time.Second
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		time.Sleep(backoff)
		if backoff < maxReconnectBackoff {
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		resp, err := c.client.QueryChannel(ctx, QueryChannelRequest{
			ChannelID: c.id,
			Messages:  types.MessagesQuery{Limit: 25},
			Watch:     true,
		})
		if err != nil {
			cancel()
			c.logf("reconnect query failed: %v", err)
			continue
		}
		next, err := DialSocket(ctx, c.client.WebSocketURL(c.id), c.client.token, c.dispatch, c.logger)
		cancel()
		if err != nil {
			c.logf("reconnect dial failed: %v", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			next.Close()
			return
		}
		c.state.hydrate(resp)
		c.config = resp.Config
		c.socket = next
		c.connected = true
		c.mu.Unlock()

		go c.superviseSocket(next)
		c.dispatch(types.Event{Type: types.EventConnectionRecovered, ChannelID: c.id, CreatedAt: time.Now()})
		return
	}
}

// dispatch applies one event to the mirror, then fans it out. Events arrive
// on the socket read goroutine, so handlers run one at a time.
func (c *Channel) dispatch(ev types.Event) {
	c.mu.Lock()
	c.state.apply(ev)
	handlers := make([]func(types.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribe registers an event handler and returns its release function.
func (c *Channel) Subscribe(fn func(types.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// QueryMessages fetches a backward page from the main sequence and caches
// it in the mirror.
func (c *Channel) QueryMessages(ctx context.Context, q types.MessagesQuery) ([]types.Message, error) {
	page, err := c.client.QueryMessages(ctx, c.id, q)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for _, msg := range page {
		if msg.Status == "" {
			msg.Status = types.StatusReceived
		}
		c.state.addMessage(msg)
	}
	c.mu.Unlock()
	return page, nil
}

// QueryReplies fetches a backward reply page for one parent and caches it.
func (c *Channel) QueryReplies(ctx context.Context, parentID string, q types.MessagesQuery) ([]types.Message, error) {
	page, err := c.client.QueryReplies(ctx, parentID, q)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.state.cacheReplies(parentID, page)
	c.mu.Unlock()
	return page, nil
}

// SendMessage posts a message to this channel.
func (c *Channel) SendMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	return c.client.SendMessage(ctx, c.id, msg)
}

// UpdateMessage edits a message through the API.
func (c *Channel) UpdateMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	return c.client.UpdateMessage(ctx, msg)
}

// MarkRead records the local user's read position.
func (c *Channel) MarkRead(ctx context.Context) error {
	return c.client.MarkRead(ctx, c.id)
}

// Config returns the backend channel configuration.
func (c *Channel) Config() types.ChannelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Connected reports whether the realtime subscription is live.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// State returns a frozen snapshot of the backend-held channel state.
func (c *Channel) State() types.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// Replies returns the cached reply sequence for one parent message.
func (c *Channel) Replies(parentID string) []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.replies(parentID)
}

// Close releases the socket and stops reconnect attempts.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	socket := c.socket
	c.socket = nil
	c.mu.Unlock()
	if socket != nil {
		socket.Close()
	}
}

func (c *Channel) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
