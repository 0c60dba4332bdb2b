package channel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chatloom/loom/internal/types"
)

// Handle is the backend channel abstraction the core synchronizes against.
// backend.Channel implements it; tests substitute fakes.
type Handle interface {
	Watch(ctx context.Context) error
	QueryMessages(ctx context.Context, q types.MessagesQuery) ([]types.Message, error)
	QueryReplies(ctx context.Context, parentID string, q types.MessagesQuery) ([]types.Message, error)
	SendMessage(ctx context.Context, msg types.Message) (types.Message, error)
	UpdateMessage(ctx context.Context, msg types.Message) (types.Message, error)
	MarkRead(ctx context.Context) error
	Config() types.ChannelConfig
	Connected() bool
	State() types.ChannelState
	Replies(parentID string) []types.Message
	Subscribe(fn func(types.Event)) func()
}

// Options is the capability set handed to the core at construction. The
// core is agnostic to how the view is rendered; OnChange and the hooks are
// the whole boundary.
type Options struct {
	// UserID is the local user. Client-side message identifiers are scoped
	// to it, and messages it authors never trigger mark-read or the unread
	// badge.
	UserID string

	// PageSize is the backward fetch size for both pagination instances.
	PageSize int

	// RefreshWindow rate-limits full-state refreshes triggered by events.
	// Zero disables coalescing (every event refreshes synchronously).
	RefreshWindow time.Duration

	// MarkReadWindow rate-limits mark-read calls the same way.
	MarkReadWindow time.Duration

	// DebounceWindow collapses rapid pagination completions into one
	// trailing state update.
	DebounceWindow time.Duration

	// OnChange receives a frozen view after every state change. It must
	// not mutate the view's sequences or maps.
	OnChange func(View)

	// OnBackgroundMessage fires for a new foreign message that arrives
	// while the client is backgrounded, after the unread badge update.
	OnBackgroundMessage func(types.Message)

	// DoSendMessage overrides the handle's send operation when set.
	DoSendMessage func(ctx context.Context, msg types.Message) (types.Message, error)

	// DoUpdateMessage overrides the handle's update operation when set.
	DoUpdateMessage func(ctx context.Context, msg types.Message) (types.Message, error)

	Logger *log.Logger
}

const (
	defaultPageSize       = 100
	defaultRefreshWindow  = 500 * time.Millisecond
	defaultMarkReadWindow = 500 * time.Millisecond
	defaultDebounceWindow = 2 * time.Second
)

// Controller owns the synchronized view of one channel. All state is
// mutated under one mutex and every handler runs to completion; network
// calls block only the goroutine that issued the action, never event
// processing.
type Controller struct {
	h    Handle
	opts Options

	mu           sync.Mutex
	store        *Store
	thread       *Store
	threadRoot   *types.Message
	members      map[string]types.Member
	watchers     map[string]types.User
	reads        map[string]types.Read
	typing       map[string]types.TypingState
	watcherCount int

	loading           bool
	loadingMore       bool
	hasMore           bool
	loadingMoreThread bool
	hasMoreThread     bool
	mainInFlight      bool
	threadInFlight    bool

	unread     int
	foreground bool
	lastErr    error
	closed     bool

	refreshLimiter  *limiter
	markReadLimiter *limiter
	mainFinished    *debouncer
	threadFinished  *debouncer

	unsubscribe func()
}

// NewController builds the synchronization core around a channel handle.
func NewController(h Handle, opts Options) (*Controller, error) {
	if h == nil {
		return nil, fmt.Errorf("channel handle is required")
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	return &Controller{
		h:               h,
		opts:            opts,
		store:           NewStore(),
		thread:          NewStore(),
		members:         map[string]types.Member{},
		watchers:        map[string]types.User{},
		reads:           map[string]types.Read{},
		typing:          map[string]types.TypingState{},
		loading:         true,
		hasMore:         true,
		foreground:      true,
		refreshLimiter:  newLimiter(opts.RefreshWindow),
		markReadLimiter: newLimiter(opts.MarkReadWindow),
		mainFinished:    newDebouncer(opts.DebounceWindow),
		threadFinished:  newDebouncer(opts.DebounceWindow),
	}, nil
}

// Watch subscribes to the event stream and establishes the realtime
// connection. The subscription is released on every failure path; a watch
// failure is the one error class surfaced as a persistent view error.
func (c *Controller) Watch(ctx context.Context) error {
	cancel := c.h.Subscribe(c.onEvent)
	if err := c.h.Watch(ctx); err != nil {
		cancel()
		c.mu.Lock()
		c.lastErr = err
		c.loading = false
		c.mu.Unlock()
		c.emit()
		return err
	}

	state := c.h.State()
	c.mu.Lock()
	if c.closed {
		// Close ran while the watch was in flight; it found no
		// subscription to cancel, so release it here.
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.unsubscribe = cancel
	c.applyStateLocked(state)
	c.loading = false
	c.mu.Unlock()
	c.emit()

	c.markReadLimiter.Do(func() { c.markRead(context.Background()) })
	return nil
}

// Close releases the event subscription and all timers. The handle itself
// belongs to the caller.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.refreshLimiter.Stop()
	c.markReadLimiter.Stop()
	c.mainFinished.Stop()
	c.threadFinished.Stop()
}

// applyStateLocked refreshes the local view wholesale from an authoritative
// snapshot. Optimistic entries survive via Store.Reset.
func (c *Controller) applyStateLocked(state types.ChannelState) {
	c.store.Reset(state.Messages)
	if state.Members != nil {
		c.members = state.Members
	}
	if state.Watchers != nil {
		c.watchers = state.Watchers
	}
	if state.Reads != nil {
		c.reads = state.Reads
	}
	if state.Typing != nil {
		c.typing = state.Typing
	}
	c.watcherCount = state.WatcherCount
	c.syncThreadLocked()
}

// View returns a frozen snapshot of the synchronized state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Messages:          c.store.Snapshot(),
		Members:           c.members,
		Watchers:          c.watchers,
		Reads:             c.reads,
		Typing:            c.typing,
		WatcherCount:      c.watcherCount,
		Loading:           c.loading,
		LoadingMore:       c.loadingMore,
		HasMore:           c.hasMore,
		LoadingMoreThread: c.loadingMoreThread,
		HasMoreThread:     c.hasMoreThread,
		Unread:            c.unread,
		Err:               c.lastErr,
	}
	if c.threadRoot != nil {
		root := *c.threadRoot
		v.Thread = &root
		v.ThreadMessages = c.thread.Snapshot()
		v.HasMoreThread = c.hasMoreThread
	}
	return v
}

// emit pushes a fresh view to the presentation layer, outside the lock.
func (c *Controller) emit() {
	if c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(c.View())
}

func (c *Controller) logf(format string, args ...any) {
	if c.opts.Logger == nil {
		return
	}
	c.opts.Logger.Printf(format, args...)
}
