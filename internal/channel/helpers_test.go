package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chatloom/loom/internal/types"
)

// fakeHandle is a scriptable Handle for controller tests.
type fakeHandle struct {
	mu sync.Mutex

	state     types.ChannelState
	replies   map[string][]types.Message
	config    types.ChannelConfig
	connected bool

	watchErr error
	watchFn  func(ctx context.Context) error

	sendFn    func(msg types.Message) (types.Message, error)
	updateFn  func(msg types.Message) (types.Message, error)
	queryFn   func(q types.MessagesQuery) ([]types.Message, error)
	repliesFn func(parentID string, q types.MessagesQuery) ([]types.Message, error)

	markReadErr error

	sendCalls     int
	updateCalls   int
	queryCalls    int
	repliesCalls  int
	markReadCalls int

	lastQuery types.MessagesQuery

	subs map[int]func(types.Event)
	next int
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		replies:   map[string][]types.Message{},
		config:    types.ChannelConfig{ReadEvents: true},
		connected: true,
		subs:      map[int]func(types.Event){},
	}
}

func (f *fakeHandle) Watch(ctx context.Context) error {
	if f.watchFn != nil {
		return f.watchFn(ctx)
	}
	return f.watchErr
}

func (f *fakeHandle) QueryMessages(ctx context.Context, q types.MessagesQuery) ([]types.Message, error) {
	f.mu.Lock()
	f.queryCalls++
	f.lastQuery = q
	fn := f.queryFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(q)
}

func (f *fakeHandle) QueryReplies(ctx context.Context, parentID string, q types.MessagesQuery) ([]types.Message, error) {
	f.mu.Lock()
	f.repliesCalls++
	f.lastQuery = q
	fn := f.repliesFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(parentID, q)
}

func (f *fakeHandle) SendMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	f.mu.Lock()
	f.sendCalls++
	fn := f.sendFn
	f.mu.Unlock()
	if fn == nil {
		return msg, nil
	}
	return fn(msg)
}

func (f *fakeHandle) UpdateMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	f.mu.Lock()
	f.updateCalls++
	fn := f.updateFn
	f.mu.Unlock()
	if fn == nil {
		return msg, nil
	}
	return fn(msg)
}

func (f *fakeHandle) MarkRead(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls++
	return f.markReadErr
}

func (f *fakeHandle) Config() types.ChannelConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

func (f *fakeHandle) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeHandle) State() types.ChannelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.state
	out.Messages = append([]types.Message(nil), f.state.Messages...)
	return out
}

func (f *fakeHandle) Replies(parentID string) []types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Message(nil), f.replies[parentID]...)
}

func (f *fakeHandle) Subscribe(fn func(types.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// emit delivers an event to every subscriber, like the SDK's dispatch.
func (f *fakeHandle) emit(ev types.Event) {
	f.mu.Lock()
	handlers := make([]func(types.Event), 0, len(f.subs))
	for _, fn := range f.subs {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (f *fakeHandle) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// msg builds a received message n seconds past a fixed epoch.
func msg(id string, userID string, n int) types.Message {
	return types.Message{
		ID:        id,
		User:      &types.User{ID: userID},
		Text:      "msg " + id,
		Status:    types.StatusReceived,
		Type:      types.MessageRegular,
		CreatedAt: epoch.Add(time.Duration(n) * time.Second),
	}
}

var epoch = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

// seq builds n received messages m1..mn in order.
func seq(userID string, n int) []types.Message {
	msgs := make([]types.Message, 0, n)
	for i := 1; i <= n; i++ {
		msgs = append(msgs, msg(fmt.Sprintf("m%03d", i), userID, i))
	}
	return msgs
}

// newTestController builds a controller with all coalescing windows zeroed
// so every handler runs synchronously.
func newTestController(f *fakeHandle, opts Options) *Controller {
	if opts.UserID == "" {
		opts.UserID = "me"
	}
	if opts.PageSize == 0 {
		opts.PageSize = 50
	}
	ctrl, err := NewController(f, opts)
	if err != nil {
		panic(err)
	}
	return ctrl
}
