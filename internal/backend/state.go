package backend

import (
	"sort"

	"github.com/chatloom/loom/internal/types"
)

// channelState is the mutable authoritative mirror of one channel, kept
// current by applying realtime events. All access goes through Channel,
// which holds the lock.
type channelState struct {
	messages     []types.Message
	threads      map[string][]types.Message
	members      map[string]types.Member
	watchers     map[string]types.User
	watcherCount int
	reads        map[string]types.Read
	typing       map[string]types.TypingState
}

func newChannelState() *channelState {
	return &channelState{
		threads:  make(map[string][]types.Message),
		members:  make(map[string]types.Member),
		watchers: make(map[string]types.User),
		reads:    make(map[string]types.Read),
		typing:   make(map[string]types.TypingState),
	}
}

// hydrate replaces the mirror with an authoritative channel query result.
// Re-hydrate after a reconnect must not leak presence recorded before the
// disconnect, so every index is rebuilt from scratch.
func (s *channelState) hydrate(resp ChannelStateResponse) {
	s.messages = s.messages[:0]
	s.threads = make(map[string][]types.Message)
	s.members = make(map[string]types.Member, len(resp.Members))
	s.watchers = make(map[string]types.User, len(resp.Watchers))
	s.reads = make(map[string]types.Read, len(resp.Reads))
	s.typing = make(map[string]types.TypingState)
	for _, msg := range resp.Messages {
		s.addMessage(msg)
	}
	for _, member := range resp.Members {
		if member.User != nil {
			s.members[member.User.ID] = member
		}
	}
	for _, watcher := range resp.Watchers {
		s.watchers[watcher.ID] = watcher
	}
	for _, read := range resp.Reads {
		if read.User != nil {
			s.reads[read.User.ID] = read
		}
	}
	s.watcherCount = resp.WatcherCount
}

// apply merges one realtime event into the mirror.
func (s *channelState) apply(ev types.Event) {
	switch ev.Type {
	case types.EventMessageNew, types.EventMessageUpdated:
		if ev.Message == nil {
			return
		}
		msg := *ev.Message
		if msg.Status == "" {
			msg.Status = types.StatusReceived
		}
		s.addMessage(msg)
		if ev.Type == types.EventMessageNew && ev.User != nil {
			delete(s.typing, ev.User.ID)
		}
	case types.EventMessageDeleted:
		if ev.Message == nil {
			return
		}
		s.removeMessage(ev.Message.ID)
	case types.EventMessageRead:
		if ev.User == nil {
			return
		}
		s.reads[ev.User.ID] = types.Read{User: ev.User, LastRead: ev.CreatedAt}
	case types.EventReactionNew, types.EventReactionDeleted:
		// The event message carries the authoritative reaction counts.
		if ev.Message != nil {
			msg := *ev.Message
			if msg.Status == "" {
				msg.Status = types.StatusReceived
			}
			s.addMessage(msg)
		}
	case types.EventTypingStart:
		if ev.User == nil {
			return
		}
		s.typing[ev.User.ID] = types.TypingState{User: ev.User, StartedAt: ev.CreatedAt}
	case types.EventTypingStop:
		if ev.User == nil {
			return
		}
		delete(s.typing, ev.User.ID)
	case types.EventWatchingStart:
		if ev.User == nil {
			return
		}
		s.watchers[ev.User.ID] = *ev.User
		if ev.WatcherCount > 0 {
			s.watcherCount = ev.WatcherCount
		} else {
			s.watcherCount = len(s.watchers)
		}
	case types.EventWatchingStop:
		if ev.User == nil {
			return
		}
		delete(s.watchers, ev.User.ID)
		if ev.WatcherCount > 0 {
			s.watcherCount = ev.WatcherCount
		} else {
			s.watcherCount = len(s.watchers)
		}
	}
}

// addMessage inserts keeping creation order, or replaces in place when the
// identifier is already present. Thread replies are mirrored into the
// per-parent reply list.
func (s *channelState) addMessage(msg types.Message) {
	if msg.ParentID == "" {
		s.messages = insertSorted(s.messages, msg)
	} else {
		s.threads[msg.ParentID] = insertSorted(s.threads[msg.ParentID], msg)
		// A reply update can also touch the root's reply count shown in
		// the main list; the root arrives as its own event when it does.
	}
}

func (s *channelState) removeMessage(id string) {
	s.messages = removeByID(s.messages, id)
	for parentID, replies := range s.threads {
		s.threads[parentID] = removeByID(replies, id)
	}
}

// cacheReplies merges a fetched reply page into the per-parent mirror.
func (s *channelState) cacheReplies(parentID string, replies []types.Message) {
	list := s.threads[parentID]
	for _, reply := range replies {
		if reply.Status == "" {
			reply.Status = types.StatusReceived
		}
		list = insertSorted(list, reply)
	}
	s.threads[parentID] = list
}

// snapshot deep-copies the mirror for handoff to the synchronization core.
func (s *channelState) snapshot() types.ChannelState {
	out := types.ChannelState{
		Messages:     append([]types.Message(nil), s.messages...),
		Members:      make(map[string]types.Member, len(s.members)),
		Watchers:     make(map[string]types.User, len(s.watchers)),
		WatcherCount: s.watcherCount,
		Reads:        make(map[string]types.Read, len(s.reads)),
		Typing:       make(map[string]types.TypingState, len(s.typing)),
	}
	for id, member := range s.members {
		out.Members[id] = member
	}
	for id, watcher := range s.watchers {
		out.Watchers[id] = watcher
	}
	for id, read := range s.reads {
		out.Reads[id] = read
	}
	for id, typing := range s.typing {
		out.Typing[id] = typing
	}
	return out
}

func (s *channelState) replies(parentID string) []types.Message {
	return append([]types.Message(nil), s.threads[parentID]...)
}

func insertSorted(msgs []types.Message, msg types.Message) []types.Message {
	for i, existing := range msgs {
		if existing.ID == msg.ID {
			msgs[i] = msg
			return msgs
		}
	}
	at := sort.Search(len(msgs), func(i int) bool {
		return msg.Before(msgs[i])
	})
	msgs = append(msgs, types.Message{})
	copy(msgs[at+1:], msgs[at:])
	msgs[at] = msg
	return msgs
}

func removeByID(msgs []types.Message, id string) []types.Message {
	for i, msg := range msgs {
		if msg.ID != id {
			continue
		}
		return append(msgs[:i], msgs[i+1:]...)
	}
	return msgs
}
