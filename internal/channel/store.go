// Package channel implements the channel state synchronization core: it
// owns the local view of one channel, reconciles realtime events into it,
// and exposes the imperative actions the presentation layer may take.
package channel

import (
	"sort"

	"github.com/chatloom/loom/internal/types"
)

// Store holds one ordered message sequence. Mutations keep the sequence
// sorted by creation time (ties broken by identifier) and free of duplicate
// identifiers; replacing an existing identifier preserves its position.
type Store struct {
	msgs []types.Message
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// AddOrReplace inserts msg at its sort position, or replaces the existing
// entry with the same identifier in place. Replace-in-place is what turns
// an optimistic "sending" entry into its confirmed form without moving it.
func (s *Store) AddOrReplace(msg types.Message) {
	for i, existing := range s.msgs {
		if existing.ID == msg.ID {
			s.msgs[i] = msg
			return
		}
	}
	at := sort.Search(len(s.msgs), func(i int) bool {
		return msg.Before(s.msgs[i])
	})
	s.msgs = append(s.msgs, types.Message{})
	copy(s.msgs[at+1:], s.msgs[at:])
	s.msgs[at] = msg
}

// Remove deletes the message with the given identifier, if present.
func (s *Store) Remove(id string) bool {
	for i, msg := range s.msgs {
		if msg.ID != id {
			continue
		}
		s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
		return true
	}
	return false
}

// Get returns the message with the given identifier.
func (s *Store) Get(id string) (types.Message, bool) {
	for _, msg := range s.msgs {
		if msg.ID == id {
			return msg, true
		}
	}
	return types.Message{}, false
}

// FilterFailed discards every message currently in failed status. Called
// before a new send so stale failures do not resurface.
func (s *Store) FilterFailed() {
	kept := s.msgs[:0]
	for _, msg := range s.msgs {
		if msg.Status == types.StatusFailed {
			continue
		}
		kept = append(kept, msg)
	}
	s.msgs = kept
}

// Len returns the number of messages held.
func (s *Store) Len() int {
	return len(s.msgs)
}

// Oldest returns the first message in the sequence.
func (s *Store) Oldest() (types.Message, bool) {
	if len(s.msgs) == 0 {
		return types.Message{}, false
	}
	return s.msgs[0], true
}

// Snapshot returns a frozen copy of the sequence.
func (s *Store) Snapshot() []types.Message {
	return append([]types.Message(nil), s.msgs...)
}

// Reset replaces the sequence with an authoritative one, preserving local
// messages still awaiting confirmation (sending or failed) that the
// authoritative sequence does not contain. Deletions on the backend
// propagate; optimistic entries survive.
func (s *Store) Reset(authoritative []types.Message) {
	var local []types.Message
	seen := make(map[string]struct{}, len(authoritative))
	for _, msg := range authoritative {
		seen[msg.ID] = struct{}{}
	}
	for _, msg := range s.msgs {
		if msg.Status != types.StatusSending && msg.Status != types.StatusFailed {
			continue
		}
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		local = append(local, msg)
	}

	s.msgs = s.msgs[:0]
	for _, msg := range authoritative {
		if msg.Status == "" {
			msg.Status = types.StatusReceived
		}
		s.AddOrReplace(msg)
	}
	for _, msg := range local {
		s.AddOrReplace(msg)
	}
}
