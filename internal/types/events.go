package types

import "time"

// EventType identifies a realtime event emitted by the backend.
type EventType string

const (
	EventMessageNew          EventType = "message.new"
	EventMessageUpdated      EventType = "message.updated"
	EventMessageDeleted      EventType = "message.deleted"
	EventMessageRead         EventType = "message.read"
	EventReactionNew         EventType = "reaction.new"
	EventReactionDeleted     EventType = "reaction.deleted"
	EventTypingStart         EventType = "typing.start"
	EventTypingStop          EventType = "typing.stop"
	EventWatchingStart       EventType = "user.watching.start"
	EventWatchingStop        EventType = "user.watching.stop"
	EventChannelUpdated      EventType = "channel.updated"
	EventConnectionRecovered EventType = "connection.recovered"
)

// Event is one entry in the ordered realtime stream for a channel.
// Fields beyond Type are populated per event kind.
type Event struct {
	Type         EventType `json:"type"`
	ChannelID    string    `json:"channel_id,omitempty"`
	User         *User     `json:"user,omitempty"`
	Message      *Message  `json:"message,omitempty"`
	Reaction     *Reaction `json:"reaction,omitempty"`
	WatcherCount int       `json:"watcher_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
