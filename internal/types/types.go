package types

import "time"

// MessageStatus tracks the delivery state of a locally visible message.
type MessageStatus string

const (
	StatusSending  MessageStatus = "sending"
	StatusReceived MessageStatus = "received"
	StatusFailed   MessageStatus = "failed"
)

// MessageType classifies a message for rendering and filtering.
type MessageType string

const (
	MessageRegular   MessageType = "regular"
	MessageError     MessageType = "error"
	MessageSystem    MessageType = "system"
	MessageEphemeral MessageType = "ephemeral"
	MessageRead      MessageType = "message.read"
)

// User identifies a chat participant.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Online   bool   `json:"online,omitempty"`
	LastSeen *int64 `json:"last_seen,omitempty"`
}

// Attachment is an opaque payload attached to a message. The core never
// interprets attachments; it carries them for the presentation layer.
type Attachment struct {
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	AssetURL string `json:"asset_url,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Message is one entry in a channel's message sequence.
//
// ID is client-generated for optimistic sends and server-assigned once the
// backend confirms. ParentID is set for thread replies.
type Message struct {
	ID             string         `json:"id"`
	User           *User          `json:"user,omitempty"`
	Text           string         `json:"text"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Status         MessageStatus  `json:"status,omitempty"`
	Type           MessageType    `json:"type,omitempty"`
	ParentID       string         `json:"parent_id,omitempty"`
	ReactionCounts map[string]int `json:"reaction_counts,omitempty"`
	ReplyCount     int            `json:"reply_count,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

// Before reports whether m sorts ahead of other in a message sequence.
// Creation time orders the sequence; identifiers break ties so the order
// is total and stable.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// Member records channel membership for a user.
type Member struct {
	User      *User      `json:"user,omitempty"`
	Role      string     `json:"role,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Read is a per-user read receipt: the last instant at which the user had
// read everything in the channel.
type Read struct {
	User       *User     `json:"user"`
	LastRead   time.Time `json:"last_read"`
	UnreadMsgs int       `json:"unread_messages,omitempty"`
}

// TypingState marks a user as currently composing, with the event instant
// so stale indicators can be expired.
type TypingState struct {
	User      *User     `json:"user"`
	StartedAt time.Time `json:"started_at"`
}

// Reaction is a single user's reaction to a message.
type Reaction struct {
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
	User      *User  `json:"user,omitempty"`
}

// ChannelConfig carries backend-side channel capabilities consulted by the
// synchronization core.
type ChannelConfig struct {
	ReadEvents   bool `json:"read_events"`
	TypingEvents bool `json:"typing_events"`
}

// MessagesQuery bounds a backward page fetch. IDLT is the exclusive upper
// cursor: only messages with identifiers ordering strictly before it are
// returned.
type MessagesQuery struct {
	Limit int    `json:"limit"`
	IDLT  string `json:"id_lt,omitempty"`
}

// Draft is the user-authored portion of an outgoing message.
type Draft struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ParentID    string       `json:"parent_id,omitempty"`
}
