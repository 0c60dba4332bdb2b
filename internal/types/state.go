package types

// ChannelState aggregates the backend-held view of one channel. Snapshots
// handed out by the client SDK are copies; receivers treat them as frozen.
type ChannelState struct {
	Messages     []Message
	Members      map[string]Member
	Watchers     map[string]User
	WatcherCount int
	Reads        map[string]Read
	Typing       map[string]TypingState
}
