package channel

import "github.com/chatloom/loom/internal/types"

// View is the read-only state handed to the presentation layer. Sequences
// and maps are frozen snapshots; any change must go through a Controller
// action.
type View struct {
	Messages     []types.Message
	Members      map[string]types.Member
	Watchers     map[string]types.User
	WatcherCount int
	Reads        map[string]types.Read
	Typing       map[string]types.TypingState

	Loading     bool
	LoadingMore bool
	HasMore     bool
	Err         error

	Thread            *types.Message
	ThreadMessages    []types.Message
	LoadingMoreThread bool
	HasMoreThread     bool

	Unread int
}

// ReadByUserOnly reports whether the channel has been read by the given
// user and nobody else. Deliberately a literal single-entry check: a
// channel whose only other member has also read does not count.
func (v View) ReadByUserOnly(userID string) bool {
	if len(v.Reads) != 1 {
		return false
	}
	_, ok := v.Reads[userID]
	return ok
}

// TypingUsers lists users currently composing, excluding the given user.
func (v View) TypingUsers(excludeID string) []types.User {
	var users []types.User
	for id, state := range v.Typing {
		if id == excludeID || state.User == nil {
			continue
		}
		users = append(users, *state.User)
	}
	return users
}
