package chat

import (
	"github.com/gen2brain/beeep"

	"github.com/chatloom/loom/internal/types"
)

// notifyNewMessage raises a desktop notification for a message that arrived
// while the client was backgrounded. Notification failures are ignored;
// the unread badge already covers the signal.
func notifyNewMessage(channelName string, msg types.Message) {
	author := "someone"
	if msg.User != nil {
		author = displayName(*msg.User)
	}
	title := author + " in #" + channelName
	_ = beeep.Notify(title, truncate(msg.Text, 120), "")
}
