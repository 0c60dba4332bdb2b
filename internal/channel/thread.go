package channel

import "github.com/chatloom/loom/internal/types"

// OpenThread captures msg as the thread root and loads whatever replies
// the backend handle already holds locally. No fetch is issued; LoadMoreThread
// pages in older history on demand.
func (c *Controller) OpenThread(msg types.Message) {
	replies := c.h.Replies(msg.ID)

	c.mu.Lock()
	root := msg
	c.threadRoot = &root
	c.thread = NewStore()
	c.thread.Reset(replies)
	c.hasMoreThread = true
	c.loadingMoreThread = false
	c.syncThreadLocked()
	c.mu.Unlock()
	c.emit()
}

// CloseThread clears the thread root and its reply sequence.
func (c *Controller) CloseThread() {
	c.mu.Lock()
	c.threadRoot = nil
	c.thread = NewStore()
	c.loadingMoreThread = false
	c.hasMoreThread = false
	c.mu.Unlock()
	c.emit()
}

// syncThreadLocked re-derives the thread root from the main sequence: the
// most recent entry with the root's identifier wins, so an edit to the
// root shows up in the thread header without a fetch. When the root has
// left the visible window the previous copy is retained.
func (c *Controller) syncThreadLocked() {
	if c.threadRoot == nil {
		return
	}
	for i := len(c.store.msgs) - 1; i >= 0; i-- {
		if c.store.msgs[i].ID == c.threadRoot.ID {
			root := c.store.msgs[i]
			c.threadRoot = &root
			return
		}
	}
}
