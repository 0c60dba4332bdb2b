package channel

import (
	"context"

	"github.com/chatloom/loom/internal/types"
)

// onEvent is the reconciler entry point. Events arrive one at a time from
// the handle's dispatch goroutine; each is fully applied before the next.
// Nothing in here may fail loudly: mark-read errors are logged and the
// refresh path has no error surface.
func (c *Controller) onEvent(ev types.Event) {
	if ev.Type == types.EventMessageNew && ev.Message != nil {
		c.onNewMessage(*ev.Message)
	}

	// Rather than hand-patching deltas, refresh the whole view from the
	// backend-held state. The limiter coalesces bursts but guarantees a
	// trailing refresh, so the final state of any burst always lands.
	c.refreshLimiter.Do(c.refresh)
}

// onNewMessage applies the read/badge policy for a message authored by
// someone else: mark read while foregrounded, count unread otherwise.
func (c *Controller) onNewMessage(msg types.Message) {
	from := ""
	if msg.User != nil {
		from = msg.User.ID
	}
	if from == "" || from == c.opts.UserID {
		return
	}

	c.mu.Lock()
	foreground := c.foreground
	if !foreground {
		c.unread++
	}
	c.mu.Unlock()

	if foreground {
		c.markReadLimiter.Do(func() { c.markRead(context.Background()) })
	} else if c.opts.OnBackgroundMessage != nil {
		c.opts.OnBackgroundMessage(msg)
	}
}

// refresh pulls the authoritative channel state and re-derives the local
// view, including the open thread's reply sequence and root.
func (c *Controller) refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	rootID := ""
	if c.threadRoot != nil {
		rootID = c.threadRoot.ID
	}
	c.mu.Unlock()

	state := c.h.State()
	var replies []types.Message
	if rootID != "" {
		replies = c.h.Replies(rootID)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.applyStateLocked(state)
	if c.threadRoot != nil && c.threadRoot.ID == rootID {
		c.thread.Reset(replies)
		c.syncThreadLocked()
	}
	c.mu.Unlock()
	c.emit()
}

// markRead tells the backend the local user is caught up. No-op while
// disconnected or when the channel disables read events; failures are
// logged and absorbed.
func (c *Controller) markRead(ctx context.Context) {
	if !c.h.Connected() {
		return
	}
	if !c.h.Config().ReadEvents {
		return
	}
	if err := c.h.MarkRead(ctx); err != nil {
		c.logf("mark read: %v", err)
		return
	}
	c.mu.Lock()
	c.unread = 0
	c.mu.Unlock()
	c.emit()
}

// SetForeground records whether the client is visibly foregrounded.
// Regaining the foreground marks the channel read.
func (c *Controller) SetForeground(foreground bool) {
	c.mu.Lock()
	changed := c.foreground != foreground
	c.foreground = foreground
	c.mu.Unlock()
	if !changed {
		return
	}
	if foreground {
		c.markReadLimiter.Do(func() { c.markRead(context.Background()) })
	}
	c.emit()
}

// Unread returns the current unread badge count.
func (c *Controller) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}
