package channel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chatloom/loom/internal/types"
)

// SendMessage synthesizes an optimistic message, shows it immediately in
// sending status, and issues the backend request. Failures are never
// returned: the entry transitions to failed and stays retriable. The
// client-generated identifier is returned so callers can track the send.
func (c *Controller) SendMessage(ctx context.Context, draft types.Draft) string {
	msg := types.Message{
		ID:          c.opts.UserID + "-" + uuid.NewString(),
		User:        &types.User{ID: c.opts.UserID},
		Text:        draft.Text,
		Attachments: draft.Attachments,
		ParentID:    draft.ParentID,
		Status:      types.StatusSending,
		Type:        types.MessageRegular,
		CreatedAt:   time.Now(),
	}

	c.mu.Lock()
	// Purge stale failures so they do not resurface around the new entry.
	c.store.FilterFailed()
	c.thread.FilterFailed()
	c.storeForLocked(msg).AddOrReplace(msg)
	c.mu.Unlock()
	c.emit()

	resp, err := c.doSend(ctx, msg)
	c.completeSend(msg.ID, resp, err)
	return msg.ID
}

// RetrySendMessage transitions a failed message back to sending in place
// and re-issues the backend request with its original content.
func (c *Controller) RetrySendMessage(ctx context.Context, msg types.Message) {
	c.mu.Lock()
	entry, store, ok := c.getLocked(msg.ID)
	if !ok || entry.Status != types.StatusFailed {
		c.mu.Unlock()
		return
	}
	entry.Status = types.StatusSending
	store.AddOrReplace(entry)
	c.mu.Unlock()
	c.emit()

	resp, err := c.doSend(ctx, entry)
	c.completeSend(entry.ID, resp, err)
}

// completeSend reconciles an optimistic entry with the backend outcome.
// The authoritative response replaces the entry matched by the client
// identifier; a server-assigned identifier supersedes the client one.
func (c *Controller) completeSend(clientID string, resp types.Message, err error) {
	c.mu.Lock()
	entry, store, ok := c.getLocked(clientID)
	if !ok {
		// Removed while in flight (channel refreshed or message deleted).
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.logf("send message %s: %v", clientID, err)
		entry.Status = types.StatusFailed
		store.AddOrReplace(entry)
		c.mu.Unlock()
		c.emit()
		return
	}

	resp.Status = types.StatusReceived
	if resp.ID != clientID {
		store.Remove(clientID)
	}
	store.AddOrReplace(resp)
	c.syncThreadLocked()
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) doSend(ctx context.Context, msg types.Message) (types.Message, error) {
	if c.opts.DoSendMessage != nil {
		return c.opts.DoSendMessage(ctx, msg)
	}
	return c.h.SendMessage(ctx, msg)
}

// EditMessage sends an edit to the backend and applies the authoritative
// result. Unlike send, edit failures surface to the caller so the input
// form can stay in edit mode.
func (c *Controller) EditMessage(ctx context.Context, msg types.Message) error {
	updated, err := c.doUpdate(ctx, msg)
	if err != nil {
		return err
	}
	c.UpdateMessage(updated)
	return nil
}

func (c *Controller) doUpdate(ctx context.Context, msg types.Message) (types.Message, error) {
	if c.opts.DoUpdateMessage != nil {
		return c.opts.DoUpdateMessage(ctx, msg)
	}
	return c.h.UpdateMessage(ctx, msg)
}

// UpdateMessage applies an authoritative message to the local view,
// keeping the open thread's replies and root consistent.
func (c *Controller) UpdateMessage(msg types.Message) {
	if msg.Status == "" {
		msg.Status = types.StatusReceived
	}
	c.mu.Lock()
	c.storeForLocked(msg).AddOrReplace(msg)
	if c.threadRoot != nil && msg.ParentID == c.threadRoot.ID {
		c.thread.AddOrReplace(msg)
	}
	c.syncThreadLocked()
	c.mu.Unlock()
	c.emit()
}

// RemoveMessage deletes a message from the main sequence and from the open
// thread's reply sequence.
func (c *Controller) RemoveMessage(msg types.Message) {
	c.mu.Lock()
	c.store.Remove(msg.ID)
	c.thread.Remove(msg.ID)
	c.mu.Unlock()
	c.emit()
}

// storeForLocked picks the sequence a message belongs to: replies to the
// open thread land in the thread store, everything else in the main store.
func (c *Controller) storeForLocked(msg types.Message) *Store {
	if msg.ParentID != "" && c.threadRoot != nil && msg.ParentID == c.threadRoot.ID {
		return c.thread
	}
	return c.store
}

// getLocked finds a message by identifier in either sequence, along with
// the store that holds it.
func (c *Controller) getLocked(id string) (types.Message, *Store, bool) {
	if msg, ok := c.store.Get(id); ok {
		return msg, c.store, true
	}
	if msg, ok := c.thread.Get(id); ok {
		return msg, c.thread, true
	}
	return types.Message{}, nil, false
}
