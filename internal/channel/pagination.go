package channel

import (
	"context"

	"github.com/chatloom/loom/internal/types"
)

// LoadMore pages older history into the main sequence. The call is a no-op
// while a fetch is in flight, when the sequence is empty, or when the
// oldest entry is unconfirmed (nothing authoritative to paginate before).
// Fetch failures are logged and absorbed; completion is debounced so rapid
// pages collapse into one state update.
func (c *Controller) LoadMore(ctx context.Context) {
	c.mu.Lock()
	oldest, ok := c.store.Oldest()
	if c.mainInFlight || !ok || oldest.Status != types.StatusReceived {
		c.mu.Unlock()
		return
	}
	c.mainInFlight = true
	c.loadingMore = true
	limit := c.opts.PageSize
	cursor := oldest.ID
	c.mu.Unlock()
	c.emit()

	page, err := c.h.QueryMessages(ctx, types.MessagesQuery{Limit: limit, IDLT: cursor})
	if err != nil {
		c.logf("load more: %v", err)
		c.mu.Lock()
		c.mainInFlight = false
		c.loadingMore = false
		c.mu.Unlock()
		c.emit()
		return
	}

	c.mainFinished.Do(func() {
		c.mu.Lock()
		c.hasMore = len(page) == limit
		for _, msg := range page {
			if msg.Status == "" {
				msg.Status = types.StatusReceived
			}
			c.store.AddOrReplace(msg)
		}
		c.mainInFlight = false
		c.loadingMore = false
		c.syncThreadLocked()
		c.mu.Unlock()
		c.emit()
	})
}

// LoadMoreThread pages older replies into the open thread, under the same
// guards and completion debounce as LoadMore.
func (c *Controller) LoadMoreThread(ctx context.Context) {
	c.mu.Lock()
	if c.threadRoot == nil {
		c.mu.Unlock()
		return
	}
	oldest, ok := c.thread.Oldest()
	if c.threadInFlight || !ok || oldest.Status != types.StatusReceived {
		c.mu.Unlock()
		return
	}
	c.threadInFlight = true
	c.loadingMoreThread = true
	parentID := c.threadRoot.ID
	limit := c.opts.PageSize
	cursor := oldest.ID
	c.mu.Unlock()
	c.emit()

	page, err := c.h.QueryReplies(ctx, parentID, types.MessagesQuery{Limit: limit, IDLT: cursor})
	if err != nil {
		c.logf("load more thread %s: %v", parentID, err)
		c.mu.Lock()
		c.threadInFlight = false
		c.loadingMoreThread = false
		c.mu.Unlock()
		c.emit()
		return
	}

	c.threadFinished.Do(func() {
		c.mu.Lock()
		// The thread may have been closed or switched while fetching;
		// stale pages for another root are dropped.
		if c.threadRoot == nil || c.threadRoot.ID != parentID {
			c.threadInFlight = false
			c.loadingMoreThread = false
			c.mu.Unlock()
			return
		}
		c.hasMoreThread = len(page) == limit
		for _, msg := range page {
			if msg.Status == "" {
				msg.Status = types.StatusReceived
			}
			c.thread.AddOrReplace(msg)
		}
		c.threadInFlight = false
		c.loadingMoreThread = false
		c.mu.Unlock()
		c.emit()
	})
}
