package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/chatloom/loom/internal/types"
)

func TestLoadMoreSetsHasMoreFromPageSize(t *testing.T) {
	f := newFakeHandle()
	all := seq("other", 100)
	f.state.Messages = all[80:]

	pages := [][]types.Message{all[30:80], all[0:30]}
	f.queryFn = func(q types.MessagesQuery) ([]types.Message, error) {
		page := pages[0]
		pages = pages[1:]
		return page, nil
	}

	ctrl := newTestController(f, Options{UserID: "me", PageSize: 50})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.LoadMore(context.Background())
	if v := ctrl.View(); !v.HasMore {
		t.Error("full page fetched, HasMore = false, want true")
	}
	if f.lastQuery.IDLT != all[80].ID {
		t.Errorf("cursor = %s, want oldest id %s", f.lastQuery.IDLT, all[80].ID)
	}

	ctrl.LoadMore(context.Background())
	v := ctrl.View()
	if v.HasMore {
		t.Error("short page fetched, HasMore = true, want false")
	}
	if len(v.Messages) != 100 {
		t.Errorf("len = %d, want 100", len(v.Messages))
	}
	assertOrdered(t, v.Messages)
}

func TestLoadMoreSuppressesConcurrentFetch(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 5)

	started := make(chan struct{})
	release := make(chan struct{})
	f.queryFn = func(q types.MessagesQuery) ([]types.Message, error) {
		close(started)
		<-release
		return nil, nil
	}

	ctrl := newTestController(f, Options{UserID: "me", PageSize: 50})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	done := make(chan struct{})
	go func() {
		ctrl.LoadMore(context.Background())
		close(done)
	}()
	<-started

	// Second call while the first fetch is in flight must be rejected.
	ctrl.LoadMore(context.Background())

	close(release)
	<-done

	if f.queryCalls != 1 {
		t.Errorf("queryCalls = %d, want exactly 1", f.queryCalls)
	}
}

func TestLoadMoreRefusesUnconfirmedEdge(t *testing.T) {
	f := newFakeHandle()
	edge := msg("edge", "me", 1)
	edge.Status = types.StatusFailed
	f.state.Messages = []types.Message{edge}

	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	before := ctrl.View().HasMore
	ctrl.LoadMore(context.Background())

	if f.queryCalls != 0 {
		t.Errorf("queryCalls = %d, want 0 with failed edge message", f.queryCalls)
	}
	if got := ctrl.View().HasMore; got != before {
		t.Errorf("HasMore changed %v -> %v without a fetch", before, got)
	}
}

func TestLoadMoreRefusesWhenEmpty(t *testing.T) {
	f := newFakeHandle()
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.LoadMore(context.Background())
	if f.queryCalls != 0 {
		t.Errorf("queryCalls = %d, want 0 on empty sequence", f.queryCalls)
	}
}

func TestLoadMoreAbsorbsFetchError(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 5)
	f.queryFn = func(q types.MessagesQuery) ([]types.Message, error) {
		return nil, errors.New("network down")
	}

	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	before := ctrl.View()

	ctrl.LoadMore(context.Background())

	after := ctrl.View()
	if after.HasMore != before.HasMore {
		t.Errorf("HasMore changed on error: %v -> %v", before.HasMore, after.HasMore)
	}
	if len(after.Messages) != len(before.Messages) {
		t.Errorf("sequence changed on error: %d -> %d", len(before.Messages), len(after.Messages))
	}
	if after.LoadingMore {
		t.Error("LoadingMore stuck after error")
	}

	// The send path must remain usable after a pagination failure.
	ctrl.SendMessage(context.Background(), types.Draft{Text: "still works"})
	if got := ctrl.View().Messages; got[len(got)-1].Text != "still works" {
		t.Error("send path broken after pagination error")
	}
}

func TestLoadMoreThread(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 3)
	root := f.state.Messages[2]

	replies := make([]types.Message, 0, 4)
	for i := 0; i < 4; i++ {
		r := msg("r"+string(rune('a'+i)), "other", 10+i)
		r.ParentID = root.ID
		replies = append(replies, r)
	}
	f.replies[root.ID] = replies[2:]
	f.repliesFn = func(parentID string, q types.MessagesQuery) ([]types.Message, error) {
		if parentID != root.ID {
			t.Errorf("parent = %s, want %s", parentID, root.ID)
		}
		return replies[:2], nil
	}

	ctrl := newTestController(f, Options{UserID: "me", PageSize: 50})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.OpenThread(root)
	if got := len(ctrl.View().ThreadMessages); got != 2 {
		t.Fatalf("initial replies = %d, want 2", got)
	}

	ctrl.LoadMoreThread(context.Background())
	v := ctrl.View()
	if len(v.ThreadMessages) != 4 {
		t.Fatalf("replies after page = %d, want 4", len(v.ThreadMessages))
	}
	assertOrdered(t, v.ThreadMessages)
	if v.HasMoreThread {
		t.Error("short reply page, HasMoreThread = true, want false")
	}
	if f.lastQuery.IDLT != replies[2].ID {
		t.Errorf("thread cursor = %s, want %s", f.lastQuery.IDLT, replies[2].ID)
	}
}

func TestLoadMoreThreadRequiresOpenThread(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 3)
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.LoadMoreThread(context.Background())
	if f.repliesCalls != 0 {
		t.Errorf("repliesCalls = %d, want 0 with no thread open", f.repliesCalls)
	}
}
