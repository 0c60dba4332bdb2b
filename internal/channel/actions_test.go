package channel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatloom/loom/internal/types"
)

type viewRecorder struct {
	mu    sync.Mutex
	views []View
}

func (r *viewRecorder) onChange(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *viewRecorder) sawStatus(status types.MessageStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.views {
		for _, m := range v.Messages {
			if m.Status == status {
				return true
			}
		}
	}
	return false
}

func TestSendMessageSuccess(t *testing.T) {
	f := newFakeHandle()
	f.sendFn = func(msg types.Message) (types.Message, error) {
		return types.Message{
			ID:        "srv-1",
			User:      msg.User,
			Text:      msg.Text,
			Type:      types.MessageRegular,
			CreatedAt: msg.CreatedAt,
		}, nil
	}
	var rec viewRecorder
	ctrl := newTestController(f, Options{UserID: "me", OnChange: rec.onChange})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.SendMessage(context.Background(), types.Draft{Text: "hi"})

	got := ctrl.View().Messages
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "srv-1" {
		t.Errorf("id = %s, want srv-1", got[0].ID)
	}
	if got[0].Status != types.StatusReceived {
		t.Errorf("status = %s, want received", got[0].Status)
	}
	if got[0].Text != "hi" {
		t.Errorf("text = %q, want %q", got[0].Text, "hi")
	}
	if !rec.sawStatus(types.StatusSending) {
		t.Error("optimistic sending state never became visible")
	}
}

func TestSendMessageClientIDScopedToUser(t *testing.T) {
	f := newFakeHandle()
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	clientID := ctrl.SendMessage(context.Background(), types.Draft{Text: "hello"})
	if !strings.HasPrefix(clientID, "me-") {
		t.Errorf("client id = %q, want prefix me-", clientID)
	}
}

func TestSendMessageFailureThenRetry(t *testing.T) {
	f := newFakeHandle()
	fail := true
	f.sendFn = func(msg types.Message) (types.Message, error) {
		if fail {
			return types.Message{}, errors.New("boom")
		}
		confirmed := msg
		confirmed.ID = "srv-9"
		return confirmed, nil
	}
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.SendMessage(context.Background(), types.Draft{Text: "retry me"})

	got := ctrl.View().Messages
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Status != types.StatusFailed {
		t.Fatalf("status = %s, want failed", got[0].Status)
	}
	if got[0].Text != "retry me" {
		t.Errorf("failed message lost its content: %q", got[0].Text)
	}

	fail = false
	ctrl.RetrySendMessage(context.Background(), got[0])

	got = ctrl.View().Messages
	if len(got) != 1 {
		t.Fatalf("after retry len = %d, want 1", len(got))
	}
	if got[0].Status != types.StatusReceived || got[0].ID != "srv-9" {
		t.Errorf("after retry = %s/%s, want srv-9/received", got[0].ID, got[0].Status)
	}
	if got[0].Text != "retry me" {
		t.Errorf("retry changed content: %q", got[0].Text)
	}
}

func TestRetryIgnoresNonFailedMessages(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 1)
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.RetrySendMessage(context.Background(), ctrl.View().Messages[0])
	if f.sendCalls != 0 {
		t.Errorf("sendCalls = %d, want 0 for received message", f.sendCalls)
	}
}

func TestSendPurgesEarlierFailures(t *testing.T) {
	f := newFakeHandle()
	fail := true
	f.sendFn = func(msg types.Message) (types.Message, error) {
		if fail {
			return types.Message{}, errors.New("boom")
		}
		return msg, nil
	}
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.SendMessage(context.Background(), types.Draft{Text: "first"})
	fail = false
	ctrl.SendMessage(context.Background(), types.Draft{Text: "second"})

	got := ctrl.View().Messages
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (stale failure purged)", len(got))
	}
	if got[0].Text != "second" || got[0].Status != types.StatusReceived {
		t.Errorf("got %q/%s, want second/received", got[0].Text, got[0].Status)
	}
}

func TestSendUsesOverride(t *testing.T) {
	f := newFakeHandle()
	overridden := 0
	ctrl := newTestController(f, Options{
		UserID: "me",
		DoSendMessage: func(ctx context.Context, msg types.Message) (types.Message, error) {
			overridden++
			return msg, nil
		},
	})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctrl.SendMessage(context.Background(), types.Draft{Text: "via override"})
	if overridden != 1 {
		t.Errorf("override calls = %d, want 1", overridden)
	}
	if f.sendCalls != 0 {
		t.Errorf("handle sendCalls = %d, want 0 when overridden", f.sendCalls)
	}
}

func TestUpdateMessageAppliesLocally(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 3)
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	edited := ctrl.View().Messages[1]
	edited.Text = "edited"
	now := time.Now()
	edited.UpdatedAt = &now
	ctrl.UpdateMessage(edited)

	got := ctrl.View().Messages
	if got[1].Text != "edited" {
		t.Errorf("text = %q, want edited", got[1].Text)
	}
	if f.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0 for local apply", f.updateCalls)
	}
}

func TestEditMessageSurfacesBackendError(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("me", 1)
	f.updateFn = func(msg types.Message) (types.Message, error) {
		return types.Message{}, errors.New("forbidden")
	}
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	orig := ctrl.View().Messages[0]
	edited := orig
	edited.Text = "nope"
	if err := ctrl.EditMessage(context.Background(), edited); err == nil {
		t.Fatal("EditMessage returned nil, want error")
	}
	if got := ctrl.View().Messages[0].Text; got != orig.Text {
		t.Errorf("failed edit mutated state: %q", got)
	}
}

func TestRemoveMessage(t *testing.T) {
	f := newFakeHandle()
	f.state.Messages = seq("other", 3)
	ctrl := newTestController(f, Options{UserID: "me"})
	if err := ctrl.Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	victim := ctrl.View().Messages[1]
	ctrl.RemoveMessage(victim)

	for _, m := range ctrl.View().Messages {
		if m.ID == victim.ID {
			t.Errorf("message %s still present after RemoveMessage", m.ID)
		}
	}
}
