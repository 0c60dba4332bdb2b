// Package chat renders the synchronized channel view in a terminal UI. It
// is a pure reader of channel.View: every mutation goes through a
// Controller action.
package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatloom/loom/internal/channel"
	"github.com/chatloom/loom/internal/types"
)

// Options configure the chat UI.
type Options struct {
	Handle      channel.Handle
	UserID      string
	ChannelName string
	Logger      *log.Logger
	Notify      bool
}

// syncMsg carries a fresh view from the synchronization core into the
// bubbletea loop.
type syncMsg struct {
	view channel.View
}

// watchDoneMsg reports the initial watch outcome.
type watchDoneMsg struct {
	err error
}

// Run starts the chat UI and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	model := newModel(opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())

	ctrl, err := channel.NewController(opts.Handle, channel.Options{
		UserID: opts.UserID,
		Logger: opts.Logger,
		OnChange: func(v channel.View) {
			program.Send(syncMsg{view: v})
		},
		OnBackgroundMessage: func(msg types.Message) {
			if opts.Notify {
				notifyNewMessage(opts.ChannelName, msg)
			}
		},
	})
	if err != nil {
		return err
	}
	model.ctrl = ctrl
	model.watchCtx = ctx
	defer ctrl.Close()

	fmt.Printf("\033]0;loom · %s\007", opts.ChannelName)

	_, err = program.Run()
	return err
}

// Model implements the chat UI.
type Model struct {
	ctrl        *channel.Controller
	watchCtx    context.Context
	userID      string
	channelName string
	notify      bool

	view     channel.View
	viewport viewport.Model
	input    textarea.Model
	width    int
	height   int
	status   string
	focused  bool
	ready    bool

	colorMap map[string]string

	// Non-empty while the input is editing an existing message.
	editingID string
}

func newModel(opts Options) *Model {
	input := textarea.New()
	input.Placeholder = "Message " + opts.ChannelName
	input.Prompt = "┃ "
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	return &Model{
		userID:      opts.UserID,
		channelName: opts.ChannelName,
		notify:      opts.Notify,
		viewport:    viewport.New(0, 0),
		input:       input,
		focused:     true,
		colorMap:    map[string]string{},
	}
}

// Init issues the initial watch.
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg {
		return watchDoneMsg{err: m.ctrl.Watch(m.watchCtx)}
	}
}
