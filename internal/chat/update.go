package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatloom/loom/internal/types"
)

// Update routes bubbletea messages: synchronized view updates, focus
// changes, window sizing, and key input.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncMsg:
		m.view = msg.view
		m.assignColors()
		m.refreshViewport()
		return m, nil

	case watchDoneMsg:
		if msg.err != nil {
			m.status = "connection failed: " + msg.err.Error()
		}
		return m, nil

	case tea.FocusMsg:
		m.focused = true
		m.ctrl.SetForeground(true)
		return m, nil

	case tea.BlurMsg:
		m.focused = false
		m.ctrl.SetForeground(false)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.editingID != "" {
			m.editingID = ""
			m.input.Reset()
			m.status = ""
			return m, nil
		}
		if m.view.Thread != nil {
			m.ctrl.CloseThread()
		}
		return m, nil

	case "pgup":
		if m.view.Thread != nil {
			go m.ctrl.LoadMoreThread(context.Background())
		} else {
			go m.ctrl.LoadMore(context.Background())
		}
		return m, nil

	case "enter":
		return m.submit()

	case "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input buffer: a slash command, an edit in progress, or
// a plain message (threaded when a thread is open).
func (m *Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m, m.runCommand(text)
	}

	if m.editingID != "" {
		return m.submitEdit(text)
	}

	draft := types.Draft{Text: text}
	if m.view.Thread != nil {
		draft.ParentID = m.view.Thread.ID
	}
	m.input.Reset()
	// Send blocks on the network; the optimistic entry shows up through
	// OnChange immediately, so run it off the UI goroutine.
	go m.ctrl.SendMessage(context.Background(), draft)
	return m, nil
}

func (m *Model) submitEdit(text string) (tea.Model, tea.Cmd) {
	id := m.editingID
	m.editingID = ""
	m.input.Reset()

	edited, ok := m.findMessage(id)
	if !ok {
		m.status = "message gone"
		return m, nil
	}
	edited.Text = text

	return m, func() tea.Msg {
		if err := m.ctrl.EditMessage(context.Background(), edited); err != nil {
			return statusMsg("edit failed: " + err.Error())
		}
		return statusMsg("")
	}
}

type statusMsg string

func (m *Model) findMessage(id string) (types.Message, bool) {
	for _, msg := range m.view.Messages {
		if msg.ID == id {
			return msg, true
		}
	}
	for _, msg := range m.view.ThreadMessages {
		if msg.ID == id {
			return msg, true
		}
	}
	return types.Message{}, false
}
