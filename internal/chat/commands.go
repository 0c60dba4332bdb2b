package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatloom/loom/internal/types"
)

// runCommand handles slash commands typed into the input.
//
//	/thread [n]   open a thread on the nth most recent message (default 1)
//	/close        close the open thread
//	/retry        retry the most recent failed message
//	/edit [n]     edit the nth most recent own message (default 1)
//	/delete [n]   remove the nth most recent own message
//	/quit         exit
func (m *Model) runCommand(text string) tea.Cmd {
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/q":
		return tea.Quit

	case "/close":
		m.ctrl.CloseThread()
		return nil

	case "/thread", "/t":
		msg, ok := m.nthRecent(parseIndex(args), func(types.Message) bool { return true })
		if !ok {
			m.status = "no such message"
			return nil
		}
		m.ctrl.OpenThread(msg)
		return nil

	case "/retry":
		msg, ok := m.lastFailed()
		if !ok {
			m.status = "nothing to retry"
			return nil
		}
		go m.ctrl.RetrySendMessage(context.Background(), msg)
		return nil

	case "/edit", "/e":
		msg, ok := m.nthRecent(parseIndex(args), m.ownMessage)
		if !ok {
			m.status = "no own message to edit"
			return nil
		}
		m.editingID = msg.ID
		m.input.SetValue(msg.Text)
		m.status = "editing; enter to save, esc to cancel"
		return nil

	case "/delete", "/d":
		msg, ok := m.nthRecent(parseIndex(args), m.ownMessage)
		if !ok {
			m.status = "no own message to delete"
			return nil
		}
		m.ctrl.RemoveMessage(msg)
		return nil
	}

	m.status = fmt.Sprintf("unknown command %s", cmd)
	return nil
}

func parseIndex(args []string) int {
	if len(args) == 0 {
		return 1
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// nthRecent walks the visible sequence newest-first and returns the nth
// message accepted by the filter.
func (m *Model) nthRecent(n int, accept func(types.Message) bool) (types.Message, bool) {
	msgs := m.view.Messages
	if m.view.Thread != nil {
		msgs = m.view.ThreadMessages
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if !accept(msgs[i]) {
			continue
		}
		n--
		if n == 0 {
			return msgs[i], true
		}
	}
	return types.Message{}, false
}

func (m *Model) ownMessage(msg types.Message) bool {
	return msg.User != nil && msg.User.ID == m.userID
}

func (m *Model) lastFailed() (types.Message, bool) {
	return m.nthRecent(1, func(msg types.Message) bool {
		return msg.Status == types.StatusFailed
	})
}
