package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/chatloom/loom/internal/types"
)

var authorPalette = []string{"111", "157", "216", "36", "183", "230"}

// assignColors gives each author a stable palette color in order of first
// appearance in the current view.
func (m *Model) assignColors() {
	for _, msg := range m.view.Messages {
		if msg.User == nil {
			continue
		}
		if _, ok := m.colorMap[msg.User.ID]; ok {
			continue
		}
		m.colorMap[msg.User.ID] = authorPalette[len(m.colorMap)%len(authorPalette)]
	}
}

func (m *Model) authorStyle(msg types.Message) lipgloss.Style {
	if msg.User == nil {
		return dimStyle
	}
	color, ok := m.colorMap[msg.User.ID]
	if !ok {
		return dimStyle
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	if msg.User.ID == m.userID {
		style = style.Bold(true)
	}
	return style
}
