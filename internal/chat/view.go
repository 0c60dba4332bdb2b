package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chatloom/loom/internal/types"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	sendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Padding(0, 1)
	threadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
)

// View renders header, message viewport, typing line, input, and status.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	b.WriteString(m.renderTyping())
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := "#" + m.channelName
	if m.view.Thread != nil {
		root := m.view.Thread
		title += threadStyle.Render(fmt.Sprintf(" › thread: %s", truncate(root.Text, 40)))
	}
	parts := []string{headerStyle.Render(title)}
	if m.view.WatcherCount > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d watching", m.view.WatcherCount)))
	}
	if m.view.Unread > 0 {
		parts = append(parts, badgeStyle.Render(fmt.Sprintf("%d new", m.view.Unread)))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderTyping() string {
	users := m.view.TypingUsers(m.userID)
	if len(users) == 0 {
		return ""
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, displayName(u))
	}
	sort.Strings(names)
	verb := "is typing…"
	if len(names) > 1 {
		verb = "are typing…"
	}
	return dimStyle.Render(strings.Join(names, ", ") + " " + verb)
}

func (m *Model) renderStatus() string {
	if m.view.Err != nil {
		return errorStyle.Render("✗ " + m.view.Err.Error())
	}
	if m.status != "" {
		return dimStyle.Render(m.status)
	}
	if m.view.Loading {
		return dimStyle.Render("connecting…")
	}
	if m.view.LoadingMore || m.view.LoadingMoreThread {
		return dimStyle.Render("loading older messages…")
	}
	return ""
}

func (m *Model) resize() {
	chromeHeight := 3 + m.input.Height() // header, typing, status
	vpHeight := m.height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
	m.input.SetWidth(m.width)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessages() string {
	msgs := m.view.Messages
	if m.view.Thread != nil {
		msgs = m.view.ThreadMessages
	}
	lines := make([]string, 0, len(msgs)+1)
	if m.view.Thread != nil {
		lines = append(lines, m.renderMessage(*m.view.Thread), threadStyle.Render(strings.Repeat("─", min(m.width, 40))))
	}
	for _, msg := range msgs {
		lines = append(lines, m.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderMessage(msg types.Message) string {
	author := "?"
	if msg.User != nil {
		author = displayName(*msg.User)
	}
	ts := msg.CreatedAt.Local().Format("15:04")
	head := fmt.Sprintf("%s %s", dimStyle.Render(ts), m.authorStyle(msg).Render(author))

	body := highlightCodeBlocks(msg.Text)
	switch msg.Status {
	case types.StatusSending:
		body = sendingStyle.Render(body + " ⋯")
	case types.StatusFailed:
		body = errorStyle.Render(body + "  ✗ failed, /retry to resend")
	}

	line := head + "  " + body
	if summary := reactionSummary(msg); summary != "" {
		line += "\n" + dimStyle.Render("      "+summary)
	}
	if msg.ReplyCount > 0 && m.view.Thread == nil {
		line += "\n" + threadStyle.Render(fmt.Sprintf("      ↳ %d replies", msg.ReplyCount))
	}
	return line
}

func reactionSummary(msg types.Message) string {
	if len(msg.ReactionCounts) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(msg.ReactionCounts))
	for kind := range msg.ReactionCounts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", kind, msg.ReactionCounts[kind]))
	}
	return strings.Join(parts, "  ")
}

func displayName(u types.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
