package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

// View renders the chat view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	sections := []string{m.renderHeader(), m.viewport.View()}
	if s := m.renderStatusArea(); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, m.renderInput(), m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	line := fmt.Sprintf("%s %s   %s   %s",
		headerStyle.Render(" pitchroom "),
		labelStyle.Render("#"+m.conversation),
		statusDot(m.status),
		dimStyle.Render(FormatCount(len(m.messages))),
	)
	spark := dimStyle.Render("activity ") + createSparkline(activity(m.messages, m.now()))
	return line + "\n" + spark
}

func (m Model) renderMessages() string {
	if m.selectErr != nil {
		return alertStyle.Render("Cannot open conversation: " + m.selectErr.Error())
	}
	if len(m.messages) == 0 {
		return dimStyle.Render("No messages yet. Say hello!")
	}

	now := m.now()
	lines := make([]string, len(m.messages))
	for i, msg := range m.messages {
		lines[i] = m.renderMessage(msg, now)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessage(msg chat.Message, now time.Time) string {
	mark := "  "
	if m.marks.Contains(msg.ID) {
		mark = markStyle.Render("★ ")
	}
	ts := dimStyle.Render(FormatTimestamp(msg.CreatedAt, now))

	if msg.Pending {
		return mark + ts + " " + dimStyle.Render(msg.Author.Name+": "+msg.Content+" …")
	}
	return mark + ts + " " + authorStyle.Render(msg.Author.Name+":") + " " + msg.Content
}

// renderStatusArea renders the alert line, summary spinner and summary box.
func (m Model) renderStatusArea() string {
	var parts []string
	if m.alert != "" {
		parts = append(parts, alertStyle.Render("⚠ "+m.alert))
	}
	if m.generating {
		parts = append(parts, m.spinner.View()+dimStyle.Render(
			fmt.Sprintf(" Summarizing %s...", FormatCount(m.marks.Len()))))
	}
	if m.summary != "" {
		parts = append(parts, summaryStyle.Width(max(m.width-2, 20)).Render(m.summary))
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderInput() string {
	return m.input.View()
}

func (m Model) renderFooter() string {
	var parts []string
	for _, b := range m.keys.footerBindings() {
		h := b.Help()
		parts = append(parts, footerKeyStyle.Render("["+h.Key+"]")+footerStyle.Render(" "+h.Desc))
	}
	if n := m.marks.Len(); n > 0 {
		parts = append(parts, markStyle.Render(fmt.Sprintf("★ %d marked", n)))
	}
	return strings.Join(parts, "  ")
}
