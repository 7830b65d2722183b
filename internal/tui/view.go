package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
)

// View 渲染对话区与右侧候选人信息面板
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var left strings.Builder
	left.WriteString(titleStyle.Render("TalentScout Hiring Assistant"))
	left.WriteString("\n")
	left.WriteString(m.viewport.View())
	left.WriteString("\n")
	left.WriteString(m.statusLine())
	left.WriteString("\n")
	left.WriteString(m.input.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, left.String(), m.renderPanel())
}

func (m Model) statusLine() string {
	switch {
	case m.busy:
		return statusStyle.Render(m.spinner.View() + " Thinking...")
	case m.err != nil:
		return errorStyle.Render(errorNotice(m.err))
	case m.notice != "":
		return statusStyle.Render(m.notice)
	default:
		return statusStyle.Render("Say bye, quit or exit to finish. Esc leaves.")
	}
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.session.Messages {
		m.writeMessage(&sb, msg.Role, msg.Content)
	}
	if m.pending != "" {
		m.writeMessage(&sb, chat.RoleUser, m.pending)
	}
	return sb.String()
}

func (m Model) writeMessage(sb *strings.Builder, role chat.Role, content string) {
	if role == chat.RoleUser {
		sb.WriteString(userLabelStyle.Render("You"))
		sb.WriteString("\n")
		sb.WriteString(content)
		sb.WriteString("\n\n")
		return
	}

	sb.WriteString(assistantLabelStyle.Render("Assistant"))
	sb.WriteString("\n")
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			sb.WriteString(strings.Trim(rendered, "\n"))
			sb.WriteString("\n\n")
			return
		}
	}
	sb.WriteString(content)
	sb.WriteString("\n\n")
}

func (m Model) renderPanel() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Candidate"))
	for _, row := range m.session.Candidate.Snapshot() {
		sb.WriteString("\n")
		sb.WriteString(fieldNameStyle.Render(row.Field))
		sb.WriteString("\n")
		if row.Set {
			sb.WriteString(row.Value)
		} else {
			sb.WriteString(fieldUnsetStyle.Render(row.Value))
		}
	}

	height := m.height - 2
	if height < 0 {
		height = 0
	}
	return panelStyle.Width(panelWidth - 4).Height(height).Render(sb.String())
}
