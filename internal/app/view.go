package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dify-tui/internal/components/chat"
	"dify-tui/internal/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sections []string

	header := styles.Header.Render(m.appName)
	sections = append(sections, header)

	chatView := m.chat.View()
	if m.chat.IsEmpty() {
		welcomeStyle := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Width(m.width).
			Align(lipgloss.Center).
			Padding(2, 0)
		chatView = welcomeStyle.Render(chat.WelcomeText)
	}
	sections = append(sections, chatView)

	if m.state == StateStreaming {
		disabledInput := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Italic(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.Muted).
			Padding(0, 1).
			Width(m.width - 2).
			Render("Waiting for response...")
		sections = append(sections, disabledInput)
	} else {
		sections = append(sections, m.input.View())
	}

	sections = append(sections, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatusBar renders the status bar at the bottom
func (m Model) renderStatusBar() string {
	var status string
	var statusStyle lipgloss.Style

	switch {
	case !m.cfg.HasAPIKey:
		status = "No API key configured (set DIFY_API_KEY)"
		statusStyle = styles.StatusBarWarning
	case m.state == StateStreaming:
		status = "Streaming..."
		statusStyle = styles.StatusBarStreaming
	case m.errText != "":
		status = fmt.Sprintf("Turn failed: %s", strings.TrimSpace(m.errText))
		statusStyle = styles.StatusBarError
	default:
		status = statusLine(m.cfg)
		statusStyle = styles.StatusBar
	}

	left := statusStyle.Render(status)
	help := styles.StatusBar.Render("Enter: send • Ctrl+L: new conversation • Ctrl+C: quit")

	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(help)
	spacerWidth := m.width - leftWidth - rightWidth - 2
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	spacer := strings.Repeat(" ", spacerWidth)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, spacer, help)
}

func statusLine(cfg Config) string {
	mode := string(cfg.Options.Mode)
	transfer := "blocking"
	if cfg.Options.Streaming {
		transfer = "streaming"
	}
	if cfg.Session != nil && cfg.Session.ConversationID != "" {
		return fmt.Sprintf("%s • %s • conversation %s", mode, transfer, cfg.Session.ConversationID)
	}
	return fmt.Sprintf("%s • %s", mode, transfer)
}
