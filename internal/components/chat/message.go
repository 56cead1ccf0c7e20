package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"dify-tui/internal/styles"
)

// Role represents who sent the message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one transcript entry
type Message struct {
	Role        Role
	Content     string
	IsStreaming bool
}

// Render renders a message with the given width
func (m Message) Render(width int) string {
	var sb strings.Builder

	switch m.Role {
	case RoleUser:
		sb.WriteString(styles.UserLabel.Render("You"))
	case RoleAssistant:
		sb.WriteString(styles.AssistantLabel.Render("Assistant"))
	}
	sb.WriteString("\n")

	content := m.Content
	if m.Role == RoleAssistant && content != "" && !m.IsStreaming {
		// Markdown only once the message is complete; re-rendering on every
		// streamed fragment makes partial code fences flicker.
		if rendered, err := renderMarkdown(content, width-4); err == nil {
			content = strings.TrimSpace(rendered)
		}
	}

	if m.IsStreaming {
		content += styles.StreamingCursor.Render("▊")
	}

	switch m.Role {
	case RoleUser:
		sb.WriteString(styles.UserMessage.Width(width - 2).Render(content))
	case RoleAssistant:
		sb.WriteString(styles.AssistantMessage.Width(width - 2).Render(content))
	}

	return sb.String()
}

// renderMarkdown renders markdown content for the terminal
func renderMarkdown(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}
	return r.Render(content)
}
