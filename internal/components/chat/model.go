package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the scrolling transcript component.
type Model struct {
	viewport viewport.Model
	messages []Message
	width    int
	height   int
}

// New creates a new chat model
func New(width, height int) Model {
	vp := viewport.New(width, height)
	vp.SetContent("")

	return Model{
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Init initializes the chat component
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the chat component
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "pgup":
			m.viewport.ViewUp()
		case "pgdown":
			m.viewport.ViewDown()
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the chat component
func (m Model) View() string {
	return m.viewport.View()
}

// AddUserMessage appends a completed user message.
func (m *Model) AddUserMessage(content string) {
	m.messages = append(m.messages, Message{Role: RoleUser, Content: content})
	m.updateContent()
}

// StartAssistantMessage opens a new assistant message that fragments will
// be appended to while the turn streams.
func (m *Model) StartAssistantMessage() {
	m.messages = append(m.messages, Message{Role: RoleAssistant, IsStreaming: true})
	m.updateContent()
}

// AppendFragment grows the in-flight assistant message. Fragments arriving
// with no message open (blocking mode, late errors) open one first.
func (m *Model) AppendFragment(fragment string) {
	if len(m.messages) == 0 || !m.messages[len(m.messages)-1].IsStreaming {
		m.StartAssistantMessage()
	}
	m.messages[len(m.messages)-1].Content += fragment
	m.updateContent()
}

// EndAssistantMessage marks the current assistant message as complete
func (m *Model) EndAssistantMessage() {
	if len(m.messages) > 0 {
		m.messages[len(m.messages)-1].IsStreaming = false
	}
	m.updateContent()
}

// SetSize updates the chat dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.updateContent()
}

// Clear clears all messages
func (m *Model) Clear() {
	m.messages = nil
	m.viewport.SetContent("")
}

// IsEmpty returns true if there are no messages
func (m Model) IsEmpty() bool {
	return len(m.messages) == 0
}

// LastContent returns the content of the newest message, for tests and the
// status bar.
func (m Model) LastContent() string {
	if len(m.messages) == 0 {
		return ""
	}
	return m.messages[len(m.messages)-1].Content
}

// updateContent rebuilds the viewport content from messages
func (m *Model) updateContent() {
	var content strings.Builder

	for i, msg := range m.messages {
		content.WriteString(msg.Render(m.width))
		if i < len(m.messages)-1 {
			content.WriteString("\n")
		}
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}
