package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"dify-tui/internal/styles"
)

// Model is the message entry component.
type Model struct {
	textarea textarea.Model
	width    int
}

// New creates a new input model
func New(width int) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(width - 4)
	ta.SetHeight(3)
	ta.Focus()

	return Model{textarea: ta, width: width}
}

// Init initializes the input component
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the input component
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// View renders the input component
func (m Model) View() string {
	return styles.InputBorder.Width(m.width - 2).Render(m.textarea.View())
}

// Value returns the trimmed input text.
func (m Model) Value() string {
	return strings.TrimSpace(m.textarea.Value())
}

// Clear empties the input.
func (m *Model) Clear() {
	m.textarea.Reset()
}

// Focus gives the input keyboard focus.
func (m *Model) Focus() tea.Cmd {
	return m.textarea.Focus()
}

// Blur removes keyboard focus.
func (m *Model) Blur() {
	m.textarea.Blur()
}

// SetWidth updates the input width.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.textarea.SetWidth(width - 4)
}
