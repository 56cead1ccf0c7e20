package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"dify-tui/internal/messages"
)

// Update handles all application messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Reserve space for: header (1), input (5), status bar (1), padding (2)
		chatHeight := msg.Height - 9
		if chatHeight < 5 {
			chatHeight = 5
		}

		m.chat.SetSize(msg.Width, chatHeight)
		m.input.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if m.state == StateIdle && m.input.Value() != "" {
				return m.sendMessage()
			}
			// Swallow enter otherwise; the input is single-message.
			return m, nil

		case "ctrl+l":
			// New conversation: drop the transcript and the conversation id,
			// keep the user identity and extra inputs.
			m.chat.Clear()
			m.cfg.Session.Reset()
			m.errText = ""
			m.state = StateIdle
			return m, nil
		}

	case messages.StreamStartMsg:
		m.state = StateStreaming
		m.chat.StartAssistantMessage()
		return m, nil

	case messages.FragmentMsg:
		m.chat.AppendFragment(msg.Text)
		return m, nil

	case messages.TurnDoneMsg:
		// Session state changes only after the turn fully completed.
		m.cfg.Session.AdoptConversation(msg.ConversationID)
		m.chat.EndAssistantMessage()
		m.state = StateIdle
		return m, m.input.Focus()

	case messages.ErrorMsg:
		// The failed exchange ends with the error visible in the transcript;
		// the session is untouched and the next turn can be attempted.
		m.chat.AppendFragment(msg.Text)
		m.chat.EndAssistantMessage()
		m.errText = msg.Text
		m.state = StateIdle
		return m, m.input.Focus()

	case messages.AppInfoMsg:
		m.appName = msg.Name
		return m, nil
	}

	// Update child components when not streaming
	if m.state != StateStreaming {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Always allow chat scrolling
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// sendMessage sends the current input as one turn
func (m Model) sendMessage() (tea.Model, tea.Cmd) {
	query := m.input.Value()

	m.chat.AddUserMessage(query)
	m.input.Clear()
	m.input.Blur()
	m.errText = ""

	p := m.shared.GetProgram()
	return m, runTurn(m.cfg.Client, query, m.cfg.Session, m.cfg.Options, p)
}
