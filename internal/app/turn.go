package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"dify-tui/internal/dify"
	"dify-tui/internal/messages"
)

// runTurn performs one turn off the UI goroutine. Each emitted fragment is
// sent through the program so the transcript redraws before the next line
// of the stream is consumed.
func runTurn(client *dify.Client, query string, sess *dify.Session, opts dify.TurnOptions, p *tea.Program) tea.Cmd {
	return func() tea.Msg {
		p.Send(messages.StreamStartMsg{})

		turn, err := client.RunTurn(context.Background(), query, sess, opts,
			func(fragment string) {
				p.Send(messages.FragmentMsg{Text: fragment})
			},
		)
		if err != nil {
			return messages.ErrorMsg{Text: dify.ErrorText(err)}
		}

		return messages.TurnDoneMsg{ConversationID: turn.ConversationID}
	}
}
