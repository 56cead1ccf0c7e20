package messages

// Turn lifecycle, bridged from the dify client's emit callback.
type StreamStartMsg struct{}

type FragmentMsg struct {
	Text string
}

type TurnDoneMsg struct {
	ConversationID string
}

// ErrorMsg carries the display text for a failed turn.
type ErrorMsg struct {
	Text string
}

// Internal app messages
type AppInfoMsg struct {
	Name string
}
