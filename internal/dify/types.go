package dify

import "fmt"

// AppMode selects which kind of Dify application a turn talks to.
type AppMode string

const (
	// ModeChat sends conversational turns carrying a free-text query and an
	// optional conversation id for multi-turn memory.
	ModeChat AppMode = "chat"
	// ModeWorkflow sends single-shot task runs with every parameter folded
	// into the inputs mapping.
	ModeWorkflow AppMode = "workflow"
)

// ParseMode converts a user-supplied mode name.
func ParseMode(s string) (AppMode, error) {
	switch AppMode(s) {
	case ModeChat, ModeWorkflow:
		return AppMode(s), nil
	}
	return "", fmt.Errorf("unknown app mode %q (want %q or %q)", s, ModeChat, ModeWorkflow)
}

// Response transfer modes understood by the API.
const (
	responseModeStreaming = "streaming"
	responseModeBlocking  = "blocking"
)

// chatRequest is the body for POST /chat-messages.
type chatRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	User           string            `json:"user"`
	ConversationID string            `json:"conversation_id,omitempty"`
}

// workflowRequest is the body for POST /workflows/run. The query travels
// inside Inputs; workflows have no conversation memory.
type workflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

// TurnOptions configures a single turn.
type TurnOptions struct {
	Mode      AppMode
	Streaming bool
	// Verbose surfaces workflow/node progress lines in the display text.
	Verbose bool
}

// Turn is the outcome of one completed turn. ConversationID is non-empty
// only when the server assigned or confirmed one; the caller decides whether
// to adopt it into the session.
type Turn struct {
	Text           string
	ConversationID string
}

// AppInfo describes the published application, from GET /info.
type AppInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
