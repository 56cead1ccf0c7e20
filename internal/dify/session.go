package dify

import "github.com/google/uuid"

// Session carries the state that survives across turns: a stable user id,
// the conversation id for multi-turn chat and any extra input variables the
// app wants merged into each request. It replaces the ambient globals the
// web UIs kept; callers pass it into RunTurn and apply the result afterwards.
type Session struct {
	UserID         string
	ConversationID string
	Inputs         map[string]string
}

// NewSession returns a fresh session with a generated user id.
func NewSession() *Session {
	return &Session{
		UserID: uuid.NewString(),
		Inputs: map[string]string{},
	}
}

// AdoptConversation records the conversation id captured by a completed
// turn. The first non-empty id wins; later values never overwrite it.
func (s *Session) AdoptConversation(id string) {
	if s.ConversationID == "" && id != "" {
		s.ConversationID = id
	}
}

// SetInput adds or replaces an extra input variable.
func (s *Session) SetInput(key, value string) {
	if s.Inputs == nil {
		s.Inputs = map[string]string{}
	}
	s.Inputs[key] = value
}

// Reset drops the conversation so the next turn starts a new exchange.
// The user id and extra inputs are kept.
func (s *Session) Reset() {
	s.ConversationID = ""
}
