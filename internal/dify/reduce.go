package dify

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// outputKeys is the fixed probe order for workflow output mappings.
var outputKeys = [...]string{"text", "output", "result", "answer"}

// Sentinels emitted when a turn produced no display text at all.
const (
	NoOutput         = "No output received."
	NoWorkflowOutput = "No output received from workflow."
)

// errorPrefix introduces the terminal error annotation appended to the
// transcript when the server reports an application error.
const errorPrefix = "\n\nError: "

// EmitFunc receives each display fragment as soon as it is reduced.
type EmitFunc func(fragment string)

// Reducer folds a sequence of stream events into display text and a small
// amount of session state. One Reducer serves exactly one request; it is not
// safe for concurrent use and is discarded when the stream ends.
type Reducer struct {
	verbose bool
	emit    EmitFunc

	text           strings.Builder
	emitted        bool
	halted         bool
	conversationID string
}

// NewReducer returns a reducer for one streamed response. emit may be nil
// when the caller only wants the final concatenation. With verbose set,
// workflow and node progress lines are surfaced as well; they never count
// as real output.
func NewReducer(verbose bool, emit EmitFunc) *Reducer {
	return &Reducer{verbose: verbose, emit: emit}
}

// Apply folds one event into the reduction. It reports whether the caller
// should stop consuming the stream (after a terminal error event).
func (r *Reducer) Apply(ev *StreamEvent) (stop bool) {
	switch ev.Kind {
	case EventMessage, EventAgentMessage:
		if s := ev.get("answer"); s != "" {
			r.push(s)
		}

	case EventTextChunk:
		s := ev.get("data.text")
		if s == "" {
			s = ev.get("data.delta")
		}
		if s != "" {
			r.push(s)
		}

	case EventNodeFinished:
		if s := firstOutput(ev.Raw); s != "" {
			r.push(s)
		}

	case EventWorkflowFinished:
		if r.emitted {
			break
		}
		s := firstOutput(ev.Raw)
		if s == "" {
			s = dumpOutputs(ev.Raw)
		}
		if s != "" {
			r.push(s)
		}

	case EventMessageEnd:
		// First value wins; later message_end events never overwrite it.
		if r.conversationID == "" {
			r.conversationID = ev.get("conversation_id")
		}

	case EventWorkflowStarted:
		if r.verbose {
			r.progress("Workflow started...\n\n")
		}

	case EventNodeStarted:
		if r.verbose {
			title := ev.get("data.title")
			if title == "" {
				title = "Processing"
			}
			r.progress(title + "...\n")
		}

	case EventError:
		msg := ev.get("message")
		if msg == "" {
			msg = "Unknown error"
		}
		r.push(errorPrefix + msg)
		r.halted = true
		return true
	}

	// Unknown kinds are a deliberate no-op so new server event types never
	// abort a reduction.
	return false
}

// Finalize closes the reduction after the stream is exhausted, emitting the
// mode's no-output sentinel when nothing was ever produced. A reduction that
// halted on an error event already carries terminal text and is left alone.
func (r *Reducer) Finalize(mode AppMode) {
	if r.emitted || r.halted {
		return
	}
	if mode == ModeWorkflow {
		r.push(NoWorkflowOutput)
		return
	}
	r.push(NoOutput)
}

// Text returns the concatenation of everything emitted so far.
func (r *Reducer) Text() string { return r.text.String() }

// ConversationID returns the captured conversation id, or "".
func (r *Reducer) ConversationID() string { return r.conversationID }

// Emitted reports whether any display text was produced.
func (r *Reducer) Emitted() bool { return r.emitted }

func (r *Reducer) push(s string) {
	r.emitted = true
	r.text.WriteString(s)
	if r.emit != nil {
		r.emit(s)
	}
}

// progress surfaces a diagnostic fragment without marking the reduction as
// having produced output, so the no-output fallbacks still fire.
func (r *Reducer) progress(s string) {
	r.text.WriteString(s)
	if r.emit != nil {
		r.emit(s)
	}
}

// firstOutput probes data.outputs for the first non-empty well-known key.
func firstOutput(raw []byte) string {
	for _, key := range outputKeys {
		if v := gjson.GetBytes(raw, "data.outputs."+key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// dumpOutputs pretty-prints the whole outputs mapping, used as the last
// resort when none of the well-known keys carried text. An absent or empty
// mapping yields "" so the caller can fall through to the sentinel.
func dumpOutputs(raw []byte) string {
	outputs := gjson.GetBytes(raw, "data.outputs")
	if !outputs.IsObject() || len(outputs.Map()) == 0 {
		return ""
	}
	return strings.TrimSpace(string(pretty.Pretty([]byte(outputs.Raw))))
}
