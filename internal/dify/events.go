package dify

import (
	"strings"

	"github.com/tidwall/gjson"
)

// EventKind identifies a stream event type on the wire.
type EventKind string

const (
	EventMessage          EventKind = "message"
	EventAgentMessage     EventKind = "agent_message"
	EventMessageEnd       EventKind = "message_end"
	EventWorkflowStarted  EventKind = "workflow_started"
	EventNodeStarted      EventKind = "node_started"
	EventNodeFinished     EventKind = "node_finished"
	EventTextChunk        EventKind = "text_chunk"
	EventWorkflowFinished EventKind = "workflow_finished"
	EventError            EventKind = "error"
	EventUnknown          EventKind = "unknown"
)

var knownKinds = map[EventKind]bool{
	EventMessage:          true,
	EventAgentMessage:     true,
	EventMessageEnd:       true,
	EventWorkflowStarted:  true,
	EventNodeStarted:      true,
	EventNodeFinished:     true,
	EventTextChunk:        true,
	EventWorkflowFinished: true,
	EventError:            true,
}

// dataPrefix marks a data frame in the event stream. Lines without it
// (keep-alive pings, comments, blanks) are not data frames.
const dataPrefix = "data:"

// StreamEvent is one decoded record from the response stream.
type StreamEvent struct {
	Kind EventKind
	Raw  []byte // decoded JSON body of the event
}

// DecodeLine turns one raw line of the response stream into a StreamEvent.
// It returns false for blank lines, non-data framing lines and lines whose
// payload is not valid JSON; all of those are skipped without error.
func DecodeLine(line string) (*StreamEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return nil, false
	}

	// Strip exactly the matched prefix plus surrounding whitespace, never a
	// fixed byte offset.
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" || !gjson.Valid(payload) {
		return nil, false
	}

	kind := EventKind(gjson.Get(payload, "event").String())
	switch {
	case kind == "text":
		// Older servers emit "text" for chunk deltas.
		kind = EventTextChunk
	case !knownKinds[kind]:
		kind = EventUnknown
	}

	return &StreamEvent{Kind: kind, Raw: []byte(payload)}, true
}

// get returns the string value at a gjson path within the event payload,
// or "" when the path is absent.
func (e *StreamEvent) get(path string) string {
	v := gjson.GetBytes(e.Raw, path)
	if !v.Exists() {
		return ""
	}
	return v.String()
}
