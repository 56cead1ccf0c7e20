// Package mock serves a scripted Dify-shaped backend so the TUI can be
// exercised without credentials or network access.
package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type Server struct {
	port int
}

func NewServer(port int) *Server {
	return &Server{port: port}
}

// Handler returns the HTTP handler, exposed separately so tests can mount
// it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", s.infoHandler)
	mux.HandleFunc("/chat-messages", s.chatHandler)
	mux.HandleFunc("/workflows/run", s.workflowHandler)
	return mux
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("Mock Dify server listening on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":        "Mock Assistant",
		"description": "Scripted responses for local development",
		"tags":        []string{"mock"},
	})
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRun(w, r)
	if !ok {
		return
	}

	query := gjson.GetBytes(req, "query").String()
	conversationID := gjson.GetBytes(req, "conversation_id").String()
	if conversationID == "" {
		conversationID = fmt.Sprintf("mock-conv-%d", time.Now().UnixNano())
	}
	answer := mockAnswer(query)

	if gjson.GetBytes(req, "response_mode").String() != "streaming" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"answer":          answer,
			"conversation_id": conversationID,
		})
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	if strings.Contains(strings.ToLower(query), "error") {
		ev, _ := sjson.Set(`{"event":"error"}`, "message", "scripted failure")
		writeEvent(w, flusher, ev)
		return
	}

	for _, chunk := range chunks(answer, 8) {
		ev, _ := sjson.Set(`{"event":"message"}`, "answer", chunk)
		writeEvent(w, flusher, ev)
		time.Sleep(20 * time.Millisecond)
	}

	ev, _ := sjson.Set(`{"event":"message_end"}`, "conversation_id", conversationID)
	writeEvent(w, flusher, ev)
}

func (s *Server) workflowHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRun(w, r)
	if !ok {
		return
	}

	query := gjson.GetBytes(req, "inputs.query").String()
	answer := mockAnswer(query)

	if gjson.GetBytes(req, "response_mode").String() != "streaming" {
		body, _ := sjson.Set("", "data.outputs.text", answer)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, body)
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	writeEvent(w, flusher, `{"event":"workflow_started"}`)

	for _, title := range []string{"Start", "Knowledge Retrieval", "LLM"} {
		ev, _ := sjson.Set(`{"event":"node_started"}`, "data.title", title)
		writeEvent(w, flusher, ev)
		time.Sleep(50 * time.Millisecond)
	}

	for _, chunk := range chunks(answer, 8) {
		ev, _ := sjson.Set(`{"event":"text_chunk"}`, "data.text", chunk)
		writeEvent(w, flusher, ev)
		time.Sleep(20 * time.Millisecond)
	}

	ev, _ := sjson.Set(`{"event":"workflow_finished"}`, "data.outputs.text", answer)
	writeEvent(w, flusher, ev)
}

func decodeRun(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil, false
	}

	// Keep-alive frame the client must skip.
	fmt.Fprint(w, "event: ping\n\n")
	flusher.Flush()
	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func mockAnswer(query string) string {
	lower := strings.ToLower(query)

	switch {
	case strings.Contains(lower, "hello"), strings.Contains(lower, "hi"):
		return "Hello! I'm a scripted assistant. Ask me anything and I'll stream back a canned reply so you can watch the transcript update."
	case strings.Contains(lower, "markdown"):
		return "Here is some **markdown**:\n\n- streaming chunks\n- `code spans`\n\n```go\nfmt.Println(\"rendered by glamour\")\n```"
	case strings.Contains(lower, "long"):
		return strings.Repeat("This sentence pads out a longer response to make scrolling worth testing. ", 20)
	}

	return fmt.Sprintf("You said: %q. This is a mock reply; point the client at a real endpoint with an API key for actual answers.", query)
}

// chunks splits s into rune batches so streamed output arrives gradually.
func chunks(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
