package dify_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"dify-tui/internal/dify"
)

// testServer is a scripted Dify-shaped backend. Streaming responses serve
// the configured lines; blocking responses serve the configured JSON body.
// Every chat/workflow request is captured for inspection.
type testServer struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []capturedRequest

	stream   []string
	blocking string
	status   int
}

type capturedRequest struct {
	path   string
	auth   string
	accept string
	body   []byte
}

func newTestServer() *testServer {
	ts := &testServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat-messages", ts.handleRun)
	mux.HandleFunc("/workflows/run", ts.handleRun)
	mux.HandleFunc("/info", ts.handleInfo)

	ts.server = httptest.NewServer(mux)
	return ts
}

func (ts *testServer) Close()      { ts.server.Close() }
func (ts *testServer) URL() string { return ts.server.URL }

func (ts *testServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, _ := io.ReadAll(r.Body)

	ts.mu.Lock()
	ts.requests = append(ts.requests, capturedRequest{
		path:   r.URL.Path,
		auth:   r.Header.Get("Authorization"),
		accept: r.Header.Get("Accept"),
		body:   body,
	})
	status, stream, blocking := ts.status, ts.stream, ts.blocking
	ts.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "request rejected", status)
		return
	}

	if gjson.GetBytes(body, "response_mode").String() == "streaming" {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range stream {
			fmt.Fprintf(w, "%s\n\n", line)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, blocking)
}

func (ts *testServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"name":"Test App","description":"scripted backend","tags":["test"]}`)
}

func (ts *testServer) lastRequest(t *testing.T) capturedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(t, ts.requests)
	return ts.requests[len(ts.requests)-1]
}

func (ts *testServer) requestCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.requests)
}

func TestStreamingChatTurn(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.stream = []string{
		"event: ping",
		`data: {"event":"message","answer":"Hello"}`,
		`data: {"event":"message","answer":", world"}`,
		`data: {"event":"message_end","conversation_id":"conv-1"}`,
	}

	client := dify.NewClient(srv.URL(), "test-key")
	sess := dify.NewSession()

	var fragments []string
	turn, err := client.RunTurn(context.Background(), "greet me", sess,
		dify.TurnOptions{Mode: dify.ModeChat, Streaming: true},
		func(s string) { fragments = append(fragments, s) },
	)
	require.NoError(t, err)

	assert.Equal(t, "Hello, world", turn.Text)
	assert.Equal(t, "conv-1", turn.ConversationID)
	assert.Equal(t, []string{"Hello", ", world"}, fragments)

	req := srv.lastRequest(t)
	assert.Equal(t, "/chat-messages", req.path)
	assert.Equal(t, "Bearer test-key", req.auth)
	assert.Equal(t, "text/event-stream", req.accept)
	assert.Equal(t, "greet me", gjson.GetBytes(req.body, "query").String())
	assert.Equal(t, "streaming", gjson.GetBytes(req.body, "response_mode").String())
	assert.Equal(t, sess.UserID, gjson.GetBytes(req.body, "user").String())
	assert.False(t, gjson.GetBytes(req.body, "conversation_id").Exists(),
		"first turn must not send a conversation id")
}

func TestConversationContinuesAcrossTurns(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.stream = []string{
		`data: {"event":"message","answer":"hi"}`,
		`data: {"event":"message_end","conversation_id":"conv-1"}`,
	}

	client := dify.NewClient(srv.URL(), "test-key")
	sess := dify.NewSession()
	opts := dify.TurnOptions{Mode: dify.ModeChat, Streaming: true}

	turn, err := client.RunTurn(context.Background(), "first", sess, opts, nil)
	require.NoError(t, err)
	sess.AdoptConversation(turn.ConversationID)

	_, err = client.RunTurn(context.Background(), "second", sess, opts, nil)
	require.NoError(t, err)

	req := srv.lastRequest(t)
	assert.Equal(t, "conv-1", gjson.GetBytes(req.body, "conversation_id").String())
}

func TestStreamingWorkflowTurn(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.stream = []string{
		`data: {"event":"workflow_started"}`,
		`data: {"event":"node_started","data":{"title":"LLM"}}`,
		`data: {"event":"text_chunk","data":{"text":"let me "}}`,
		`data: {"event":"text_chunk","data":{"text":"think"}}`,
		`data: {"event":"workflow_finished","data":{"outputs":{"text":"ignored, already streamed"}}}`,
	}

	client := dify.NewClient(srv.URL(), "test-key")
	sess := dify.NewSession()
	sess.SetInput("language", "English")

	turn, err := client.RunTurn(context.Background(), "summarize", sess,
		dify.TurnOptions{Mode: dify.ModeWorkflow, Streaming: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, "let me think", turn.Text)
	assert.Empty(t, turn.ConversationID)

	req := srv.lastRequest(t)
	assert.Equal(t, "/workflows/run", req.path)
	assert.Equal(t, "summarize", gjson.GetBytes(req.body, "inputs.query").String())
	assert.Equal(t, "English", gjson.GetBytes(req.body, "inputs.language").String())
	assert.False(t, gjson.GetBytes(req.body, "query").Exists(),
		"workflow turns fold the query into inputs")
	assert.False(t, gjson.GetBytes(req.body, "conversation_id").Exists())
}

func TestBlockingChatTurn(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.blocking = `{"answer":"4","conversation_id":"conv-9"}`

	client := dify.NewClient(srv.URL(), "test-key")

	var fragments []string
	turn, err := client.RunTurn(context.Background(), "2+2?", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeChat},
		func(s string) { fragments = append(fragments, s) },
	)
	require.NoError(t, err)

	assert.Equal(t, "4", turn.Text)
	assert.Equal(t, "conv-9", turn.ConversationID)
	assert.Equal(t, []string{"4"}, fragments, "blocking mode emits once")

	req := srv.lastRequest(t)
	assert.Equal(t, "blocking", gjson.GetBytes(req.body, "response_mode").String())
	assert.Equal(t, "application/json", req.accept)
}

func TestBlockingWorkflowTurn(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.blocking = `{"data":{"outputs":{"text":"done"}}}`

	client := dify.NewClient(srv.URL(), "test-key")
	turn, err := client.RunTurn(context.Background(), "run", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeWorkflow}, nil)
	require.NoError(t, err)

	assert.Equal(t, "done", turn.Text)
}

func TestBlockingWorkflowDumpFallback(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.blocking = `{"data":{"outputs":{"score":42}}}`

	client := dify.NewClient(srv.URL(), "test-key")
	turn, err := client.RunTurn(context.Background(), "run", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeWorkflow}, nil)
	require.NoError(t, err)

	assert.Contains(t, turn.Text, "score")
	assert.Contains(t, turn.Text, "42")
}

func TestBlockingWorkflowNoOutputs(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.blocking = `{"data":{"outputs":{}}}`

	client := dify.NewClient(srv.URL(), "test-key")
	turn, err := client.RunTurn(context.Background(), "run", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeWorkflow}, nil)
	require.NoError(t, err)

	assert.Equal(t, dify.NoWorkflowOutput, turn.Text)
}

func TestErrorEventStopsStream(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.stream = []string{
		`data: {"event":"message","answer":"partial "}`,
		`data: {"event":"error","message":"quota exceeded"}`,
		`data: {"event":"message","answer":"never rendered"}`,
	}

	client := dify.NewClient(srv.URL(), "test-key")
	turn, err := client.RunTurn(context.Background(), "hi", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeChat, Streaming: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, "partial \n\nError: quota exceeded", turn.Text)
	assert.NotContains(t, turn.Text, "never rendered")
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.stream = []string{
		"data: not-json",
		`data: {"event":"message","answer":"hi"}`,
	}

	client := dify.NewClient(srv.URL(), "test-key")
	turn, err := client.RunTurn(context.Background(), "hi", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeChat, Streaming: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, "hi", turn.Text)
}

func TestHTTPErrorSurfaced(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	srv.status = http.StatusUnauthorized

	client := dify.NewClient(srv.URL(), "bad-key")
	_, err := client.RunTurn(context.Background(), "hi", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeChat, Streaming: true}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Contains(t, dify.ErrorText(err), "Error: ")
}

func TestMissingAPIKeyFailsBeforeAnyRequest(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client := dify.NewClient(srv.URL(), "")
	_, err := client.RunTurn(context.Background(), "hi", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeChat}, nil)

	require.ErrorIs(t, err, dify.ErrNoAPIKey)
	assert.Equal(t, 0, srv.requestCount())
	assert.Equal(t, "API key not configured.", dify.ErrorText(err))
}

func TestTransportErrorSurfaced(t *testing.T) {
	// Point at a closed server so the dial fails.
	srv := newTestServer()
	url := srv.URL()
	srv.Close()

	client := dify.NewClient(url, "test-key")
	_, err := client.RunTurn(context.Background(), "hi", dify.NewSession(),
		dify.TurnOptions{Mode: dify.ModeChat}, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, dify.ErrNoAPIKey)
}

func TestInfo(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client := dify.NewClient(srv.URL(), "test-key")
	info, err := client.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Test App", info.Name)
	assert.Equal(t, []string{"test"}, info.Tags)
}
