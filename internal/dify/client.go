// Package dify implements a client for Dify-compatible chat and workflow
// HTTP APIs. It sends one POST per user turn, in blocking or streaming
// transfer mode, and reduces the response to display text.
//
// Example usage:
//
//	client := dify.NewClient("https://api.dify.ai/v1", apiKey)
//	sess := dify.NewSession()
//
//	turn, err := client.RunTurn(ctx, "Hello!", sess, dify.TurnOptions{
//	    Mode:      dify.ModeChat,
//	    Streaming: true,
//	}, func(fragment string) {
//	    fmt.Print(fragment)
//	})
//	if err == nil {
//	    sess.AdoptConversation(turn.ConversationID)
//	}
package dify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	chatMessagesPath = "/chat-messages"
	workflowRunPath  = "/workflows/run"
	infoPath         = "/info"

	// defaultTimeout bounds a whole turn, including reading a streamed body.
	defaultTimeout = 120 * time.Second
)

// ErrNoAPIKey is returned before any network call when the client has no
// credential configured.
var ErrNoAPIKey = errors.New("dify: api key not configured")

// Client talks to one Dify-compatible API endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-turn timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(l *Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RunTurn performs one user turn: build the request for the session's mode,
// dispatch it, and reduce the response to display text. emit, when non-nil,
// receives each fragment as it arrives so the caller can redraw
// incrementally; the returned Turn always carries the full concatenation.
//
// The session is read but never written; callers adopt the returned
// conversation id after the turn completes, so a failed turn cannot corrupt
// session state.
func (c *Client) RunTurn(ctx context.Context, query string, sess *Session, opts TurnOptions, emit EmitFunc) (*Turn, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if sess == nil {
		sess = NewSession()
	}
	if opts.Mode == "" {
		opts.Mode = ModeChat
	}

	responseMode := responseModeBlocking
	if opts.Streaming {
		responseMode = responseModeStreaming
	}

	path, payload := buildRequest(query, sess, opts.Mode, responseMode)

	c.log.Debug("turn started",
		"mode", string(opts.Mode),
		"response_mode", responseMode,
		"conversation_id", sess.ConversationID,
	)

	resp, err := c.post(ctx, path, payload, opts.Streaming)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var turn *Turn
	if opts.Streaming {
		turn, err = c.reduceStream(resp.Body, opts, emit)
	} else {
		turn, err = reduceBlocking(resp.Body, opts.Mode, emit)
	}
	if err != nil {
		return nil, err
	}

	c.log.Info("turn completed",
		"mode", string(opts.Mode),
		"chars", len(turn.Text),
		"conversation_id", turn.ConversationID,
	)
	return turn, nil
}

// Info fetches the published application's metadata.
func (c *Client) Info(ctx context.Context) (*AppInfo, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+infoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info AppInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}

// buildRequest assembles the endpoint path and body for one turn. Chat turns
// carry the query and the conversation id at the top level; workflow turns
// fold everything into inputs and have no conversation memory.
func buildRequest(query string, sess *Session, mode AppMode, responseMode string) (string, any) {
	if mode == ModeWorkflow {
		inputs := make(map[string]string, len(sess.Inputs)+1)
		for k, v := range sess.Inputs {
			inputs[k] = v
		}
		inputs["query"] = query

		return workflowRunPath, workflowRequest{
			Inputs:       inputs,
			ResponseMode: responseMode,
			User:         sess.UserID,
		}
	}

	inputs := sess.Inputs
	if inputs == nil {
		inputs = map[string]string{}
	}
	return chatMessagesPath, chatRequest{
		Inputs:         inputs,
		Query:          query,
		ResponseMode:   responseMode,
		User:           sess.UserID,
		ConversationID: sess.ConversationID,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	return resp, nil
}

// reduceStream consumes the line-oriented body until it is exhausted or an
// error event halts it early.
func (c *Client) reduceStream(body io.Reader, opts TurnOptions, emit EmitFunc) (*Turn, error) {
	red := NewReducer(opts.Verbose, emit)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		ev, ok := DecodeLine(scanner.Text())
		if !ok {
			continue
		}
		if stop := red.Apply(ev); stop {
			c.log.Warn("stream halted by error event")
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	red.Finalize(opts.Mode)
	return &Turn{Text: red.Text(), ConversationID: red.ConversationID()}, nil
}

// reduceBlocking extracts the answer from a single JSON document using the
// same key priority the streaming reducer applies.
func reduceBlocking(body io.Reader, mode AppMode, emit EmitFunc) (*Turn, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid JSON response")
	}

	turn := &Turn{}
	switch mode {
	case ModeWorkflow:
		turn.Text = firstOutput(raw)
		if turn.Text == "" {
			turn.Text = dumpOutputs(raw)
		}
		if turn.Text == "" {
			turn.Text = NoWorkflowOutput
		}
	default:
		turn.Text = gjson.GetBytes(raw, "answer").String()
		if turn.Text == "" {
			turn.Text = NoOutput
		}
		turn.ConversationID = gjson.GetBytes(raw, "conversation_id").String()
	}

	if emit != nil {
		emit(turn.Text)
	}
	return turn, nil
}

// ErrorText renders a turn failure as the single line of display text shown
// in the transcript. Errors end the exchange; they are never retried and
// never raised past the UI.
func ErrorText(err error) string {
	if errors.Is(err, ErrNoAPIKey) {
		return "API key not configured."
	}
	return "Error: " + err.Error()
}
