package app

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"dify-tui/internal/components/chat"
	"dify-tui/internal/components/input"
	"dify-tui/internal/dify"
	"dify-tui/internal/messages"
)

// State represents the application state
type State int

const (
	StateIdle State = iota
	StateStreaming
)

// SharedState holds state that needs to be shared between model copies
type SharedState struct {
	mu      sync.Mutex
	program *tea.Program
}

// SetProgram sets the program reference
func (s *SharedState) SetProgram(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = p
}

// GetProgram gets the program reference
func (s *SharedState) GetProgram() *tea.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program
}

// Config wires the client and turn settings into the app.
type Config struct {
	Client  *dify.Client
	Session *dify.Session
	Options dify.TurnOptions
	// HasAPIKey drives the missing-credential warning in the status bar.
	HasAPIKey bool
}

// Model is the main application model
type Model struct {
	chat    chat.Model
	input   input.Model
	cfg     Config
	shared  *SharedState
	state   State
	appName string
	width   int
	height  int
	errText string
	ready   bool
}

// New creates a new application model
func New(cfg Config) Model {
	if cfg.Session == nil {
		cfg.Session = dify.NewSession()
	}
	return Model{
		chat:    chat.New(80, 20),
		input:   input.New(80),
		cfg:     cfg,
		shared:  &SharedState{},
		state:   StateIdle,
		appName: "Dify TUI",
	}
}

// SetProgram sets the tea.Program reference for stream callbacks
func (m *Model) SetProgram(p *tea.Program) {
	m.shared.SetProgram(p)
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Init(),
		m.chat.Init(),
		m.fetchAppInfo(),
	)
}

// fetchAppInfo loads the published app name for the header. Failures are
// silent; the default title stays.
func (m Model) fetchAppInfo() tea.Cmd {
	client := m.cfg.Client
	if client == nil || !m.cfg.HasAPIKey {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		info, err := client.Info(ctx)
		if err != nil || info.Name == "" {
			return nil
		}
		return messages.AppInfoMsg{Name: info.Name}
	}
}
