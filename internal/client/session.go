package client

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/eternisai/agentic-research/models"
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Progress labels shown to users.
const (
	LabelIdle      = "Idle"
	LabelSearching = "Searching the web..."
	LabelComplete  = "Complete"
	LabelFailed    = "Failed"
)

// minPromptLength mirrors the server rule: trimmed length above 3.
const minPromptLength = 4

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Prompt   string
	State    State
	Progress string
	Result   *models.ResearchResponse
	Error    string
}

// Session drives one user's research runs. At most one run is in flight.
type Session struct {
	client *Client
	stream bool

	mu       sync.Mutex
	prompt   string
	state    State
	progress string
	result   *models.ResearchResponse
	err      string
	cancel   context.CancelFunc
	// cancelled marks the in-flight run as aborted by the user.
	cancelled bool
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithProgressStream makes runs use the websocket stream so the progress label follows server phases.
func WithProgressStream() SessionOption {
	return func(s *Session) { s.stream = true }
}

func NewSession(client *Client, opts ...SessionOption) *Session {
	s := &Session{
		client:   client,
		state:    StateIdle,
		progress: LabelIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPrompt replaces the prompt used by later runs and downloads.
func (s *Session) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
}

func promptValid(prompt string) bool {
	return len([]rune(strings.TrimSpace(prompt))) >= minPromptLength
}

// CanRun reports whether Run would start a request.
func (s *Session) CanRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return promptValid(s.prompt) && s.state != StateRunning
}

// CanDownload reports whether DownloadArchive may be used. It ignores the session state.
func (s *Session) CanDownload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return promptValid(s.prompt)
}

// IsRunning reports whether a run is in flight.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Prompt:   s.prompt,
		State:    s.state,
		Progress: s.progress,
		Result:   s.result,
		Error:    s.err,
	}
}

// Run performs a research run and blocks until it completes, fails or is cancelled.
// Validation errors leave the session untouched.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !promptValid(s.prompt) {
		s.mu.Unlock()
		return ErrPromptTooShort
	}

	prompt := s.prompt
	ctx, cancel := context.WithCancel(ctx)
	s.state = StateRunning
	s.progress = LabelSearching
	s.result = nil
	s.err = ""
	s.cancel = cancel
	s.cancelled = false
	s.mu.Unlock()
	defer cancel()

	var (
		resp *models.ResearchResponse
		err  error
	)
	if s.stream {
		resp, err = s.client.StreamResearch(ctx, prompt, s.onEvent)
	} else {
		resp, err = s.client.Research(ctx, prompt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil

	if s.cancelled {
		err = ErrCancelled
	}
	if err != nil {
		s.state = StateFailed
		s.progress = LabelFailed
		s.result = nil
		s.err = errorMessage(err)
		return err
	}

	s.state = StateComplete
	s.progress = LabelComplete
	s.result = resp
	return nil
}

func (s *Session) onEvent(event models.ProgressEvent) {
	if event.Phase == models.PhaseComplete || event.Phase == models.PhaseFailed || event.Message == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning && !s.cancelled {
		s.progress = event.Message
	}
}

// Cancel aborts the in-flight run. It is a no-op when nothing is running.
// The server may still finish the operation; its result is discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.cancel == nil {
		return
	}
	s.cancelled = true
	s.cancel()
}

// DownloadArchive fetches the archive for the current prompt and writes it to w.
// It runs independently of any research run and never changes the session state.
func (s *Session) DownloadArchive(ctx context.Context, w io.Writer) (*Archive, error) {
	s.mu.Lock()
	prompt := s.prompt
	s.mu.Unlock()

	if !promptValid(prompt) {
		return nil, ErrPromptTooShort
	}

	archive, err := s.client.Archive(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(archive.Data); err != nil {
		return nil, err
	}
	return archive, nil
}

func errorMessage(err error) string {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Something went wrong"
}
