package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/toolloop"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

var (
	ErrSessionNil           = errors.New("session is nil")
	ErrSessionNoProvider    = errors.New("session has no provider")
	ErrSessionAlreadyActive = errors.New("session already has an active turn")
	ErrSessionNoActive      = errors.New("session has no active turn")
)

// Session is a long-lived, multi-turn conversation.
//
// It owns:
// - a stable SessionID
// - the transcript (append-only)
// - the invariant that only one turn is active at a time
//
// The registry and provider may be shared with other sessions.
type Session struct {
	SessionID string

	registry   tools.ToolRegistry
	provider   engine.Provider
	transcript *turns.Transcript
	loopOpts   []toolloop.Option
	sinks      []events.EventSink

	mu     sync.Mutex
	active *ExecutionHandle
}

type Option func(*Session)

func WithSessionID(id string) Option {
	return func(s *Session) { s.SessionID = id }
}

// WithTranscript resumes a conversation from an existing transcript.
func WithTranscript(tr *turns.Transcript) Option {
	return func(s *Session) { s.transcript = tr }
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sinks...) }
}

// WithLoopOptions passes options to the tool loop of every turn.
func WithLoopOptions(opts ...toolloop.Option) Option {
	return func(s *Session) { s.loopOpts = append(s.loopOpts, opts...) }
}

// NewSession creates a session with a fresh transcript and a generated id.
// The registry is frozen: tools must be registered before a session starts.
func NewSession(registry tools.ToolRegistry, provider engine.Provider, opts ...Option) (*Session, error) {
	if provider == nil {
		return nil, ErrSessionNoProvider
	}
	if registry == nil {
		registry = tools.NewInMemoryToolRegistry()
	}
	s := &Session{
		SessionID: uuid.NewString(),
		registry:  registry,
		provider:  provider,
	}
	for _, o := range opts {
		o(s)
	}
	if s.transcript == nil {
		s.transcript = turns.NewTranscript()
	}
	registry.Freeze()
	log.Debug().Str("session_id", s.SessionID).Msg("session: created")
	return s, nil
}

// Transcript returns a copy of the session turns.
func (s *Session) Transcript() []turns.Turn {
	if s == nil {
		return nil
	}
	return s.transcript.Turns()
}

// IsRunning reports whether the session currently has an active turn.
func (s *Session) IsRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

// RunTurn runs one turn to completion and returns the final assistant turn.
// A call while another turn is active fails with ErrSessionAlreadyActive.
func (s *Session) RunTurn(ctx context.Context, input string, mode engine.Mode, opts ...toolloop.RunOption) (turns.Turn, error) {
	h, err := s.StartTurn(ctx, input, mode, opts...)
	if err != nil {
		return turns.Turn{}, err
	}
	return h.Wait()
}

// StartTurn starts a turn asynchronously and returns its ExecutionHandle.
func (s *Session) StartTurn(ctx context.Context, input string, mode engine.Mode, opts ...toolloop.RunOption) (*ExecutionHandle, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(WithSessionMeta(ctx, s.SessionID, runID))
	if len(s.sinks) > 0 {
		runCtx = events.WithEventSinks(runCtx, s.sinks...)
	}
	handle := newExecutionHandle(s.SessionID, runID, input, cancel)

	s.mu.Lock()
	if s.active != nil && s.active.IsRunning() {
		s.mu.Unlock()
		cancel()
		return nil, ErrSessionAlreadyActive
	}
	s.active = handle
	s.mu.Unlock()

	loopOpts := append([]toolloop.Option{
		toolloop.WithProvider(s.provider),
		toolloop.WithRegistry(s.registry),
		toolloop.WithSessionID(s.SessionID),
	}, s.loopOpts...)
	loop := toolloop.New(loopOpts...)

	go func() {
		out, err := loop.RunTurn(runCtx, s.transcript, input, mode, opts...)
		if err != nil {
			log.Debug().Err(err).Str("session_id", s.SessionID).Str("run_id", runID).Msg("session: turn failed")
		}
		s.mu.Lock()
		if s.active == handle {
			s.active = nil
		}
		s.mu.Unlock()
		handle.setResult(out, err)
	}()

	return handle, nil
}

// CancelActive cancels the current active turn, if any.
func (s *Session) CancelActive() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}
