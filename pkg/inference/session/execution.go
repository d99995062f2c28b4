package session

import (
	"context"
	"errors"
	"sync"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight turn.
//
// It is cancelable and waitable. The turn is always stopped through context cancellation.
type ExecutionHandle struct {
	SessionID string
	RunID     string
	Input     string

	done chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	out    turns.Turn
	err    error
}

func newExecutionHandle(sessionID, runID, input string, cancel context.CancelFunc) *ExecutionHandle {
	return &ExecutionHandle{
		SessionID: sessionID,
		RunID:     runID,
		Input:     input,
		done:      make(chan struct{}),
		cancel:    cancel,
	}
}

func (h *ExecutionHandle) setResult(out turns.Turn, err error) {
	h.mu.Lock()
	h.out = out
	h.err = err
	cancel := h.cancel
	h.cancel = nil
	close(h.done)
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancel cancels the in-flight turn. It is safe to call multiple times.
func (h *ExecutionHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the turn completes and returns the final assistant turn.
func (h *ExecutionHandle) Wait() (turns.Turn, error) {
	if h == nil {
		return turns.Turn{}, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

// Done is closed when the turn completes.
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether the turn appears to still be running.
func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
