package turns

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Transcript is the append-only, chronologically ordered log of a conversation.
//
// Turns are never edited or removed. The transcript also tracks the tool-call
// cycle that is currently being resolved, so that every tool result can be
// checked against the request that caused it.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn

	// pending holds the requests of the open tool-call cycle, keyed by call id.
	pending map[string]ToolCallRequest
	// resolved holds call ids of the open cycle that already have a result.
	resolved map[string]bool
	// round numbers the open cycle; it only grows.
	round int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendUser appends a user turn. Any unresolved tool-call cycle is abandoned.
func (t *Transcript) AppendUser(content string) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := t.unresolvedLocked(); n > 0 {
		log.Warn().Int("unresolved_calls", n).Msg("transcript: abandoning unresolved tool-call cycle")
	}
	t.pending = nil
	t.resolved = nil

	turn := NewUserTurn(content)
	t.turns = append(t.turns, turn)
	return turn.Clone()
}

// AppendAssistant appends an assistant turn authored by author (may be empty).
func (t *Transcript) AppendAssistant(content string, author string) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	turn := NewAssistantTurn(content, author)
	t.turns = append(t.turns, turn)
	return turn.Clone()
}

// OpenToolCalls starts a new tool-call cycle with the given requests.
// Results for these requests can then be appended with AppendToolResult.
func (t *Transcript) OpenToolCalls(calls []ToolCallRequest) error {
	pending := make(map[string]ToolCallRequest, len(calls))
	for _, c := range calls {
		if c.CallID == "" {
			return errors.Errorf("tool call for %q has an empty call id", c.ToolName)
		}
		if _, dup := pending[c.CallID]; dup {
			return errors.Errorf("duplicate tool call id %q", c.CallID)
		}
		pending[c.CallID] = c.Clone()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if n := t.unresolvedLocked(); n > 0 {
		log.Warn().Int("unresolved_calls", n).Msg("transcript: replacing unresolved tool-call cycle")
	}
	t.pending = pending
	t.resolved = make(map[string]bool, len(calls))
	t.round++
	return nil
}

// AppendToolResult appends a tool turn answering callID.
//
// callID must belong to the open cycle, must not have been answered yet, and
// toolName must match the requested tool.
func (t *Transcript) AppendToolResult(callID string, toolName string, content string) (Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	call, ok := t.pending[callID]
	if !ok {
		return Turn{}, &DanglingToolResultError{CallID: callID, ToolName: toolName, Reason: "no open request with this call id"}
	}
	if t.resolved[callID] {
		return Turn{}, &DanglingToolResultError{CallID: callID, ToolName: toolName, Reason: "request already answered"}
	}
	if call.ToolName != toolName {
		return Turn{}, &DanglingToolResultError{CallID: callID, ToolName: toolName, Reason: "request was for tool " + call.ToolName}
	}

	t.resolved[callID] = true
	turn := NewToolResultTurn(call, content)
	turn.Round = t.round
	t.turns = append(t.turns, turn)
	return turn.Clone(), nil
}

// Turns returns a copy of the ordered turn log.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Turn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.Clone()
	}
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Last returns the most recent turn, if any.
func (t *Transcript) Last() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1].Clone(), true
}

// Round returns the number of tool-call cycles opened so far.
func (t *Transcript) Round() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.round
}

// Unresolved returns the number of requests in the open cycle that have no result yet.
func (t *Transcript) Unresolved() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unresolvedLocked()
}

func (t *Transcript) unresolvedLocked() int {
	n := 0
	for id := range t.pending {
		if !t.resolved[id] {
			n++
		}
	}
	return n
}
