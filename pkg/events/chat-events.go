package events

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"

	// Model requested tool calls (received from the provider)
	EventTypeToolCall EventType = "tool-call"

	// Execution-phase events (we are actually executing tools locally)
	EventTypeToolCallExecute         EventType = "tool-call-execute"
	EventTypeToolCallExecutionResult EventType = "tool-call-execution-result"

	// A turn was appended to the transcript
	EventTypeTurn EventType = "turn"

	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

// EventPartialCompletion carries one streamed fragment and the text accumulated so far.
type EventPartialCompletion struct {
	EventImpl
	Author     string `json:"author,omitempty"`
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, author string, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Author:     author,
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventImpl
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, author string, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Author:    author,
		Text:      text,
	}
}

type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Text:      text,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

type ToolCall struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Input string `json:"input" yaml:"input"`
}

type ToolResult struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Result string `json:"result" yaml:"result"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// EventToolCall is published once per tool call a provider response requests.
type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{
		EventImpl: EventImpl{Type_: EventTypeToolCall, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{
		EventImpl: EventImpl{Type_: EventTypeToolCallExecute, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type EventToolCallExecutionResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallExecutionResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolCallExecutionResult {
	return &EventToolCallExecutionResult{
		EventImpl:  EventImpl{Type_: EventTypeToolCallExecutionResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

// EventTurn is published whenever a turn is appended to a transcript.
type EventTurn struct {
	EventImpl
	Turn turns.Turn `json:"turn"`
}

func NewTurnEvent(metadata EventMetadata, turn turns.Turn) *EventTurn {
	return &EventTurn{
		EventImpl: EventImpl{Type_: EventTypeTurn, Metadata_: metadata},
		Turn:      turn,
	}
}

// EventMetadata is passed along with every event.
type EventMetadata struct {
	ID        uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty" mapstructure:"session_id"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty" mapstructure:"turn_id"`
	Round     int       `json:"round,omitempty" yaml:"round,omitempty" mapstructure:"round"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	// Extra carries provider-specific/context values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

// NewEventMetadata returns metadata with a fresh message id.
func NewEventMetadata(sessionID string) EventMetadata {
	return EventMetadata{ID: uuid.New(), SessionID: sessionID}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Round > 0 {
		e.Int("round", em.Round)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

// NewEventFromJson decodes an event serialized by a sink back into its concrete type.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}
	e.payload = b

	var ret Event
	var ok bool
	switch e.Type_ {
	case EventTypeStart:
		ret, ok = typed[EventPartialCompletionStart](e)
	case EventTypePartialCompletion:
		ret, ok = typed[EventPartialCompletion](e)
	case EventTypeFinal:
		ret, ok = typed[EventFinal](e)
	case EventTypeToolCall:
		ret, ok = typed[EventToolCall](e)
	case EventTypeToolCallExecute:
		ret, ok = typed[EventToolCallExecute](e)
	case EventTypeToolCallExecutionResult:
		ret, ok = typed[EventToolCallExecutionResult](e)
	case EventTypeTurn:
		ret, ok = typed[EventTurn](e)
	case EventTypeError:
		ret, ok = typed[EventError](e)
	case EventTypeInterrupt:
		ret, ok = typed[EventInterrupt](e)
	default:
		return e, nil
	}
	if !ok {
		return nil, fmt.Errorf("could not decode %s event", e.Type_)
	}
	return ret, nil
}

type payloadSetter interface {
	Event
	SetPayload([]byte)
}

func typed[T any, PT interface {
	*T
	payloadSetter
}](e Event) (Event, bool) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, false
	}
	pt := PT(ret)
	pt.SetPayload(e.Payload())
	return pt, true
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
