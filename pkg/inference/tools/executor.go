package tools

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Executor runs the tool calls of one provider response against a registry,
// restricted to the tools offered by a ToolConfig.
type Executor struct {
	registry ToolRegistry
	config   ToolConfig
	specs    []Spec
	offered  map[string]bool
}

// NewExecutor resolves the offered tool set from the registry and the config allow-list.
func NewExecutor(registry ToolRegistry, config ToolConfig) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ToolErrorHandling == "" {
		config.ToolErrorHandling = ToolErrorAbort
	}

	var all []Spec
	if registry != nil {
		all = registry.Specs()
	}
	specs, err := Filter(all, config.AllowedTools)
	if err != nil {
		return nil, err
	}
	offered := make(map[string]bool, len(specs))
	for _, s := range specs {
		offered[s.Name] = true
	}
	return &Executor{
		registry: registry,
		config:   config,
		specs:    specs,
		offered:  offered,
	}, nil
}

// Specs returns the offered tools in registration order.
func (e *Executor) Specs() []Spec {
	return append([]Spec(nil), e.specs...)
}

// Definitions returns the provider-facing descriptions of the offered tools.
func (e *Executor) Definitions() []Definition {
	return Definitions(e.specs)
}

func (e *Executor) Config() ToolConfig {
	return e.config
}

// ExecuteToolCall invokes call and returns the text to record as the tool result.
//
// Calls naming a tool outside the offered set fail with UnknownToolError. With
// ToolErrorContinue, a ToolExecutionError is turned into an error text result;
// every other failure is returned.
func (e *Executor) ExecuteToolCall(ctx context.Context, meta events.EventMetadata, call turns.ToolCallRequest) (string, error) {
	if e.registry == nil || !e.offered[call.ToolName] {
		return "", &UnknownToolError{Name: call.ToolName, CallID: call.CallID}
	}

	events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(meta, events.ToolCall{
		ID:    call.CallID,
		Name:  call.ToolName,
		Input: formatCallArguments(call.Arguments),
	}))

	out, err := e.registry.Invoke(WithCurrentToolCall(ctx, call), call)
	if err != nil {
		var execErr *ToolExecutionError
		if e.config.ToolErrorHandling == ToolErrorContinue && errors.As(err, &execErr) {
			log.Warn().Err(err).Str("tool", call.ToolName).Str("call_id", call.CallID).Msg("tools: continuing after tool failure")
			out = fmt.Sprintf("Error: %v", execErr.Err)
			err = nil
		} else {
			events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(meta, events.ToolResult{
				ID:    call.CallID,
				Name:  call.ToolName,
				Error: err.Error(),
			}))
			return "", err
		}
	}

	events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(meta, events.ToolResult{
		ID:     call.CallID,
		Name:   call.ToolName,
		Result: out,
	}))
	return out, nil
}

func formatCallArguments(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}
	return turns.FormatArguments(args)
}
