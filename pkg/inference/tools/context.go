package tools

import (
	"context"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

type currentToolCallKey struct{}

// WithCurrentToolCall annotates ctx with the call a handler is executing.
func WithCurrentToolCall(ctx context.Context, call turns.ToolCallRequest) context.Context {
	return context.WithValue(ctx, currentToolCallKey{}, call)
}

// CurrentToolCallFromContext returns the call being executed, if any.
// Handlers use it to learn their call id.
func CurrentToolCallFromContext(ctx context.Context) (turns.ToolCallRequest, bool) {
	if ctx == nil {
		return turns.ToolCallRequest{}, false
	}
	call, ok := ctx.Value(currentToolCallKey{}).(turns.ToolCallRequest)
	return call, ok
}
