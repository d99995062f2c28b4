package tools

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

type collectingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *collectingSink) PublishEvent(e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func newTestRegistry(t *testing.T) *InMemoryToolRegistry {
	reg := NewInMemoryToolRegistry()
	require.NoError(t, reg.Register(priceSpec("$9.99")))
	require.NoError(t, reg.Register(Spec{
		Name: "get_specials",
		Handler: func(ctx context.Context, args Arguments) (string, error) {
			c, ok := CurrentToolCallFromContext(ctx)
			if !ok {
				return "", errors.New("no current call")
			}
			return "specials for " + c.CallID, nil
		},
	}))
	require.NoError(t, reg.Register(Spec{
		Name:    "broken",
		Handler: func(ctx context.Context, args Arguments) (string, error) { return "", errors.New("out of stock") },
	}))
	return reg
}

func TestExecutorPublishesEvents(t *testing.T) {
	sink := &collectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)
	ex, err := NewExecutor(newTestRegistry(t), DefaultToolConfig())
	require.NoError(t, err)

	out, err := ex.ExecuteToolCall(ctx, events.EventMetadata{}, turns.ToolCallRequest{CallID: "c7", ToolName: "get_specials"})
	require.NoError(t, err)
	assert.Equal(t, "specials for c7", out)

	require.Len(t, sink.events, 2)
	assert.Equal(t, events.EventTypeToolCallExecute, sink.events[0].Type())
	res, ok := sink.events[1].(*events.EventToolCallExecutionResult)
	require.True(t, ok)
	assert.Equal(t, "specials for c7", res.ToolResult.Result)
}

func TestExecutorRejectsToolsOutsideAllowList(t *testing.T) {
	ex, err := NewExecutor(newTestRegistry(t), DefaultToolConfig().WithAllowedTools([]string{"get_*"}))
	require.NoError(t, err)
	assert.Len(t, ex.Definitions(), 2)

	_, err = ex.ExecuteToolCall(context.Background(), events.EventMetadata{}, turns.ToolCallRequest{CallID: "c1", ToolName: "broken"})
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "broken", unknown.Name)
}

func TestExecutorErrorHandling(t *testing.T) {
	reg := newTestRegistry(t)
	broken := turns.ToolCallRequest{CallID: "c1", ToolName: "broken"}

	abort, err := NewExecutor(reg, DefaultToolConfig())
	require.NoError(t, err)
	_, err = abort.ExecuteToolCall(context.Background(), events.EventMetadata{}, broken)
	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)

	cont, err := NewExecutor(reg, DefaultToolConfig().WithToolErrorHandling(ToolErrorContinue))
	require.NoError(t, err)
	out, err := cont.ExecuteToolCall(context.Background(), events.EventMetadata{}, broken)
	require.NoError(t, err)
	assert.Equal(t, "Error: out of stock", out)

	// argument errors are never converted
	_, err = cont.ExecuteToolCall(context.Background(), events.EventMetadata{}, turns.ToolCallRequest{CallID: "c2", ToolName: "get_item_price"})
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
}
