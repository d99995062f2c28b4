package toolloop

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

// fakeProvider replays scripted responses (atomic) or chunk lists (streaming).
// When the script runs out, the last entry repeats.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*engine.Response
	streams   [][]engine.Chunk
	err       error
	requests  []*engine.Request
	onRequest func(n int)
}

func (f *fakeProvider) record(req *engine.Request) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	if f.onRequest != nil {
		f.onRequest(n)
	}
	return n - 1
}

func (f *fakeProvider) Complete(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	i := f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *engine.Request) (engine.Stream, error) {
	i := f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	if i >= len(f.streams) {
		i = len(f.streams) - 1
	}
	return engine.NewSliceStream(f.streams[i]...), nil
}

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

func (c *collectingSink) ofType(t events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, e := range c.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func menuRegistry(t *testing.T) *tools.InMemoryToolRegistry {
	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, reg.Register(tools.Spec{
		Name:        "get_specials",
		Description: "Provides a list of specials from the menu.",
		Handler: func(ctx context.Context, args tools.Arguments) (string, error) {
			return "Special Soup: Clam Chowder\nSpecial Salad: Cobb Salad\nSpecial Drink: Chai Tea", nil
		},
	}))
	require.NoError(t, reg.Register(tools.Spec{
		Name:        "get_item_price",
		Description: "Provides the price of the requested menu item.",
		Parameters: []tools.Parameter{
			{Name: "menu_item", Type: tools.ParameterTypeString, Required: true},
		},
		Handler: func(ctx context.Context, args tools.Arguments) (string, error) {
			return "$9.99", nil
		},
	}))
	require.NoError(t, reg.Register(tools.Spec{
		Name: "broken",
		Handler: func(ctx context.Context, args tools.Arguments) (string, error) {
			return "", errors.New("kitchen closed")
		},
	}))
	return reg
}

func roles(ts []turns.Turn) []turns.Role {
	out := make([]turns.Role, len(ts))
	for i, t := range ts {
		out[i] = t.Role
	}
	return out
}

func priceCall(id string, item string) turns.ToolCallRequest {
	return turns.ToolCallRequest{CallID: id, ToolName: "get_item_price", Arguments: map[string]string{"menu_item": item}}
}

func TestFinalOnlyTurn(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{engine.NewFinalResponse("Hello! Welcome.", "Host")}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)), WithInstructions("Answer questions about the menu."))
	tr := turns.NewTranscript()

	out, err := l.RunTurn(context.Background(), tr, "Hi", engine.ModeAtomic)
	require.NoError(t, err)
	assert.Equal(t, turns.RoleAssistant, out.Role)
	assert.Equal(t, "Host", out.Author)
	assert.Equal(t, "Hello! Welcome.", out.Content)

	ts := tr.Turns()
	assert.Equal(t, []turns.Role{turns.RoleUser, turns.RoleAssistant}, roles(ts))
	assert.Equal(t, "Hi", ts[0].Content)

	require.Len(t, p.requests, 1)
	assert.Equal(t, "Answer questions about the menu.", p.requests[0].Instructions)
	assert.Len(t, p.requests[0].Tools, 3)
	assert.Equal(t, tools.ToolChoiceAuto, p.requests[0].ToolChoice)
}

func TestOneToolRound(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(turns.ToolCallRequest{CallID: "call_1", ToolName: "get_specials"}),
		engine.NewFinalResponse("Our specials are Clam Chowder, Cobb Salad and Chai Tea.", "Host"),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	out, err := l.RunTurn(context.Background(), tr, "What are your specials?", engine.ModeAtomic)
	require.NoError(t, err)
	assert.Contains(t, out.Content, "Chai Tea")

	ts := tr.Turns()
	require.Equal(t, []turns.Role{turns.RoleUser, turns.RoleTool, turns.RoleAssistant}, roles(ts))
	assert.Equal(t, "call_1", ts[1].CallID())
	assert.Equal(t, "get_specials", ts[1].ToolName())
	assert.Contains(t, ts[1].Content, "Special Drink: Chai Tea")

	// the second request sees the tool result
	require.Len(t, p.requests, 2)
	assert.Len(t, p.requests[1].Turns, 2)
	assert.Equal(t, turns.RoleTool, p.requests[1].Turns[1].Role)
}

func TestTBoneSteakScenario(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(priceCall("call_7", "t-bone steak")),
		engine.NewFinalResponse("The t-bone steak is $9.99.", "Host"),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	out, err := l.RunTurn(context.Background(), tr, "How much is the t-bone steak?", engine.ModeAtomic)
	require.NoError(t, err)
	assert.Equal(t, "The t-bone steak is $9.99.", out.Content)

	ts := tr.Turns()
	require.Equal(t, []turns.Role{turns.RoleUser, turns.RoleTool, turns.RoleAssistant}, roles(ts))
	assert.Equal(t, "$9.99", ts[1].Content)
	assert.Equal(t, "t-bone steak", ts[1].ToolCalls[0].Arguments["menu_item"])
}

func TestMultipleCallsRunInProviderOrder(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(
			turns.ToolCallRequest{CallID: "b", ToolName: "get_specials"},
			priceCall("a", "Cobb Salad"),
		),
		engine.NewFinalResponse("done", ""),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "specials and salad price", engine.ModeAtomic)
	require.NoError(t, err)
	ts := tr.Turns()
	require.Len(t, ts, 4)
	assert.Equal(t, "b", ts[1].CallID())
	assert.Equal(t, "a", ts[2].CallID())
	assert.Equal(t, "", ts[3].Author)
}

func TestLoopBound(t *testing.T) {
	for _, perRound := range []int{1, 2} {
		calls := []turns.ToolCallRequest{}
		for i := 0; i < perRound; i++ {
			calls = append(calls, turns.ToolCallRequest{ToolName: "get_specials"})
		}
		p := &fakeProvider{responses: []*engine.Response{engine.NewToolCallsResponse(calls...)}}
		l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
		tr := turns.NewTranscript()

		_, err := l.RunTurn(context.Background(), tr, "loop forever", engine.ModeAtomic)
		var exceeded *ToolLoopExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, DefaultMaxToolRounds, exceeded.Rounds)
		assert.Equal(t, 1+DefaultMaxToolRounds*perRound, tr.Len())
		assert.Len(t, p.requests, DefaultMaxToolRounds)
	}
}

func TestLoopBoundOverride(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(turns.ToolCallRequest{CallID: "x", ToolName: "get_specials"}),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)), WithLoopConfig(DefaultLoopConfig().WithMaxToolRounds(2)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "hi", engine.ModeAtomic)
	var exceeded *ToolLoopExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 2, exceeded.Rounds)
	assert.Equal(t, 3, tr.Len())

	tr2 := turns.NewTranscript()
	_, err = l.RunTurn(context.Background(), tr2, "hi", engine.ModeAtomic, WithMaxToolRounds(1))
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 1, exceeded.Rounds)
	assert.Equal(t, 2, tr2.Len())
}

func TestStreamingFold(t *testing.T) {
	p := &fakeProvider{streams: [][]engine.Chunk{{
		{Author: "Host", Delta: "The special "},
		{Delta: ""},
		{Delta: "drink is "},
		{Delta: "Chai Tea."},
	}}}
	sink := &collectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	var fragments []string
	out, err := l.RunTurn(ctx, tr, "What is the special drink?", engine.ModeStreaming,
		WithFragmentHandler(func(author string, delta string) {
			assert.Equal(t, "Host", author)
			fragments = append(fragments, delta)
		}))
	require.NoError(t, err)
	assert.Equal(t, "The special drink is Chai Tea.", out.Content)
	assert.Equal(t, "Host", out.Author)
	assert.Equal(t, []string{"The special ", "drink is ", "Chai Tea."}, fragments)

	// fragments are never persisted individually
	assert.Equal(t, 2, tr.Len())

	partials := sink.ofType(events.EventTypePartialCompletion)
	require.Len(t, partials, 3)
	last := partials[2].(*events.EventPartialCompletion)
	assert.Equal(t, "The special drink is Chai Tea.", last.Completion)
	assert.Len(t, sink.ofType(events.EventTypeTurn), 2)
}

func TestStreamingFoldWordFragments(t *testing.T) {
	p := &fakeProvider{streams: [][]engine.Chunk{{
		{Author: "Host", Delta: "The"},
		{Delta: " special"},
		{Delta: " drink"},
		{Delta: " is Chai Tea."},
	}}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	out, err := l.RunTurn(context.Background(), tr, "What is the special drink?", engine.ModeStreaming)
	require.NoError(t, err)
	assert.Equal(t, "The special drink is Chai Tea.", out.Content)
	ts := tr.Turns()
	require.Len(t, ts, 2)
	assert.Equal(t, turns.RoleAssistant, ts[1].Role)
	assert.Equal(t, "The special drink is Chai Tea.", ts[1].Content)
}

func TestTextWithToolCallsIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	p := &fakeProvider{streams: [][]engine.Chunk{
		{
			{Author: "Host", Delta: "Let me check. "},
			{ToolCalls: []turns.ToolCallRequest{priceCall("c1", "Clam Chowder")}},
		},
		{{Author: "Host", Delta: "Clam Chowder is $9.99."}},
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "How much is Clam Chowder soup?", engine.ModeStreaming)
	require.NoError(t, err)
	assert.Equal(t, []turns.Role{turns.RoleUser, turns.RoleTool, turns.RoleAssistant}, roles(tr.Turns()))
	assert.Contains(t, buf.String(), "text sent with tool calls is not kept in the transcript")
	assert.Contains(t, buf.String(), "Let me check.")
}

func TestStreamingToolCalls(t *testing.T) {
	p := &fakeProvider{streams: [][]engine.Chunk{
		{{ToolCalls: []turns.ToolCallRequest{priceCall("c1", "Clam Chowder")}}},
		{{Author: "Host", Delta: "Clam Chowder is $9.99."}},
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	out, err := l.RunTurn(context.Background(), tr, "How much is Clam Chowder soup?", engine.ModeStreaming)
	require.NoError(t, err)
	assert.Equal(t, "Clam Chowder is $9.99.", out.Content)
	assert.Equal(t, []turns.Role{turns.RoleUser, turns.RoleTool, turns.RoleAssistant}, roles(tr.Turns()))
}

func TestToolFailuresPropagate(t *testing.T) {
	cases := []struct {
		name  string
		call  turns.ToolCallRequest
		check func(t *testing.T, err error)
	}{
		{"unknown", turns.ToolCallRequest{CallID: "c", ToolName: "get_wine_list"}, func(t *testing.T, err error) {
			var e *tools.UnknownToolError
			require.ErrorAs(t, err, &e)
		}},
		{"argument", turns.ToolCallRequest{CallID: "c", ToolName: "get_item_price"}, func(t *testing.T, err error) {
			var e *tools.ArgumentError
			require.ErrorAs(t, err, &e)
		}},
		{"execution", turns.ToolCallRequest{CallID: "c", ToolName: "broken"}, func(t *testing.T, err error) {
			var e *tools.ToolExecutionError
			require.ErrorAs(t, err, &e)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{responses: []*engine.Response{engine.NewToolCallsResponse(tc.call)}}
			l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
			tr := turns.NewTranscript()

			_, err := l.RunTurn(context.Background(), tr, "hi", engine.ModeAtomic)
			tc.check(t, err)
			assert.Equal(t, 1, tr.Len())
			assert.Equal(t, 1, tr.Unresolved())
		})
	}
}

func TestToolErrorContinue(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(turns.ToolCallRequest{CallID: "c", ToolName: "broken"}),
		engine.NewFinalResponse("Sorry, the kitchen is closed.", "Host"),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)),
		WithToolConfig(tools.DefaultToolConfig().WithToolErrorHandling(tools.ToolErrorContinue)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "order", engine.ModeAtomic)
	require.NoError(t, err)
	ts := tr.Turns()
	require.Len(t, ts, 3)
	assert.Equal(t, "Error: kitchen closed", ts[1].Content)
}

func TestAllowedToolsRestrictOfferAndDispatch(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(turns.ToolCallRequest{CallID: "c", ToolName: "broken"}),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)),
		WithToolConfig(tools.DefaultToolConfig().WithAllowedTools([]string{"get_*"})))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "hi", engine.ModeAtomic)
	var unknown *tools.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	require.Len(t, p.requests, 1)
	names := []string{}
	for _, d := range p.requests[0].Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"get_specials", "get_item_price"}, names)
}

func TestProviderErrorPassesThrough(t *testing.T) {
	perr := &engine.ProviderError{Provider: "fake", Op: "complete", Err: errors.New("connection refused")}
	p := &fakeProvider{err: perr}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "hi", engine.ModeAtomic)
	assert.Same(t, perr, err)
	assert.Equal(t, 1, tr.Len())
}

func TestCancellationDropsStreamAndKeepsTurns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &collectingSink{}
	ctx = events.WithEventSinks(ctx, sink)

	p := &fakeProvider{streams: [][]engine.Chunk{
		{{ToolCalls: []turns.ToolCallRequest{{CallID: "c", ToolName: "get_specials"}}}},
		{{Delta: "Our specials"}, {Delta: " are..."}},
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(ctx, tr, "specials?", engine.ModeStreaming, WithFragmentHandler(func(string, string) {
		cancel()
	}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []turns.Role{turns.RoleUser, turns.RoleTool}, roles(tr.Turns()))
	assert.Len(t, sink.ofType(events.EventTypeInterrupt), 1)
	assert.Empty(t, sink.ofType(events.EventTypeFinal))
}

func TestEmptyCallIDsAreFilled(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(turns.ToolCallRequest{ToolName: "get_specials"}),
		engine.NewFinalResponse("ok", "Host"),
	}}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))
	tr := turns.NewTranscript()

	_, err := l.RunTurn(context.Background(), tr, "hi", engine.ModeAtomic)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.Turns()[1].CallID())
}

func TestSnapshotHookPhases(t *testing.T) {
	p := &fakeProvider{responses: []*engine.Response{
		engine.NewToolCallsResponse(turns.ToolCallRequest{CallID: "c", ToolName: "get_specials"}),
		engine.NewFinalResponse("ok", "Host"),
	}}
	var phases []string
	hook := func(ctx context.Context, phase string, round int, ts []turns.Turn) {
		phases = append(phases, phase)
	}
	l := New(WithProvider(p), WithRegistry(menuRegistry(t)))

	ctx := WithTurnSnapshotHook(context.Background(), hook)
	_, err := l.RunTurn(ctx, turns.NewTranscript(), "hi", engine.ModeAtomic)
	require.NoError(t, err)
	assert.Equal(t, []string{
		PhasePreInference, PhasePostInference, PhasePostTools,
		PhasePreInference, PhasePostInference,
	}, phases)
}

func TestRunTurnValidation(t *testing.T) {
	_, err := New().RunTurn(context.Background(), turns.NewTranscript(), "hi", engine.ModeAtomic)
	assert.ErrorIs(t, err, ErrNoProvider)

	l := New(WithProvider(&fakeProvider{}))
	_, err = l.RunTurn(context.Background(), nil, "hi", engine.ModeAtomic)
	assert.ErrorIs(t, err, ErrNoTranscript)

	_, err = l.RunTurn(context.Background(), turns.NewTranscript(), "hi", engine.Mode("batch"))
	assert.Error(t, err)
}
