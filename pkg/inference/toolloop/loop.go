package toolloop

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/tools"
	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Loop drives one conversational turn: it asks the provider for a response,
// executes requested tools, records everything in the transcript and repeats
// until the provider produces a final answer.
type Loop struct {
	provider     engine.Provider
	registry     tools.ToolRegistry
	loopCfg      LoopConfig
	toolCfg      tools.ToolConfig
	instructions string
	sessionID    string
	snapshotHook SnapshotHook
}

type Option func(*Loop)

func New(opts ...Option) *Loop {
	l := &Loop{
		loopCfg: DefaultLoopConfig(),
		toolCfg: tools.DefaultToolConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func WithProvider(p engine.Provider) Option {
	return func(l *Loop) { l.provider = p }
}

func WithRegistry(reg tools.ToolRegistry) Option {
	return func(l *Loop) { l.registry = reg }
}

func WithLoopConfig(cfg LoopConfig) Option {
	return func(l *Loop) { l.loopCfg = cfg }
}

func WithToolConfig(cfg tools.ToolConfig) Option {
	return func(l *Loop) { l.toolCfg = cfg }
}

// WithInstructions sets the agent instructions sent with every request.
func WithInstructions(instructions string) Option {
	return func(l *Loop) { l.instructions = instructions }
}

// WithSessionID tags published events with the owning session.
func WithSessionID(id string) Option {
	return func(l *Loop) { l.sessionID = id }
}

func WithSnapshotHook(h SnapshotHook) Option {
	return func(l *Loop) { l.snapshotHook = h }
}

// FragmentHandler receives every non-empty streamed fragment as it arrives.
type FragmentHandler func(author string, delta string)

type runOptions struct {
	fragmentHandler FragmentHandler
	maxRounds       int
}

type RunOption func(*runOptions)

func WithFragmentHandler(h FragmentHandler) RunOption {
	return func(o *runOptions) { o.fragmentHandler = h }
}

// WithMaxToolRounds overrides the loop bound for a single turn.
func WithMaxToolRounds(n int) RunOption {
	return func(o *runOptions) { o.maxRounds = n }
}

func (l *Loop) snapshot(ctx context.Context, phase string, round int, tr *turns.Transcript) {
	h := l.snapshotHook
	if h == nil {
		var ok bool
		if h, ok = TurnSnapshotHookFromContext(ctx); !ok {
			return
		}
	}
	h(ctx, phase, round, tr.Turns())
}

// RunTurn appends userInput to tr and runs completion rounds until the
// provider returns a final response, which is appended and returned.
//
// Every tool call of a tool_calls response is executed in provider order and
// its result appended before the next round. If no final response arrives
// within the round bound, ToolLoopExceededError is returned. Failures leave
// all turns appended so far in the transcript.
func (l *Loop) RunTurn(ctx context.Context, tr *turns.Transcript, userInput string, mode engine.Mode, opts ...RunOption) (turns.Turn, error) {
	if l == nil || l.provider == nil {
		return turns.Turn{}, ErrNoProvider
	}
	if tr == nil {
		return turns.Turn{}, ErrNoTranscript
	}
	if !mode.IsValid() {
		return turns.Turn{}, errors.Errorf("unknown completion mode %q", mode)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ro := &runOptions{maxRounds: l.loopCfg.maxRounds()}
	for _, o := range opts {
		o(ro)
	}
	if ro.maxRounds <= 0 {
		ro.maxRounds = l.loopCfg.maxRounds()
	}

	executor, err := tools.NewExecutor(l.registry, l.toolCfg)
	if err != nil {
		return turns.Turn{}, errors.Wrap(err, "invalid tool configuration")
	}
	definitions := executor.Definitions()

	userTurn := tr.AppendUser(userInput)
	l.publishTurn(ctx, userTurn, 0)
	log.Debug().
		Str("session_id", l.sessionID).
		Str("mode", string(mode)).
		Int("tools", len(definitions)).
		Int("max_rounds", ro.maxRounds).
		Msg("toolloop: starting turn")

	for round := 1; round <= ro.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return turns.Turn{}, l.interrupted(ctx, round, err)
		}
		meta := l.metadata(round)

		req := &engine.Request{
			Instructions: l.instructions,
			Turns:        tr.Turns(),
			Tools:        definitions,
			ToolChoice:   executor.Config().ToolChoice,
		}
		l.snapshot(ctx, PhasePreInference, round, tr)

		var resp *engine.Response
		if mode == engine.ModeStreaming {
			resp, err = l.stream(ctx, req, meta, ro)
		} else {
			resp, err = l.provider.Complete(ctx, req)
		}
		if err != nil {
			if ctx.Err() != nil {
				return turns.Turn{}, l.interrupted(ctx, round, ctx.Err())
			}
			events.PublishEventToContext(ctx, events.NewErrorEvent(meta, err))
			return turns.Turn{}, err
		}
		if resp == nil {
			return turns.Turn{}, errors.Errorf("provider returned no response in round %d", round)
		}
		l.snapshot(ctx, PhasePostInference, round, tr)

		switch resp.Kind {
		case engine.ResponseFinal, "":
			t := tr.AppendAssistant(resp.Content, resp.Author)
			events.PublishEventToContext(ctx, events.NewFinalEvent(meta, resp.Author, resp.Content))
			l.publishTurn(ctx, t, round)
			log.Debug().Int("round", round).Str("author", resp.Author).Msg("toolloop: final response")
			return t, nil

		case engine.ResponseToolCalls:
			if len(resp.ToolCalls) == 0 {
				return turns.Turn{}, errors.Errorf("provider returned a tool_calls response without calls in round %d", round)
			}
			if resp.Content != "" {
				log.Debug().
					Int("round", round).
					Str("author", resp.Author).
					Str("content", resp.Content).
					Msg("toolloop: text sent with tool calls is not kept in the transcript")
			}
			calls := withCallIDs(resp.ToolCalls)
			if err := tr.OpenToolCalls(calls); err != nil {
				return turns.Turn{}, errors.Wrapf(err, "round %d", round)
			}
			for _, c := range calls {
				events.PublishEventToContext(ctx, events.NewToolCallEvent(meta, events.ToolCall{
					ID:    c.CallID,
					Name:  c.ToolName,
					Input: turns.FormatArguments(c.Arguments),
				}))
			}
			log.Debug().Int("round", round).Int("calls", len(calls)).Msg("toolloop: executing tool calls")

			for _, c := range calls {
				if err := ctx.Err(); err != nil {
					return turns.Turn{}, l.interrupted(ctx, round, err)
				}
				out, err := executor.ExecuteToolCall(ctx, meta, c)
				if err != nil {
					events.PublishEventToContext(ctx, events.NewErrorEvent(meta, err))
					return turns.Turn{}, err
				}
				t, err := tr.AppendToolResult(c.CallID, c.ToolName, out)
				if err != nil {
					return turns.Turn{}, err
				}
				l.publishTurn(ctx, t, round)
			}
			l.snapshot(ctx, PhasePostTools, round, tr)

		default:
			return turns.Turn{}, errors.Errorf("provider returned unknown response kind %q", resp.Kind)
		}
	}

	log.Warn().Int("max_rounds", ro.maxRounds).Str("session_id", l.sessionID).Msg("toolloop: maximum tool rounds reached")
	return turns.Turn{}, &ToolLoopExceededError{Rounds: ro.maxRounds}
}

// stream folds a streamed response. Fragments are surfaced as they arrive and
// never recorded individually; the accumulation is dropped on cancellation.
func (l *Loop) stream(ctx context.Context, req *engine.Request, meta events.EventMetadata, ro *runOptions) (*engine.Response, error) {
	s, err := l.provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.Close()
	}()

	events.PublishEventToContext(ctx, events.NewStartEvent(meta))
	acc := &engine.Accumulator{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		acc.Add(c)
		if c.Delta == "" {
			continue
		}
		if ro.fragmentHandler != nil {
			ro.fragmentHandler(acc.Author(), c.Delta)
		}
		events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(meta, acc.Author(), c.Delta, acc.Content()))
	}
	log.Trace().Int("chunks", acc.Chunks()).Msg("toolloop: stream complete")
	return acc.Response(), nil
}

func (l *Loop) interrupted(ctx context.Context, round int, err error) error {
	log.Debug().Err(err).Int("round", round).Msg("toolloop: turn interrupted")
	events.PublishEventToContext(ctx, events.NewInterruptEvent(l.metadata(round), err.Error()))
	return err
}

func (l *Loop) publishTurn(ctx context.Context, t turns.Turn, round int) {
	meta := l.metadata(round)
	meta.TurnID = t.ID
	events.PublishEventToContext(ctx, events.NewTurnEvent(meta, t))
}

func (l *Loop) metadata(round int) events.EventMetadata {
	meta := events.NewEventMetadata(l.sessionID)
	meta.Round = round
	return meta
}

// withCallIDs returns a copy of calls where empty call ids are filled in.
func withCallIDs(calls []turns.ToolCallRequest) []turns.ToolCallRequest {
	out := make([]turns.ToolCallRequest, len(calls))
	for i, c := range calls {
		out[i] = c.Clone()
		if out[i].CallID == "" {
			out[i].CallID = "call_" + uuid.NewString()
		}
	}
	return out
}
