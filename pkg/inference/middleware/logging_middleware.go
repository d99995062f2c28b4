package middleware

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/inference/engine"
	"github.com/go-go-golems/turnloop/pkg/inference/session"
	"github.com/go-go-golems/turnloop/pkg/tokens"
)

// NewLoggingMiddleware logs every provider call with the size of the request
// and the kind of response. When counter is set, prompt and completion
// tokens are counted as well.
func NewLoggingMiddleware(logger zerolog.Logger, counter *tokens.Counter) Middleware {
	return func(next engine.Provider) engine.Provider {
		m := &loggingProvider{next: next, logger: logger, counter: counter}
		return &ProviderFuncs{Next: next, CompleteFn: m.complete, StreamFn: m.stream}
	}
}

type loggingProvider struct {
	next    engine.Provider
	logger  zerolog.Logger
	counter *tokens.Counter
}

func (m *loggingProvider) requestLogger(ctx context.Context, req *engine.Request, mode engine.Mode) zerolog.Logger {
	lg := m.logger
	// fall back to global if uninitialized
	if lg.GetLevel() == zerolog.NoLevel {
		lg = log.Logger
	}
	c := lg.With().
		Str("session_id", session.SessionIDFromContext(ctx)).
		Str("run_id", session.RunIDFromContext(ctx)).
		Str("mode", string(mode)).
		Int("turn_count", len(req.Turns)).
		Int("tool_count", len(req.Tools))
	if m.counter != nil {
		n, err := m.counter.Count(req.Instructions)
		if err == nil {
			if s, err := m.counter.CountTurns(req.Turns); err == nil {
				c = c.Int("prompt_tokens", n+s.TotalTokens)
			}
		}
	}
	return c.Logger()
}

func (m *loggingProvider) logResponse(lg zerolog.Logger, resp *engine.Response, start time.Time) {
	ev := lg.Debug().
		Str("kind", string(resp.Kind)).
		Int("tool_calls", len(resp.ToolCalls)).
		Dur("duration", time.Since(start))
	if m.counter != nil {
		if n, err := m.counter.Count(resp.Content); err == nil {
			ev = ev.Int("completion_tokens", n)
		}
	}
	ev.Msg("provider: completion finished")
}

func (m *loggingProvider) complete(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	lg := m.requestLogger(ctx, req, engine.ModeAtomic)
	lg.Debug().Msg("provider: starting completion")
	start := time.Now()

	resp, err := m.next.Complete(ctx, req)
	if err != nil {
		lg.Error().Err(err).Dur("duration", time.Since(start)).Msg("provider: completion failed")
		return nil, err
	}
	m.logResponse(lg, resp, start)
	return resp, nil
}

func (m *loggingProvider) stream(ctx context.Context, req *engine.Request) (engine.Stream, error) {
	lg := m.requestLogger(ctx, req, engine.ModeStreaming)
	lg.Debug().Msg("provider: starting completion")
	start := time.Now()

	s, err := m.next.Stream(ctx, req)
	if err != nil {
		lg.Error().Err(err).Dur("duration", time.Since(start)).Msg("provider: completion failed")
		return nil, err
	}
	return &loggingStream{Stream: s, m: m, lg: lg, start: start}, nil
}

// loggingStream folds the chunks it forwards so the finished response can be logged.
type loggingStream struct {
	engine.Stream
	m     *loggingProvider
	lg    zerolog.Logger
	start time.Time
	acc   engine.Accumulator
	done  bool
}

func (s *loggingStream) Recv() (engine.Chunk, error) {
	c, err := s.Stream.Recv()
	switch {
	case err == io.EOF:
		if !s.done {
			s.done = true
			s.m.logResponse(s.lg.With().Int("chunks", s.acc.Chunks()).Logger(), s.acc.Response(), s.start)
		}
	case err != nil:
		s.lg.Error().Err(err).Int("chunks", s.acc.Chunks()).Msg("provider: stream failed")
	default:
		s.acc.Add(c)
	}
	return c, err
}
