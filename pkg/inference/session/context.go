package session

import (
	"context"

	"github.com/go-go-golems/turnloop/pkg/helpers"
)

type sessionMetaContextKey string

const (
	sessionIDContextKey sessionMetaContextKey = "session_id"
	runIDContextKey     sessionMetaContextKey = "run_id"
)

// WithSessionMeta stores the session and run identifiers in ctx so tool
// handlers and sinks can correlate work for a single turn. The session id
// doubles as the watermill correlation id.
func WithSessionMeta(ctx context.Context, sessionID, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionID != "" {
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
		ctx = helpers.ContextWithCorrelationID(ctx, sessionID)
	}
	if runID != "" {
		ctx = context.WithValue(ctx, runIDContextKey, runID)
	}
	return ctx
}

// SessionIDFromContext returns the session identifier attached with
// WithSessionMeta, or "" when unavailable.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}

// RunIDFromContext returns the run identifier of the current turn.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	runID, _ := ctx.Value(runIDContextKey).(string)
	return runID
}
