package toolloop

import (
	"context"

	"github.com/go-go-golems/turnloop/pkg/turns"
)

// Snapshot phases passed to a SnapshotHook.
const (
	PhasePreInference  = "pre_inference"
	PhasePostInference = "post_inference"
	PhasePostTools     = "post_tools"
)

// SnapshotHook observes the transcript at defined phases of a turn.
type SnapshotHook func(ctx context.Context, phase string, round int, ts []turns.Turn)

type snapshotHookKey struct{}

// WithTurnSnapshotHook attaches a snapshot hook to the context.
func WithTurnSnapshotHook(ctx context.Context, hook SnapshotHook) context.Context {
	if hook == nil {
		return ctx
	}
	return context.WithValue(ctx, snapshotHookKey{}, hook)
}

// TurnSnapshotHookFromContext returns the snapshot hook attached to the context, if any.
func TurnSnapshotHookFromContext(ctx context.Context) (SnapshotHook, bool) {
	h, ok := ctx.Value(snapshotHookKey{}).(SnapshotHook)
	return h, ok && h != nil
}
