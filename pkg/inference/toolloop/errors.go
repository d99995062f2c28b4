package toolloop

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoProvider   = errors.New("tool loop has no provider")
	ErrNoTranscript = errors.New("tool loop has no transcript")
)

// ToolLoopExceededError is returned when a turn needs more completion requests than allowed.
// Turns appended before the bound was hit stay in the transcript.
type ToolLoopExceededError struct {
	Rounds int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d rounds without a final answer", e.Rounds)
}
