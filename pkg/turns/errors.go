package turns

import "fmt"

// DanglingToolResultError is returned when a tool result does not answer an
// unresolved request of the current tool-call cycle.
type DanglingToolResultError struct {
	CallID   string
	ToolName string
	Reason   string
}

func (e *DanglingToolResultError) Error() string {
	return fmt.Sprintf("dangling tool result for call %q (%s): %s", e.CallID, e.ToolName, e.Reason)
}
