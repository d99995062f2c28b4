package tools

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRegistryFrozen is returned when registering into a registry that is already in use.
var ErrRegistryFrozen = errors.New("tool registry is frozen")

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError is returned when a call names a tool that is not available.
type UnknownToolError struct {
	Name   string
	CallID string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (call %s)", e.Name, e.CallID)
}

// ArgumentError is returned when call arguments cannot be coerced to the
// declared parameter types or do not satisfy the tool schema.
type ArgumentError struct {
	ToolName string
	CallID   string
	Argument string
	Err      error
}

func (e *ArgumentError) Error() string {
	if e.Argument != "" {
		return fmt.Sprintf("tool %q (call %s): invalid argument %q: %v", e.ToolName, e.CallID, e.Argument, e.Err)
	}
	return fmt.Sprintf("tool %q (call %s): invalid arguments: %v", e.ToolName, e.CallID, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ToolExecutionError wraps a failure raised by a tool handler.
type ToolExecutionError struct {
	ToolName string
	CallID   string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q (call %s) failed: %v", e.ToolName, e.CallID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
