package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ToolRegistry holds the tools available to a conversation and dispatches calls to them.
type ToolRegistry interface {
	Register(spec Spec) error
	Invoke(ctx context.Context, call turns.ToolCallRequest) (string, error)
	Lookup(name string) (Spec, bool)
	Specs() []Spec
	Freeze()
}

type registeredTool struct {
	spec   Spec
	schema *gojsonschema.Schema
}

// InMemoryToolRegistry is a thread-safe in-memory implementation of ToolRegistry.
//
// Registration is a setup-phase operation: once Freeze has been called (sessions
// do this when they are created) further registrations fail with ErrRegistryFrozen.
type InMemoryToolRegistry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]registeredTool
	frozen bool
}

// NewInMemoryToolRegistry creates a new in-memory tool registry
func NewInMemoryToolRegistry() *InMemoryToolRegistry {
	return &InMemoryToolRegistry{
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool. A name that is already registered fails with
// DuplicateToolError and leaves the first registration in place.
func (r *InMemoryToolRegistry) Register(spec Spec) error {
	if err := checkSpec(spec); err != nil {
		return err
	}
	schema, err := compileSchema(spec)
	if err != nil {
		return errors.Wrapf(err, "could not compile schema for tool %q", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.Wrapf(ErrRegistryFrozen, "register %q", spec.Name)
	}
	if _, exists := r.tools[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}

	spec.Parameters = append([]Parameter(nil), spec.Parameters...)
	r.tools[spec.Name] = registeredTool{spec: spec, schema: schema}
	r.order = append(r.order, spec.Name)
	log.Debug().Str("tool", spec.Name).Int("parameters", len(spec.Parameters)).Msg("tools: registered tool")
	return nil
}

func checkSpec(spec Spec) error {
	if spec.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if spec.Handler == nil {
		return errors.Errorf("tool %q has no handler", spec.Name)
	}
	seen := map[string]bool{}
	for _, p := range spec.Parameters {
		if p.Name == "" {
			return errors.Errorf("tool %q has a parameter without a name", spec.Name)
		}
		if seen[p.Name] {
			return errors.Errorf("tool %q declares parameter %q twice", spec.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.IsValid() {
			return errors.Errorf("tool %q parameter %q has unsupported type %q", spec.Name, p.Name, p.Type)
		}
	}
	return nil
}

// Invoke runs the handler of the tool named by call.
//
// Arguments are coerced to the declared parameter types and validated against
// the tool schema before the handler runs. Handler errors and panics are
// returned as ToolExecutionError.
func (r *InMemoryToolRegistry) Invoke(ctx context.Context, call turns.ToolCallRequest) (result string, err error) {
	r.mu.RLock()
	tool, ok := r.tools[call.ToolName]
	r.mu.RUnlock()
	if !ok {
		return "", &UnknownToolError{Name: call.ToolName, CallID: call.CallID}
	}

	args, err := coerceArguments(tool.spec, call)
	if err != nil {
		return "", err
	}
	if err := validateArguments(tool.schema, tool.spec, call.CallID, args); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = &ToolExecutionError{ToolName: call.ToolName, CallID: call.CallID, Err: fmt.Errorf("panic: %v", rec)}
			result = ""
		}
		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("tool", call.ToolName).
			Str("call_id", call.CallID).
			Dur("duration", time.Since(start)).
			Msg("tools: invoked tool")
	}()

	out, herr := tool.spec.Handler(ctx, args)
	if herr != nil {
		return "", &ToolExecutionError{ToolName: call.ToolName, CallID: call.CallID, Err: herr}
	}
	return out, nil
}

// Lookup returns the spec registered under name.
func (r *InMemoryToolRegistry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t.spec, ok
}

// Specs returns the registered tools in registration order.
func (r *InMemoryToolRegistry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].spec)
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *InMemoryToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// HasTool checks if a tool exists in the registry
func (r *InMemoryToolRegistry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Count returns the number of tools in the registry
func (r *InMemoryToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Freeze ends the registration phase.
func (r *InMemoryToolRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *InMemoryToolRegistry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Definitions returns the provider-facing descriptions of specs.
func Definitions(specs []Spec) []Definition {
	out := make([]Definition, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Definition())
	}
	return out
}

var _ ToolRegistry = (*InMemoryToolRegistry)(nil)
