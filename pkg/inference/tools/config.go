package tools

import (
	"github.com/mb0/glob"
	"github.com/pkg/errors"
)

// ToolConfig specifies how tools are offered to the model and how tool failures are handled.
type ToolConfig struct {
	ToolChoice        ToolChoice        `json:"tool_choice" yaml:"tool_choice"`
	AllowedTools      []string          `json:"allowed_tools" yaml:"allowed_tools"`
	ToolErrorHandling ToolErrorHandling `json:"tool_error_handling" yaml:"tool_error_handling"`
}

// DefaultToolConfig offers every tool, lets the model decide, and aborts the turn on tool failures.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ToolChoice:        ToolChoiceAuto,
		AllowedTools:      nil, // nil means all tools are allowed
		ToolErrorHandling: ToolErrorAbort,
	}
}

func (tc ToolConfig) WithToolChoice(choice ToolChoice) ToolConfig {
	tc.ToolChoice = choice
	return tc
}

func (tc ToolConfig) WithAllowedTools(patterns []string) ToolConfig {
	tc.AllowedTools = patterns
	return tc
}

func (tc ToolConfig) WithToolErrorHandling(handling ToolErrorHandling) ToolConfig {
	tc.ToolErrorHandling = handling
	return tc
}

// ToolChoice defines how the model should choose tools
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"     // Let the model decide
	ToolChoiceNone     ToolChoice = "none"     // Never call tools
	ToolChoiceRequired ToolChoice = "required" // Must call at least one tool
)

// ToolErrorHandling defines how to handle tool execution errors
type ToolErrorHandling string

const (
	// ToolErrorAbort fails the turn with the ToolExecutionError.
	ToolErrorAbort ToolErrorHandling = "abort"
	// ToolErrorContinue appends the error text as the tool result and keeps going.
	ToolErrorContinue ToolErrorHandling = "continue"
)

// Validate checks the enumerated fields and the allow-list patterns.
func (tc ToolConfig) Validate() error {
	switch tc.ToolChoice {
	case "", ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
	default:
		return errors.Errorf("unknown tool choice %q", tc.ToolChoice)
	}
	switch tc.ToolErrorHandling {
	case "", ToolErrorAbort, ToolErrorContinue:
	default:
		return errors.Errorf("unknown tool error handling %q", tc.ToolErrorHandling)
	}
	for _, p := range tc.AllowedTools {
		if _, err := glob.Match(p, ""); err != nil {
			return errors.Wrapf(err, "invalid allowed_tools pattern %q", p)
		}
	}
	return nil
}

// Filter returns the specs whose names match at least one glob pattern.
// A nil pattern list allows every tool.
func Filter(specs []Spec, patterns []string) ([]Spec, error) {
	if patterns == nil {
		return specs, nil
	}
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		for _, p := range patterns {
			ok, err := glob.Match(p, s.Name)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid allowed_tools pattern %q", p)
			}
			if ok {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}
