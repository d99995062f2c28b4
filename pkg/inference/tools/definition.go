package tools

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ParameterType is the JSON schema type a tool argument is coerced to.
type ParameterType string

const (
	ParameterTypeString  ParameterType = "string"
	ParameterTypeInteger ParameterType = "integer"
	ParameterTypeNumber  ParameterType = "number"
	ParameterTypeBoolean ParameterType = "boolean"
)

// IsValid reports whether t is a supported parameter type.
func (t ParameterType) IsValid() bool {
	switch t {
	case ParameterTypeString, ParameterTypeInteger, ParameterTypeNumber, ParameterTypeBoolean:
		return true
	}
	return false
}

// Parameter describes one named argument of a tool.
type Parameter struct {
	Name        string        `json:"name" yaml:"name"`
	Type        ParameterType `json:"type" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Enum        []string      `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Arguments holds tool arguments after coercion to their declared types.
type Arguments map[string]any

func (a Arguments) String(name string) string {
	return cast.ToString(a[name])
}

func (a Arguments) Int(name string) int64 {
	return cast.ToInt64(a[name])
}

func (a Arguments) Float(name string) float64 {
	return cast.ToFloat64(a[name])
}

func (a Arguments) Bool(name string) bool {
	return cast.ToBool(a[name])
}

// Has reports whether the argument was provided.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Handler executes a tool. It may have arbitrary side effects; the registry
// neither retries nor sandboxes it.
type Handler func(ctx context.Context, args Arguments) (string, error)

// Spec is a callable tool: its schema plus the handler that implements it.
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Definition is the provider-facing description of a tool.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Definition returns the provider-facing description of the tool.
func (s Spec) Definition() Definition {
	return Definition{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.JSONSchema(),
	}
}

// JSONSchema returns the object schema for the tool arguments, with properties
// in declaration order.
func (s Spec) JSONSchema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	required := []string{}
	for _, p := range s.Parameters {
		ps := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
		}
		for _, e := range p.Enum {
			v, err := coerceValue(p.Type, e)
			if err != nil {
				v = e
			}
			ps.Enum = append(ps.Enum, v)
		}
		props.Set(p.Name, ps)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// Parameter returns the declared parameter with the given name.
func (s Spec) Parameter(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
