package tools

import (
	"strings"

	"github.com/go-go-golems/turnloop/pkg/turns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"
)

func coerceValue(t ParameterType, raw string) (any, error) {
	switch t {
	case ParameterTypeString, "":
		return raw, nil
	case ParameterTypeInteger:
		return cast.ToInt64E(strings.TrimSpace(raw))
	case ParameterTypeNumber:
		return cast.ToFloat64E(strings.TrimSpace(raw))
	case ParameterTypeBoolean:
		return cast.ToBoolE(strings.TrimSpace(raw))
	default:
		return nil, errors.Errorf("unsupported parameter type %q", t)
	}
}

// coerceArguments converts the string arguments of call into the declared
// parameter types. Arguments the tool does not declare are dropped.
func coerceArguments(spec Spec, call turns.ToolCallRequest) (Arguments, error) {
	args := Arguments{}
	for name, raw := range call.Arguments {
		p, ok := spec.Parameter(name)
		if !ok {
			log.Debug().
				Str("tool", spec.Name).
				Str("call_id", call.CallID).
				Str("argument", name).
				Msg("tools: dropping undeclared argument")
			continue
		}
		v, err := coerceValue(p.Type, raw)
		if err != nil {
			return nil, &ArgumentError{ToolName: spec.Name, CallID: call.CallID, Argument: name, Err: err}
		}
		args[name] = v
	}
	return args, nil
}

func compileSchema(spec Spec) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(spec.JSONSchema()))
}

// validateArguments checks coerced arguments against the compiled tool schema.
func validateArguments(schema *gojsonschema.Schema, spec Spec, callID string, args Arguments) error {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(args)))
	if err != nil {
		return &ArgumentError{ToolName: spec.Name, CallID: callID, Err: err}
	}
	if result.Valid() {
		return nil
	}
	descs := make([]string, 0, len(result.Errors()))
	field := ""
	for _, e := range result.Errors() {
		descs = append(descs, e.String())
		if field == "" && e.Field() != "(root)" {
			field = e.Field()
		}
	}
	return &ArgumentError{
		ToolName: spec.Name,
		CallID:   callID,
		Argument: field,
		Err:      errors.New(strings.Join(descs, "; ")),
	}
}
