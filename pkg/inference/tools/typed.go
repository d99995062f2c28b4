package tools

import (
	"context"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// NewTypedTool derives a Spec from the fields of the struct T and wraps fn so
// that it receives the coerced arguments decoded into a T.
//
// Field names become snake_case parameter names unless a json tag names them.
// Fields without omitempty are required. Descriptions and enums are read from
// jsonschema tags, e.g. `jsonschema:"description=The dish,enum=soup,enum=salad"`.
func NewTypedTool[T any](name string, description string, fn func(ctx context.Context, in T) (string, error)) (Spec, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return Spec{}, errors.Errorf("tool %q: argument type %s is not a struct", name, t)
	}

	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		KeyNamer:       strcase.ToSnake,
	}
	schema := reflector.ReflectFromType(t)

	params, err := parametersFromSchema(name, schema)
	if err != nil {
		return Spec{}, err
	}

	handler := func(ctx context.Context, args Arguments) (string, error) {
		var in T
		if err := decodeArguments(args, &in); err != nil {
			return "", errors.Wrapf(err, "could not decode arguments for %q", name)
		}
		return fn(ctx, in)
	}

	return Spec{
		Name:        name,
		Description: description,
		Parameters:  params,
		Handler:     handler,
	}, nil
}

func parametersFromSchema(toolName string, schema *jsonschema.Schema) ([]Parameter, error) {
	if schema == nil || schema.Properties == nil {
		return nil, nil
	}
	required := map[string]bool{}
	for _, r := range schema.Required {
		required[r] = true
	}

	var params []Parameter
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		pt := ParameterType(prop.Type)
		if !pt.IsValid() {
			return nil, errors.Errorf("tool %q: field %q has unsupported type %q", toolName, pair.Key, prop.Type)
		}
		p := Parameter{
			Name:        pair.Key,
			Type:        pt,
			Description: prop.Description,
			Required:    required[pair.Key],
		}
		for _, e := range prop.Enum {
			p.Enum = append(p.Enum, cast.ToString(e))
		}
		params = append(params, p)
	}
	return params, nil
}

func decodeArguments(args Arguments, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]interface{}(args))
}

func normalizeKey(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}
