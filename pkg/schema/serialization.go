package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// UnmarshalJSON accepts either a schema object or a bare type name.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		typ, err := ParseType(name)
		if err != nil {
			return err
		}
		*s = Schema{Type: typ}
		return nil
	}

	type plain Schema
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Schema(p)
	s.canonicalize()
	return nil
}

// UnmarshalYAML accepts either a schema mapping or a bare type name.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		typ, err := ParseType(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*s = Schema{Type: typ}
		return nil
	}

	type plain Schema
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Schema(p)
	s.canonicalize()
	return nil
}

// DecodeHook lets mapstructure decode the shorthand type name form into a Schema.
func DecodeHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(Schema{})
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target || from.Kind() != reflect.String {
			return data, nil
		}
		typ, err := ParseType(data.(string))
		if err != nil {
			return nil, err
		}
		return Schema{Type: typ}, nil
	}
}

// canonicalize rewrites type aliases ("int", "bool") to their canonical names.
// Unknown names are left untouched so that Check can report them.
func (s *Schema) canonicalize() {
	if typ, err := ParseType(string(s.Type)); err == nil {
		s.Type = typ
	}
	if s.Type == "" && len(s.Enum) > 0 {
		s.Type = TypeEnum
	}
}
