package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Type names the primitive kind of a field value.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeEnum    Type = "enum"
)

// ParseType converts a type name to a Type.
// Accepts the canonical names plus the short aliases "int", "float" and "bool".
func ParseType(typeStr string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(typeStr)) {
	case "string", "str", "text":
		return TypeString, nil
	case "integer", "int":
		return TypeInteger, nil
	case "number", "float", "double":
		return TypeNumber, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "enum":
		return TypeEnum, nil
	default:
		return "", fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// Schema describes the accepted values of a single field.
type Schema struct {
	Type        Type     `json:"type" yaml:"type" mapstructure:"type"`
	Minimum     *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty" mapstructure:"minimum"`
	Maximum     *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty" mapstructure:"maximum"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty" mapstructure:"enum"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// --- Factory Functions ---

// String creates a string schema.
func String() Schema { return Schema{Type: TypeString} }

// Integer creates an integer schema.
func Integer() Schema { return Schema{Type: TypeInteger} }

// Number creates a floating-point schema.
func Number() Schema { return Schema{Type: TypeNumber} }

// Bool creates a boolean schema.
func Bool() Schema { return Schema{Type: TypeBoolean} }

// Enum creates an enum schema accepting exactly the given options.
func Enum(options ...string) Schema {
	return Schema{Type: TypeEnum, Enum: options}
}

// Between returns a copy of s bounded to [min, max].
func (s Schema) Between(min, max float64) Schema {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

// Min returns a copy of s with a lower bound.
func (s Schema) Min(min float64) Schema {
	s.Minimum = &min
	return s
}

// Max returns a copy of s with an upper bound.
func (s Schema) Max(max float64) Schema {
	s.Maximum = &max
	return s
}

// Describe returns a copy of s with a description.
func (s Schema) Describe(description string) Schema {
	s.Description = description
	return s
}

// Clone returns a copy that shares no pointers or slices with s.
func (s Schema) Clone() Schema {
	if s.Minimum != nil {
		v := *s.Minimum
		s.Minimum = &v
	}
	if s.Maximum != nil {
		v := *s.Maximum
		s.Maximum = &v
	}
	s.Enum = append([]string(nil), s.Enum...)
	return s
}

// IsEnum reports whether values are restricted to a closed option set.
func (s Schema) IsEnum() bool {
	return s.Type == TypeEnum || len(s.Enum) > 0
}

// Check verifies that the schema itself is well formed.
func (s Schema) Check() error {
	if _, err := ParseType(string(s.Type)); err != nil {
		return err
	}
	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		return fmt.Errorf("minimum %v is greater than maximum %v", *s.Minimum, *s.Maximum)
	}
	switch s.Type {
	case TypeEnum:
		if len(s.Enum) == 0 {
			return fmt.Errorf("enum type requires at least one option")
		}
	case TypeString:
	default:
		if len(s.Enum) > 0 {
			return fmt.Errorf("enum options are not supported for type %s", s.Type)
		}
	}
	if s.Type == TypeBoolean && (s.Minimum != nil || s.Maximum != nil) {
		return fmt.Errorf("bounds are not supported for type boolean")
	}
	return nil
}

// Validate checks if a value conforms to this schema.
func (s Schema) Validate(value any) error {
	_, err := s.Normalize(value)
	return err
}

// Normalize coerces value into the canonical Go type for the schema and checks
// its constraints. The returned error, when not nil, is a plain error describing
// the failure; callers wrap it in a ValidationError with the field name.
func (s Schema) Normalize(value any) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("value is null")
	}

	if s.IsEnum() {
		return s.normalizeEnum(value)
	}

	switch s.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		if err := s.checkBounds(float64(utf8.RuneCountInString(str)), "length"); err != nil {
			return nil, err
		}
		return str, nil
	case TypeInteger:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if err := s.checkBounds(float64(n), "value"); err != nil {
			return nil, err
		}
		return n, nil
	case TypeNumber:
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		if err := s.checkBounds(f, "value"); err != nil {
			return nil, err
		}
		return f, nil
	case TypeBoolean:
		return toBool(value)
	default:
		return nil, fmt.Errorf("unsupported type: %s", s.Type)
	}
}

func (s Schema) normalizeEnum(value any) (any, error) {
	var str string
	switch v := value.(type) {
	case string:
		str = strings.TrimSpace(v)
	case fmt.Stringer:
		str = v.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		str = fmt.Sprintf("%v", v)
	default:
		return nil, fmt.Errorf("expected one of %v, got %T", s.Enum, value)
	}

	for _, opt := range s.Enum {
		if opt == str {
			return opt, nil
		}
	}
	for _, opt := range s.Enum {
		if strings.EqualFold(opt, str) {
			return opt, nil
		}
	}
	return nil, fmt.Errorf("expected one of %v, got %q", s.Enum, str)
}

func (s Schema) checkBounds(v float64, what string) error {
	if s.Minimum != nil && v < *s.Minimum {
		return fmt.Errorf("%s %v is below minimum %v", what, v, *s.Minimum)
	}
	if s.Maximum != nil && v > *s.Maximum {
		return fmt.Errorf("%s %v is above maximum %v", what, v, *s.Maximum)
	}
	return nil
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return wholeFloat(float64(v))
	case float64:
		// Accept floats that are whole numbers (from JSON unmarshaling)
		return wholeFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", v.String())
		}
		return wholeFloat(f)
	case string:
		clean := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", v)
		}
		return wholeFloat(f)
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

func wholeFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got float (not a whole number)")
	}
	return int64(f), nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := toInt(v)
		return float64(n), err
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return true, nil
		case "false", "no", "n", "0":
			return false, nil
		}
		return false, fmt.Errorf("expected boolean, got %q", v)
	default:
		return false, fmt.Errorf("expected boolean, got %T", value)
	}
}
