package schema

import "sort"

// Field binds a schema to a field name.
type Field struct {
	Name     string
	Required bool
	Schema   Schema
}

// NormalizeField normalizes a single named value against its schema.
func NormalizeField(name string, s Schema, value any) (any, *ValidationError) {
	normalized, err := s.Normalize(value)
	if err != nil {
		return nil, &ValidationError{
			Key:    name,
			Reason: err.Error(),
			Value:  value,
		}
	}
	return normalized, nil
}

// Validate checks data against the given fields.
// Missing required fields and invalid values are collected into an AggregateError
// in field order. Keys in data that no field declares are reported in sorted order,
// so with no fields every key is unknown.
func Validate(fields []Field, data map[string]any) error {
	var errs []error
	declared := make(map[string]bool, len(fields))

	for _, f := range fields {
		declared[f.Name] = true
		value, exists := data[f.Name]
		if !exists {
			if f.Required {
				errs = append(errs, &ValidationError{
					Key:    f.Name,
					Reason: "required",
				})
			}
			continue
		}
		if _, verr := NormalizeField(f.Name, f.Schema, value); verr != nil {
			errs = append(errs, verr)
		}
	}

	var unknown []string
	for key := range data {
		if !declared[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, &ValidationError{
			Key:    key,
			Reason: "not defined in schema",
			Value:  data[key],
		})
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
