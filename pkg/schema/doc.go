// Package schema provides the typed value schema used by phase field requirements.
//
// A schema is a JSON-Schema-like subset limited to primitive types and enums:
//
//	{type: integer, minimum: 0, maximum: 10, description: "SUDS rating"}
//
// Schemas are parsed once when a phase graph is loaded. Normalize coerces a raw
// value (as received from JSON, YAML or a chat tool call) into its canonical Go
// type and checks range and enum constraints:
//
//	s := schema.Integer().Between(0, 10)
//	v, err := s.Normalize("7") // int64(7), nil
//	_, err = s.Normalize(15)   // *ValidationError: above maximum 10
//
// Canonical types are string, int64, float64 and bool. Enum values normalize to
// the declared spelling of the matching option.
//
// For strings, minimum and maximum bound the length in runes.
//
// Schemas can be written in configuration either as an object or with the
// shorthand type name ("string", "integer", "number", "boolean").
package schema
