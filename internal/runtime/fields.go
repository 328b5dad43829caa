package runtime

import (
	"sort"
	"time"

	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/schema"
)

// SubmitField validates raw against the field declared by phase and stores the
// normalized value. A rejected value leaves the stored value untouched.
func SubmitField(sess *domain.Session, phase domain.Phase, name string, raw any, now time.Time) (any, *schema.ValidationError) {
	req, ok := phase.Requirement(name)
	if !ok {
		return nil, &schema.ValidationError{Key: name, Reason: "unknown field for phase " + phase.ID, Value: raw}
	}

	value, verr := schema.NormalizeField(name, req.Schema, raw)
	if verr != nil {
		return nil, verr
	}

	if sess.Fields == nil {
		sess.Fields = make(map[string]domain.SessionFieldValue)
	}
	sess.Fields[name] = domain.SessionFieldValue{
		PhaseID:   phase.ID,
		Name:      name,
		Value:     value,
		ValueType: valueType(req.Schema),
		UpdatedAt: now,
	}
	return value, nil
}

// SubmitFields stores every value of fields in name order. It returns the
// accepted names and the rejections.
func SubmitFields(sess *domain.Session, phase domain.Phase, fields map[string]any, now time.Time) ([]string, []domain.FieldRejection) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var accepted []string
	var rejected []domain.FieldRejection
	for _, name := range names {
		if _, verr := SubmitField(sess, phase, name, fields[name], now); verr != nil {
			rejected = append(rejected, domain.FieldRejection{
				PhaseID: phase.ID,
				Field:   name,
				Value:   fields[name],
				Reason:  verr.Reason,
			})
			continue
		}
		accepted = append(accepted, name)
	}
	return accepted, rejected
}

// CheckFields validates data against every field phase declares without storing
// anything. Failures are returned as a *schema.AggregateError.
func CheckFields(phase domain.Phase, data map[string]any) error {
	fields := make([]schema.Field, len(phase.Requirements))
	for i, req := range phase.Requirements {
		fields[i] = schema.Field{Name: req.Name, Required: req.Required, Schema: req.Schema}
	}
	return schema.Validate(fields, data)
}

// ClearFields removes stored values.
func ClearFields(sess *domain.Session, names ...string) {
	for _, name := range names {
		delete(sess.Fields, name)
	}
}

func valueType(s schema.Schema) schema.Type {
	if s.IsEnum() {
		return schema.TypeEnum
	}
	return s.Type
}
