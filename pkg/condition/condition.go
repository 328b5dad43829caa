// Package condition implements the closed set of predicates that guard
// conditional transition edges.
//
// Every predicate is a Spec tagged with a Kind. Specs are checked when a graph
// is loaded and evaluated through a single dispatch function against the
// session Facts. A predicate whose inputs are absent (a field that was never
// collected) evaluates to false rather than failing.
package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies a predicate variant.
type Kind string

const (
	// KindFieldEquals is true when the field equals Value.
	KindFieldEquals Kind = "field_equals"
	// KindFieldAbove is true when the numeric field is strictly greater than Value.
	KindFieldAbove Kind = "field_above"
	// KindFieldBelow is true when the numeric field is strictly less than Value.
	KindFieldBelow Kind = "field_below"
	// KindFamilyElapsedBelow is true while the cumulative time spent in Family is under Seconds.
	KindFamilyElapsedBelow Kind = "family_elapsed_below"
	// KindFamilyElapsedAtLeast is true once the cumulative time spent in Family reaches Seconds.
	KindFamilyElapsedAtLeast Kind = "family_elapsed_at_least"
	// KindPhaseElapsedAtLeast is true once the live phase visit lasted Seconds.
	KindPhaseElapsedAtLeast Kind = "phase_elapsed_at_least"
	// KindLoopCountBelow is true while Family was re-entered fewer than Value times.
	KindLoopCountBelow Kind = "loop_count_below"
	// KindLoopCountAtLeast is true once Family was re-entered at least Value times.
	KindLoopCountAtLeast Kind = "loop_count_at_least"
	// KindAll is true when every nested predicate is true.
	KindAll Kind = "all"
	// KindAny is true when at least one nested predicate is true.
	KindAny Kind = "any"
)

// Spec is a single predicate. Only the parameters relevant to Kind are read.
type Spec struct {
	Kind    Kind   `json:"kind" yaml:"kind" mapstructure:"kind"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`
	Family  string `json:"family,omitempty" yaml:"family,omitempty" mapstructure:"family"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Seconds int    `json:"seconds,omitempty" yaml:"seconds,omitempty" mapstructure:"seconds"`
	Of      []Spec `json:"of,omitempty" yaml:"of,omitempty" mapstructure:"of"`
}

// Facts is the read-only view of a session that predicates consult.
type Facts interface {
	// Field returns the normalized value collected for name.
	Field(name string) (any, bool)
	// FamilyElapsed returns the cumulative time spent in a loop family,
	// including the live visit when it belongs to the family.
	FamilyElapsed(family string) time.Duration
	// PhaseElapsed returns the duration of the live phase visit.
	PhaseElapsed() time.Duration
	// LoopCount returns how many times the family was re-entered.
	LoopCount(family string) int
}

// Evaluate dispatches on the predicate kind.
func Evaluate(spec Spec, facts Facts) bool {
	switch spec.Kind {
	case KindFieldEquals:
		v, ok := facts.Field(spec.Field)
		if !ok {
			return false
		}
		return equal(v, spec.Value)
	case KindFieldAbove:
		cmp, ok := compareField(facts, spec)
		return ok && cmp > 0
	case KindFieldBelow:
		cmp, ok := compareField(facts, spec)
		return ok && cmp < 0
	case KindFamilyElapsedBelow:
		return facts.FamilyElapsed(spec.Family) < spec.threshold()
	case KindFamilyElapsedAtLeast:
		return facts.FamilyElapsed(spec.Family) >= spec.threshold()
	case KindPhaseElapsedAtLeast:
		return facts.PhaseElapsed() >= spec.threshold()
	case KindLoopCountBelow:
		n, ok := toFloat(spec.Value)
		return ok && float64(facts.LoopCount(spec.Family)) < n
	case KindLoopCountAtLeast:
		n, ok := toFloat(spec.Value)
		return ok && float64(facts.LoopCount(spec.Family)) >= n
	case KindAll:
		if len(spec.Of) == 0 {
			return false
		}
		for _, sub := range spec.Of {
			if !Evaluate(sub, facts) {
				return false
			}
		}
		return true
	case KindAny:
		for _, sub := range spec.Of {
			if Evaluate(sub, facts) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Check verifies that the spec carries the parameters its kind reads.
func Check(spec Spec) error {
	switch spec.Kind {
	case KindFieldEquals:
		if spec.Field == "" {
			return fmt.Errorf("%s: field is required", spec.Kind)
		}
		if spec.Value == nil {
			return fmt.Errorf("%s: value is required", spec.Kind)
		}
	case KindFieldAbove, KindFieldBelow:
		if spec.Field == "" {
			return fmt.Errorf("%s: field is required", spec.Kind)
		}
		if _, ok := toFloat(spec.Value); !ok {
			return fmt.Errorf("%s: numeric value is required, got %v", spec.Kind, spec.Value)
		}
	case KindFamilyElapsedBelow, KindFamilyElapsedAtLeast:
		if spec.Family == "" {
			return fmt.Errorf("%s: family is required", spec.Kind)
		}
		if spec.Seconds < 0 {
			return fmt.Errorf("%s: seconds must not be negative", spec.Kind)
		}
	case KindPhaseElapsedAtLeast:
		if spec.Seconds < 0 {
			return fmt.Errorf("%s: seconds must not be negative", spec.Kind)
		}
	case KindLoopCountBelow, KindLoopCountAtLeast:
		if spec.Family == "" {
			return fmt.Errorf("%s: family is required", spec.Kind)
		}
		if _, ok := toFloat(spec.Value); !ok {
			return fmt.Errorf("%s: numeric value is required, got %v", spec.Kind, spec.Value)
		}
	case KindAll, KindAny:
		if len(spec.Of) == 0 {
			return fmt.Errorf("%s: at least one nested condition is required", spec.Kind)
		}
		for i, sub := range spec.Of {
			if err := Check(sub); err != nil {
				return fmt.Errorf("%s[%d]: %w", spec.Kind, i, err)
			}
		}
	case "":
		return fmt.Errorf("condition kind is required")
	default:
		return fmt.Errorf("unknown condition kind: %s", spec.Kind)
	}
	return nil
}

// Fields returns every field name the predicate reads, depth first.
func Fields(spec Spec) []string {
	var out []string
	if spec.Field != "" {
		out = append(out, spec.Field)
	}
	for _, sub := range spec.Of {
		out = append(out, Fields(sub)...)
	}
	return out
}

func (s Spec) threshold() time.Duration {
	return time.Duration(s.Seconds) * time.Second
}

func compareField(facts Facts, spec Spec) (int, bool) {
	v, ok := facts.Field(spec.Field)
	if !ok {
		return 0, false
	}
	a, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	b, ok := toFloat(spec.Value)
	if !ok {
		return 0, false
	}
	switch {
	case a > b:
		return 1, true
	case a < b:
		return -1, true
	default:
		return 0, true
	}
}

func equal(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
