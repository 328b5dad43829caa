package condition

import "time"

// Names of the built-in presets.
const (
	SUDSZero              = "suds_zero"
	SUDSAboveZeroContinue = "suds_above_zero_continue"
	SUDSAboveZeroTimeout  = "suds_above_zero_timeout"
)

const (
	// SUDSField is the field holding the latest subjective distress rating (0-10).
	SUDSField = "suds_current"
	// ProcessingFamily is the loop family of the focused processing phase.
	ProcessingFamily = "processing"
	// ProcessingLimit is the cumulative processing time after which a session
	// that still reports distress moves on to micro-reprocessing.
	ProcessingLimit = 20 * time.Minute
)

// Presets returns the built-in named predicates. The map is a fresh copy.
func Presets() map[string]Spec {
	limit := int(ProcessingLimit / time.Second)
	aboveZero := Spec{Kind: KindFieldAbove, Field: SUDSField, Value: 0}

	return map[string]Spec{
		SUDSZero: {Kind: KindFieldEquals, Field: SUDSField, Value: 0},
		SUDSAboveZeroContinue: {Kind: KindAll, Of: []Spec{
			aboveZero,
			{Kind: KindFamilyElapsedBelow, Family: ProcessingFamily, Seconds: limit},
		}},
		SUDSAboveZeroTimeout: {Kind: KindAll, Of: []Spec{
			aboveZero,
			{Kind: KindFamilyElapsedAtLeast, Family: ProcessingFamily, Seconds: limit},
		}},
	}
}

// Resolve merges custom named predicates over the presets. Custom entries
// replace presets with the same name.
func Resolve(custom map[string]Spec) map[string]Spec {
	out := Presets()
	for name, spec := range custom {
		out[name] = spec
	}
	return out
}
