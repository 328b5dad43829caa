package runtime

import (
	"github.com/aretw0/phasewise/pkg/domain"
)

// EvaluateRequirements reports which fields of phase are satisfied, missing or
// invalid for the session. It does not modify the session.
//
// A stored value is re-checked against the phase schema, so a value collected
// under a different phase's schema can still be reported invalid here.
func EvaluateRequirements(sess *domain.Session, phase domain.Phase) domain.Evaluation {
	eval := domain.Evaluation{
		Satisfied: []string{},
		Missing:   []string{},
		Invalid:   []string{},
		Optional:  []string{},
	}

	for _, req := range phase.Requirements {
		if !req.Required {
			eval.Optional = append(eval.Optional, req.Name)
		}

		stored, ok := sess.Fields[req.Name]
		if !ok {
			if req.Required {
				eval.Missing = append(eval.Missing, req.Name)
			}
			continue
		}

		if err := req.Schema.Validate(stored.Value); err != nil {
			if req.Required {
				eval.Invalid = append(eval.Invalid, req.Name)
			}
			continue
		}
		eval.Satisfied = append(eval.Satisfied, req.Name)
	}
	return eval
}
