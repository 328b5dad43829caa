package loam

import (
	"encoding/json"
	"time"
)

type fields map[string]any

func (f fields) Field(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

func (fields) FamilyElapsed(string) time.Duration { return 0 }
func (fields) PhaseElapsed() time.Duration        { return 0 }
func (fields) LoopCount(string) int               { return 0 }

func jsonNumber(s string) json.Number { return json.Number(s) }
