package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/ports"
	"github.com/aretw0/phasewise/pkg/schema"
)

// Mask replaces the value of a redacted field.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks fields whose names match the patterns.
// Masking is lossy: a reloaded session sees the mask, not the original value.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	// Clone to avoid side effects on the in-memory session used by the controller.
	cloned := sess.Clone()
	for name, v := range cloned.Fields {
		if m.sensitive(name) {
			v.Value = Mask
			v.ValueType = schema.TypeString
			cloned.Fields[name] = v
		}
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) sensitive(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
