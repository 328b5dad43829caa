// Package middleware wraps a SessionStore to add behavior at the persistence
// boundary, such as at-rest encryption of collected fields or masking of
// identifying fields.
package middleware

import "github.com/aretw0/phasewise/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so that the first one sees the session first on Save.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
