package memory

import (
	"context"
	"sync"

	"github.com/aretw0/phasewise/pkg/graph"
)

// Source implements ports.GraphSource over a definition held in memory.
// Set replaces the definition and signals watchers, which makes it useful
// for exercising hot reload in tests.
type Source struct {
	mu       sync.RWMutex
	def      graph.Definition
	watchers []chan struct{}
}

// NewSource creates a source serving def.
func NewSource(def graph.Definition) *Source {
	return &Source{def: def}
}

// Load returns the current definition.
func (s *Source) Load(ctx context.Context) (graph.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def, nil
}

// Set replaces the definition and notifies every watcher.
func (s *Source) Set(def graph.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = def

	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel signaled after every Set. It is closed when ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
