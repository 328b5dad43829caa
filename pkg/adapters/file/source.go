package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/phasewise/internal/logging"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 200 * time.Millisecond

// Source implements ports.GraphSource and ports.Watchable for a single
// YAML or JSON graph file.
type Source struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithDebounce sets how long Watch waits for more changes before signaling.
func WithDebounce(d time.Duration) SourceOption {
	return func(s *Source) {
		s.debounce = d
	}
}

// WithLogger configures a logger for watch errors.
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a source for the graph file at path.
// Files ending in .json are decoded as JSON, everything else as YAML.
func NewSource(path string, opts ...SourceOption) *Source {
	s := &Source{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the watched file.
func (s *Source) Path() string {
	return s.path
}

// Load reads and decodes the graph file.
func (s *Source) Load(ctx context.Context) (graph.Definition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return graph.Definition{}, fmt.Errorf("failed to read graph file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		return graph.ParseJSON(data)
	}
	return graph.ParseYAML(data)
}

// Watch signals when the graph file is written, created or replaced.
// The parent directory is watched so that atomic renames by editors are seen.
// The channel is closed when ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	out := make(chan struct{}, 1)
	go s.loop(ctx, w, out)
	return out, nil
}

func (s *Source) loop(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case out <- struct{}{}:
			default:
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("graph watcher error", "path", s.path, "err", err)
		}
	}
}
