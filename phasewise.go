package phasewise

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/phasewise/graphs"
	"github.com/aretw0/phasewise/internal/logging"
	"github.com/aretw0/phasewise/internal/runtime"
	"github.com/aretw0/phasewise/pkg/adapters/file"
	loamAdapter "github.com/aretw0/phasewise/pkg/adapters/loam"
	"github.com/aretw0/phasewise/pkg/adapters/memory"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/ports"
	"github.com/aretw0/phasewise/pkg/session"
)

// TargetNext asks Transition to follow whatever edge evaluation selects.
const TargetNext = runtime.TargetNext

// Engine is the high-level entry point for the phasewise library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	controller *runtime.Controller
	source     ports.GraphSource
	store      ports.SessionStore
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	clock      runtime.Clock
	Name       string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSource injects a custom GraphSource, bypassing graph reference resolution.
func WithSource(s ports.GraphSource) Option {
	return func(e *Engine) {
		e.source = s
	}
}

// WithStore sets the session store (default: in memory).
func WithStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker adds a distributed lock around every session mutation.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL sets the expiry of distributed session locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// New initializes a new Engine.
//
// ref selects the phase graph: the name of an embedded preset ("stages",
// "phases"), a YAML or JSON graph file, or a directory of phase documents.
// If WithSource is provided, ref is only used as a label.
func New(ref string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	if eng.source == nil {
		src, err := Resolve(ref, eng.logger)
		if err != nil {
			return nil, err
		}
		eng.source = src
	}

	g, err := load(context.Background(), eng.source)
	if err != nil {
		return nil, err
	}
	eng.Name = g.Name()
	eng.logger = eng.logger.With("graph", eng.Name)

	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		managerOpts = append(managerOpts, session.WithLockTTL(eng.lockTTL))
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.clock != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(eng.clock))
	}

	eng.controller = runtime.NewController(g, session.NewManager(eng.store, managerOpts...), runtimeOpts...)
	return eng, nil
}

// Resolve maps a graph reference to a GraphSource.
func Resolve(ref string, logger *slog.Logger) (ports.GraphSource, error) {
	if ref == "" {
		return nil, fmt.Errorf("graph reference is required when no custom source is provided")
	}
	for _, name := range graphs.Names() {
		if ref == name {
			return graphs.Source(name), nil
		}
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("graph %q is neither a preset (%s) nor a readable path: %w", ref, strings.Join(graphs.Names(), ", "), err)
	}
	if info.IsDir() {
		l, err := loamAdapter.Open(ref)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml", ".json":
		return file.NewSource(ref, file.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unsupported graph file %q: expected .yaml, .yml or .json", ref)
	}
}

func load(ctx context.Context, src ports.GraphSource) (*graph.Graph, error) {
	def, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	g, err := graph.Build(def)
	if err != nil {
		return nil, fmt.Errorf("invalid graph %q: %w", def.Name, err)
	}
	return g, nil
}

// Start creates the session at the entry phase, or returns the existing one.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return e.controller.Start(ctx, sessionID)
}

// Submit stores fields, counts a turn and commits the selected transition.
func (e *Engine) Submit(ctx context.Context, sessionID string, fields map[string]any) (*domain.Result, error) {
	return e.controller.Submit(ctx, sessionID, fields)
}

// Collect stores fields for the current phase without transitioning.
func (e *Engine) Collect(ctx context.Context, sessionID, phaseID string, fields map[string]any) (*domain.Result, error) {
	return e.controller.Collect(ctx, sessionID, phaseID, fields)
}

// Transition commits the selected edge. target is TargetNext or the expected destination.
func (e *Engine) Transition(ctx context.Context, sessionID, target string) (*domain.Result, error) {
	return e.controller.Transition(ctx, sessionID, target)
}

// Check validates fields against the requirements of phaseID without touching
// any session. Every failure is reported in one *schema.AggregateError.
func (e *Engine) Check(phaseID string, fields map[string]any) error {
	phase, err := e.Graph().Phase(phaseID)
	if err != nil {
		return err
	}
	return runtime.CheckFields(phase, fields)
}

// Status returns a read-only snapshot of the session.
func (e *Engine) Status(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return e.controller.Status(ctx, sessionID)
}

// Graph returns the graph currently in use.
func (e *Engine) Graph() *graph.Graph {
	return e.controller.Graph()
}

// Sessions exposes the session manager, e.g. to list or delete sessions.
func (e *Engine) Sessions() *session.Manager {
	return e.controller.Sessions()
}

// Source returns the underlying GraphSource used by the engine.
func (e *Engine) Source() ports.GraphSource {
	return e.source
}

// Reload loads the source again and swaps the whole graph.
// An invalid definition leaves the current graph in place.
func (e *Engine) Reload(ctx context.Context) error {
	g, err := load(ctx, e.source)
	if err != nil {
		e.logger.Error("graph reload failed", "err", err)
		return err
	}
	e.controller.Reload(g)
	return nil
}

// Watch returns a channel that signals when the underlying graph changes.
// Returns error if the source does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := e.source.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current graph source does not support watching")
}

// AutoReload reloads the graph on every change signal until ctx is done.
func (e *Engine) AutoReload(ctx context.Context) error {
	changes, err := e.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range changes {
			_ = e.Reload(ctx)
		}
	}()
	return nil
}

var _ ports.SessionEngine = (*Engine)(nil)
