// Package cli wires configuration into engines and runs the interactive
// commands of the phasewise binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/internal/config"
	"github.com/aretw0/phasewise/internal/logging"
	"github.com/aretw0/phasewise/pkg/adapters/file"
	"github.com/aretw0/phasewise/pkg/adapters/memory"
	"github.com/aretw0/phasewise/pkg/adapters/redis"
	"github.com/aretw0/phasewise/pkg/adapters/sqlite"
	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/observability"
	"github.com/aretw0/phasewise/pkg/persistence/middleware"
	"github.com/aretw0/phasewise/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Runtime bundles an engine with the resources opened for it.
type Runtime struct {
	Engine   *phasewise.Engine
	Registry *prometheus.Registry
	Logger   *slog.Logger
	closers  []io.Closer
}

// Close releases the store connections.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

// Build opens the configured store and creates an engine over the configured graph.
// Metrics and log hooks are always installed; the registry is returned for /metrics.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...phasewise.Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{Registry: prometheus.NewRegistry(), Logger: logger}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(rt.Registry)

	store, locker, err := rt.openStore(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	store, err = protect(store, cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	opts := []phasewise.Option{
		phasewise.WithLogger(logger),
		phasewise.WithStore(store),
		phasewise.WithLockTTL(cfg.LockTTL),
		phasewise.WithLifecycleHooks(domain.MergeHooks(metrics.Hooks(), observability.LoggingHooks(logger))),
	}
	if locker != nil {
		opts = append(opts, phasewise.WithLocker(locker))
	}
	opts = append(opts, extra...)

	eng, err := phasewise.New(cfg.Graph, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = eng

	if err := checkRedaction(eng.Graph(), cfg.RedactFields); err != nil {
		_ = rt.Close()
		return nil, err
	}

	if cfg.Watch {
		if err := eng.AutoReload(ctx); err != nil {
			logger.Warn("graph hot reload unavailable", "graph", cfg.Graph, "err", err)
		} else {
			logger.Info("watching graph for changes", "graph", cfg.Graph)
		}
	}
	return rt, nil
}

// protect wraps the store with redaction and at-rest encryption when configured.
// Masking runs before sealing, so redacted values never reach the ciphertext.
func protect(store ports.SessionStore, cfg config.Config) (ports.SessionStore, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactFields) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.RedactFields))
	}
	active, fallback, err := cfg.EncryptionKeys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), nil
}

// checkRedaction rejects patterns that would mask a value the engine reads back.
// Masked required fields stay invalid and masked predicate inputs never match,
// so such a session could not leave its phase.
func checkRedaction(g *graph.Graph, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	var read []string
	for _, phase := range g.Phases() {
		for _, req := range phase.Requirements {
			if req.Required {
				read = append(read, req.Name)
			}
		}
	}
	for _, edge := range g.Edges() {
		if spec, ok := g.Condition(edge.Condition); ok {
			read = append(read, condition.Fields(spec)...)
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("PHASEWISE_REDACT_FIELDS: bad pattern %q: %w", p, err)
		}
		for _, name := range read {
			if re.MatchString(name) {
				return fmt.Errorf("PHASEWISE_REDACT_FIELDS: pattern %q masks field %q read by graph %s", p, name, g.Name())
			}
		}
	}
	return nil
}

func (rt *Runtime) openStore(cfg config.Config) (ports.SessionStore, ports.DistributedLocker, error) {
	switch cfg.Store {
	case config.StoreRedis:
		var opts []redis.Option
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		if cfg.Redis.Prefix != "" {
			// Sessions and locks share the prefix; the index key must not clash with a session id.
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix+"session:"))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		rt.closers = append(rt.closers, store)
		return store, redis.NewLocker(store.Client(), cfg.Redis.Prefix), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, store)
		return store, nil, nil
	case config.StoreFile:
		return file.NewStore(cfg.FilePath), nil, nil
	default:
		return memory.NewStore(), nil, nil
	}
}
