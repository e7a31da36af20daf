// Package runtime assembles the object service from configuration:
// journal, store, registry, and resolver, wired in dependency order and
// torn down in reverse.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/tessera/internal/dispatch"
	"github.com/roach88/tessera/internal/journal"
	"github.com/roach88/tessera/internal/registry"
	"github.com/roach88/tessera/internal/store"
)

// Runtime owns the wired components. Construct with New, tear down with
// Close.
type Runtime struct {
	store    *store.Store
	registry *registry.Registry
	resolver *dispatch.Resolver
	journal  *journal.Journal

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	tokens dispatch.TokenGenerator
}

// Option configures pieces that do not belong in the config file.
type Option func(*options)

// WithTokenGenerator overrides call token generation, mainly so tests
// and trace harnesses get reproducible tokens.
func WithTokenGenerator(g dispatch.TokenGenerator) Option {
	return func(o *options) { o.tokens = g }
}

// New builds a runtime from cfg. Construction fails fast: a bad shard
// count, retention spelling, or journal path comes back as an error
// before any component starts.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Validate vetted the spelling; this normalizes "" to the default.
	retention, _ := store.ParseRetentionPolicy(string(cfg.Store.Retention))

	var jnl *journal.Journal
	storeOpts := []store.Option{
		store.WithShards(cfg.Store.Shards),
		store.WithMaxSlots(cfg.Store.MaxSlots),
		store.WithMaxValueBytes(cfg.Store.MaxValueBytes),
		store.WithRetention(retention),
	}
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
		jnl = j
		storeOpts = append(storeOpts, store.WithRecorder(jnl))
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		if jnl != nil {
			jnl.Close()
		}
		return nil, fmt.Errorf("runtime: %w", err)
	}

	reg := registry.New()

	resolverOpts := []dispatch.Option{
		dispatch.WithDefaultWait(cfg.Resolver.WaitForRegistration),
	}
	if cfg.Resolver.CallTimeout > 0 {
		resolverOpts = append(resolverOpts, dispatch.WithCallTimeout(cfg.Resolver.CallTimeout))
	}
	if o.tokens != nil {
		resolverOpts = append(resolverOpts, dispatch.WithTokenGenerator(o.tokens))
	}
	res := dispatch.New(st, reg, resolverOpts...)

	slog.Info("runtime started",
		"shards", cfg.Store.Shards,
		"retention", string(retention),
		"wait_for_registration", cfg.Resolver.WaitForRegistration,
		"journal", cfg.Journal.Enabled,
	)

	return &Runtime{
		store:    st,
		registry: reg,
		resolver: res,
		journal:  jnl,
	}, nil
}

// Store returns the object store.
func (r *Runtime) Store() *store.Store { return r.store }

// Registry returns the plugin registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Resolver returns the call resolver.
func (r *Runtime) Resolver() *dispatch.Resolver { return r.resolver }

// Journal returns the attached journal, or nil when persistence is
// disabled.
func (r *Runtime) Journal() *journal.Journal { return r.journal }

// RegisterAll registers descriptors in order and stops at the first
// failure. Use it to install a bound manifest in one step.
func (r *Runtime) RegisterAll(descs []registry.Descriptor, overwrite bool) error {
	for _, d := range descs {
		if err := r.registry.Register(d, overwrite); err != nil {
			return err
		}
	}
	return nil
}

// Restore replays the journal into the store. Replayed objects come
// back under fresh slot identifiers but identical addresses, so callers
// re-find them with LookupAddr. Fails when no journal is attached.
func (r *Runtime) Restore(ctx context.Context) (int, error) {
	if r.journal == nil {
		return 0, fmt.Errorf("runtime: restore requires an enabled journal")
	}
	return r.journal.Restore(ctx, r.store)
}

// Close tears down in reverse construction order: store first, then
// journal. Safe to call more than once; later calls return the first
// result.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.store.Close()
		if r.journal != nil {
			if err := r.journal.Close(); err != nil && r.closeErr == nil {
				r.closeErr = err
			}
		}
		slog.Info("runtime stopped")
	})
	return r.closeErr
}
