// Package dispatch resolves symbolic plugin references and executes the
// named plugin against the object store.
//
// A call runs in five phases: descriptor lookup (optionally waiting for a
// registration that has not happened yet), positional argument validation
// against the declared input signature, entry-point invocation with the
// store and argument handles, output validation against the declared
// output signature, and context-error mapping. Failures at each phase
// carry a distinct fault code so callers can tell a malformed call from a
// missing plugin from a plugin that failed doing its job.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tessera/internal/fault"
	"github.com/roach88/tessera/internal/registry"
	"github.com/roach88/tessera/internal/store"
)

// Resolver dispatches calls by symbolic name. Safe for concurrent use; all
// mutable state lives in the store and registry it wraps.
type Resolver struct {
	store    *store.Store
	registry *registry.Registry
	tokens   TokenGenerator

	// defaultWait makes every call wait for a missing registration unless
	// the call says otherwise. Bounded by the context deadline.
	defaultWait bool

	// callTimeout caps calls whose context carries no deadline of its own.
	// Zero means no cap.
	callTimeout time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTokenGenerator replaces the call token source. Tests use this with a
// FixedGenerator to make traces deterministic.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(r *Resolver) {
		r.tokens = g
	}
}

// WithDefaultWait makes calls wait for missing registrations by default,
// bounded by the call context's deadline.
func WithDefaultWait(wait bool) Option {
	return func(r *Resolver) {
		r.defaultWait = wait
	}
}

// WithCallTimeout caps calls whose context has no deadline. Zero disables
// the cap.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.callTimeout = d
	}
}

// New creates a Resolver over the given store and registry.
func New(st *store.Store, reg *registry.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		store:    st,
		registry: reg,
		tokens:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CallOption configures one call.
type CallOption func(*callConfig)

type callConfig struct {
	wait   bool
	caller string
}

// WithWaitForRegistration overrides the resolver's default waiting
// behavior for this call.
func WithWaitForRegistration(wait bool) CallOption {
	return func(c *callConfig) {
		c.wait = wait
	}
}

// WithCaller attaches a caller identity to the call's log lines.
func WithCaller(name string) CallOption {
	return func(c *callConfig) {
		c.caller = name
	}
}

// Call resolves ref and invokes the named plugin with the given argument
// handles, returning the plugin's output handles.
//
// Resolution failures surface as NOT_FOUND (or AMBIGUOUS_NAME for an
// unqualified ref matching several namespaces), argument problems as
// TYPE_MISMATCH naming the offending position, plugin output that breaks
// its declared signature as CONTRACT_VIOLATION, and plugin-internal
// errors or panics as PLUGIN_FAILURE wrapping the cause. Context
// cancellation and deadline expiry map to CANCELLED and TIMEOUT; an
// already-cancelled context fails before the entry point runs.
func (r *Resolver) Call(ctx context.Context, ref Ref, args []store.Handle, opts ...CallOption) ([]store.Handle, error) {
	cfg := callConfig{wait: r.defaultWait}
	for _, opt := range opts {
		opt(&cfg)
	}

	if r.callTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
		}
	}

	token := r.tokens.Generate()
	start := time.Now()

	slog.Debug("dispatch started",
		"token", token,
		"ref", ref.String(),
		"args", len(args),
		"caller", cfg.caller,
	)

	out, err := r.call(ctx, ref, args, cfg)
	if err != nil {
		slog.Warn("dispatch failed",
			"token", token,
			"ref", ref.String(),
			"code", string(fault.CodeOf(err)),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	slog.Info("dispatch completed",
		"token", token,
		"ref", ref.String(),
		"outputs", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (r *Resolver) call(ctx context.Context, ref Ref, args []store.Handle, cfg callConfig) ([]store.Handle, error) {
	// Phase 1: resolve the descriptor, optionally waiting for it.
	var (
		d   *registry.Descriptor
		err error
	)
	if cfg.wait {
		d, err = r.registry.Await(ctx, ref.Name, ref.Namespace)
	} else {
		d, err = r.registry.Lookup(ref.Name, ref.Namespace)
	}
	if err != nil {
		return nil, err
	}

	// Phase 2: validate arguments against the declared input signature.
	if len(args) != len(d.Inputs) {
		fe := fault.NewArityMismatchError(len(d.Inputs), len(args))
		fe.Name, fe.Namespace = d.Name, d.Namespace
		return nil, fe
	}
	for i, h := range args {
		if h.Tag != d.Inputs[i] {
			fe := fault.NewTypeMismatchError(i, string(d.Inputs[i]), string(h.Tag))
			fe.Name, fe.Namespace = d.Name, d.Namespace
			return nil, fe
		}
	}

	// Phase 3: invoke. A context that fired before this point skips the
	// entry entirely; mid-flight cancellation is cooperative and only
	// takes effect if the plugin honors it.
	if err := ctx.Err(); err != nil {
		return nil, fault.FromContext(err)
	}
	out, err := r.invoke(ctx, d, args)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fault.FromContext(err)
		}
		return nil, err
	}

	// Phase 4: validate outputs against the declared output signature.
	// Violations here are plugin bugs, not caller errors.
	if len(out) != len(d.Outputs) {
		return nil, fault.NewContractViolationError(d.Name, d.Namespace, -1,
			fmt.Sprintf("returned %d outputs, declared %d", len(out), len(d.Outputs)))
	}
	for i, h := range out {
		if h.Tag != d.Outputs[i] {
			return nil, fault.NewContractViolationError(d.Name, d.Namespace, i,
				fmt.Sprintf("output tag %q, declared %q", h.Tag, d.Outputs[i]))
		}
	}

	return out, nil
}

// invoke runs the entry point. Returned errors are wrapped as
// plugin-failure faults carrying the plugin's identity; propagated
// context errors pass through unwrapped so the caller maps them to
// CANCELLED or TIMEOUT. Panics are recovered and wrapped the same way,
// flagged as panics, so one misbehaving plugin cannot take the process
// down.
func (r *Resolver) invoke(ctx context.Context, d *registry.Descriptor, args []store.Handle) (out []store.Handle, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fault.NewPluginFailureError(d.Name, d.Namespace, fmt.Errorf("%v", rec), true)
		}
	}()
	out, err = d.Entry(ctx, r.store, args)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = fault.NewPluginFailureError(d.Name, d.Namespace, err, false)
	}
	return out, err
}
