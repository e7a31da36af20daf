package harness

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/tessera/internal/dispatch"
	"github.com/roach88/tessera/internal/fault"
	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/registry"
	"github.com/roach88/tessera/internal/runtime"
	"github.com/roach88/tessera/internal/store"
	"github.com/roach88/tessera/internal/testutil"
)

// Run executes a scenario against a fresh default runtime and returns
// the result: the step trace plus any failed expectations.
//
// The split between the error return and Result.Errors follows the
// step semantics: scenario authoring problems (unknown handle names,
// unparseable refs, failing inserts or releases) abort the run with an
// error, while call outcomes are data — they land in the trace and are
// judged against the step's expect clause.
func Run(scenario *Scenario) (*Result, error) {
	// Scenarios built as literals never went through LoadScenario.
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	token := scenario.Token
	if token == "" {
		token = testutil.DefaultToken
	}

	rt, err := runtime.New(runtime.DefaultConfig(),
		runtime.WithTokenGenerator(testutil.NewConstantTokenGenerator(token)))
	if err != nil {
		return nil, fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	descs := make([]registry.Descriptor, 0, len(scenario.Plugins))
	for _, ref := range scenario.Plugins {
		descs = append(descs, builtins[ref])
	}
	if err := rt.RegisterAll(descs, false); err != nil {
		return nil, fmt.Errorf("register builtin plugins: %w", err)
	}

	run := &runState{
		rt:       rt,
		clock:    testutil.NewClock(),
		token:    token,
		bindings: make(map[string]store.Handle),
		result:   NewResult(),
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		var err error
		switch {
		case step.Insert != nil:
			err = run.insert(i, step.Insert)
		case step.Call != nil:
			err = run.call(ctx, i, step.Call)
		case step.Release != nil:
			err = run.release(i, step.Release)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, msg := range EvaluateAssertions(run.result.Trace, scenario.Assertions) {
		run.result.AddError(msg)
	}
	return run.result, nil
}

type runState struct {
	rt       *runtime.Runtime
	clock    *testutil.Clock
	token    string
	bindings map[string]store.Handle
	result   *Result
}

func (r *runState) insert(index int, step *InsertStep) error {
	v, err := ir.FromGo(step.Value)
	if err != nil {
		return fmt.Errorf("steps[%d].insert: %w", index, err)
	}
	h, err := r.rt.Store().Insert(ir.Tag(step.Tag), v)
	if err != nil {
		return fmt.Errorf("steps[%d].insert: %w", index, err)
	}
	r.bindings[step.As] = h

	r.result.addEvent(TraceEvent{
		Seq:     r.clock.Next(),
		Kind:    KindInsert,
		Outcome: outcomeOK,
		Tag:     step.Tag,
		Address: h.Addr.Hex(),
	})
	return nil
}

func (r *runState) call(ctx context.Context, index int, step *CallStep) error {
	ref, err := dispatch.ParseRef(step.Ref)
	if err != nil {
		return fmt.Errorf("steps[%d].call: %w", index, err)
	}
	args, err := r.resolve(step.Args)
	if err != nil {
		return fmt.Errorf("steps[%d].call: %w", index, err)
	}

	outs, callErr := r.rt.Resolver().Call(ctx, ref, args)

	event := TraceEvent{
		Seq:   r.clock.Next(),
		Kind:  KindCall,
		Ref:   step.Ref,
		Token: r.token,
	}
	if callErr != nil {
		event.Outcome = string(fault.CodeOf(callErr))
		if event.Outcome == "" {
			event.Outcome = "error"
		}
	} else {
		event.Outcome = outcomeOK
		event.Outputs = make([]string, len(outs))
		for i, h := range outs {
			event.Outputs[i] = h.Addr.Hex()
		}
	}
	r.result.addEvent(event)

	if callErr == nil && len(step.As) > 0 {
		if len(step.As) != len(outs) {
			r.result.AddError(fmt.Sprintf("steps[%d].call: %d output bindings for %d outputs", index, len(step.As), len(outs)))
		} else {
			for i, name := range step.As {
				r.bindings[name] = outs[i]
			}
		}
	}

	r.check(index, step.Expect, outs, callErr)
	return nil
}

func (r *runState) release(index int, step *ReleaseStep) error {
	h, ok := r.bindings[step.Handle]
	if !ok {
		return fmt.Errorf("steps[%d].release: unknown handle %q", index, step.Handle)
	}
	if err := r.rt.Store().Release(h); err != nil {
		return fmt.Errorf("steps[%d].release: %w", index, err)
	}

	r.result.addEvent(TraceEvent{
		Seq:     r.clock.Next(),
		Kind:    KindRelease,
		Outcome: outcomeOK,
		Address: h.Addr.Hex(),
	})
	return nil
}

// resolve maps binding names to handles, in positional order.
func (r *runState) resolve(names []string) ([]store.Handle, error) {
	handles := make([]store.Handle, len(names))
	for i, name := range names {
		h, ok := r.bindings[name]
		if !ok {
			return nil, fmt.Errorf("unknown handle %q", name)
		}
		handles[i] = h
	}
	return handles, nil
}

// check judges the call outcome against the expect clause.
func (r *runState) check(index int, exp *ExpectClause, outs []store.Handle, callErr error) {
	switch {
	case exp == nil:
		if callErr != nil {
			r.result.AddError(fmt.Sprintf("steps[%d].call: unexpected failure: %v", index, callErr))
		}
	case exp.Error != "":
		if callErr == nil {
			r.result.AddError(fmt.Sprintf("steps[%d].call: expected %s fault, call succeeded", index, exp.Error))
		} else if code := string(fault.CodeOf(callErr)); code != exp.Error {
			r.result.AddError(fmt.Sprintf("steps[%d].call: expected %s fault, got %s: %v", index, exp.Error, code, callErr))
		}
	default:
		if callErr != nil {
			r.result.AddError(fmt.Sprintf("steps[%d].call: unexpected failure: %v", index, callErr))
			return
		}
		if len(exp.Values) != len(outs) {
			r.result.AddError(fmt.Sprintf("steps[%d].call: expected %d outputs, got %d", index, len(exp.Values), len(outs)))
			return
		}
		for i, raw := range exp.Values {
			want, err := ir.FromGo(raw)
			if err != nil {
				r.result.AddError(fmt.Sprintf("steps[%d].call: expect.values[%d]: %v", index, i, err))
				continue
			}
			got, err := r.rt.Store().Get(outs[i])
			if err != nil {
				r.result.AddError(fmt.Sprintf("steps[%d].call: read output %d: %v", index, i, err))
				continue
			}
			if !reflect.DeepEqual(want, got) {
				r.result.AddError(fmt.Sprintf("steps[%d].call: output %d = %v, want %v", index, i, got, want))
			}
		}
	}
}
