package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/store"
)

// EntryFunc is a plugin's callable entry point. It receives the object
// store so the plugin can insert and retrieve representations, plus the
// argument handles in declared order, and returns output handles matching
// the descriptor's output signature.
//
// Entry points must honor ctx: cancellation is cooperative, the resolver
// never terminates a running plugin.
type EntryFunc func(ctx context.Context, st *store.Store, args []store.Handle) ([]store.Handle, error)

// Descriptor describes one callable plugin capability: identity, capability
// signature, and entry point. Immutable once registered; lookups hand out
// the registered copy and in-flight calls bound to it are unaffected by
// later replacement or deregistration.
type Descriptor struct {
	// Name is the capability name, unique within its namespace.
	Name string

	// Namespace qualifies the name ("core", "text").
	Namespace string

	// Inputs declares the expected argument type tags, positionally.
	Inputs []ir.Tag

	// Outputs declares the produced result type tags, positionally.
	Outputs []ir.Tag

	// Entry is the callable entry point.
	Entry EntryFunc

	// Doc is an optional human-readable description, carried from the
	// plugin manifest when one is used.
	Doc string
}

// Ref returns the qualified "namespace/name" form.
func (d *Descriptor) Ref() string {
	return d.Namespace + "/" + d.Name
}

// clone copies the descriptor so callers cannot mutate registered state
// through retained slices.
func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Inputs = slices.Clone(d.Inputs)
	c.Outputs = slices.Clone(d.Outputs)
	return &c
}

// validate checks a descriptor before installation.
func (d *Descriptor) validate() error {
	if err := validateComponent(d.Name); err != nil {
		return fmt.Errorf("descriptor name: %w", err)
	}
	if err := validateComponent(d.Namespace); err != nil {
		return fmt.Errorf("descriptor namespace: %w", err)
	}
	if d.Entry == nil {
		return fmt.Errorf("descriptor %s: entry point must not be nil", d.Ref())
	}
	for i, tag := range d.Inputs {
		if err := tag.Validate(); err != nil {
			return fmt.Errorf("descriptor %s: input %d: %w", d.Ref(), i, err)
		}
	}
	for i, tag := range d.Outputs {
		if err := tag.Validate(); err != nil {
			return fmt.Errorf("descriptor %s: output %d: %w", d.Ref(), i, err)
		}
	}
	return nil
}

// validateComponent checks name/namespace syntax: lowercase letters,
// digits, '_', '-', '.', starting with a letter. '/' is reserved as the
// namespace separator.
func validateComponent(s string) error {
	if s == "" {
		return fmt.Errorf("must not be empty")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9'):
		case i > 0 && (c == '_' || c == '-' || c == '.'):
		default:
			return fmt.Errorf("%q: invalid character %q at position %d", s, c, i)
		}
	}
	return nil
}
