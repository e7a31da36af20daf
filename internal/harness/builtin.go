package harness

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/manifest"
	"github.com/roach88/tessera/internal/registry"
	"github.com/roach88/tessera/internal/store"
)

//go:embed builtins.cue
var builtinsCUE string

// builtins maps "ns/name" to the descriptor a scenario can register.
// Declarations come from the embedded manifest, implementations from
// this file; Bind stitches them together and catches drift between the
// two at package load.
var builtins = mustBuiltins()

func mustBuiltins() map[string]registry.Descriptor {
	decls, err := manifest.Parse("builtins.cue", builtinsCUE)
	if err != nil {
		panic(fmt.Sprintf("harness: embedded builtin manifest is broken: %v", err))
	}
	descs, err := manifest.Bind(decls, map[string]registry.EntryFunc{
		"text/uppercase": uppercaseEntry,
		"text/concat":    concatEntry,
		"demo/fail":      failEntry,
	})
	if err != nil {
		panic(fmt.Sprintf("harness: builtin implementations do not match manifest: %v", err))
	}

	m := make(map[string]registry.Descriptor, len(descs))
	for _, d := range descs {
		m[d.Ref()] = d
	}
	return m
}

// builtinRefs returns the sorted refs, for error messages.
func builtinRefs() []string {
	refs := make([]string, 0, len(builtins))
	for ref := range builtins {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func uppercaseEntry(_ context.Context, st *store.Store, args []store.Handle) ([]store.Handle, error) {
	v, err := st.Get(args[0])
	if err != nil {
		return nil, err
	}
	s, ok := v.(ir.String)
	if !ok {
		return nil, fmt.Errorf("expected text value, got %T", v)
	}
	h, err := st.Insert("text", ir.String(strings.ToUpper(string(s))))
	if err != nil {
		return nil, err
	}
	return []store.Handle{h}, nil
}

func concatEntry(_ context.Context, st *store.Store, args []store.Handle) ([]store.Handle, error) {
	var parts [2]string
	for i := range args {
		v, err := st.Get(args[i])
		if err != nil {
			return nil, err
		}
		s, ok := v.(ir.String)
		if !ok {
			return nil, fmt.Errorf("argument %d: expected text value, got %T", i, v)
		}
		parts[i] = string(s)
	}
	h, err := st.Insert("text", ir.String(parts[0]+parts[1]))
	if err != nil {
		return nil, err
	}
	return []store.Handle{h}, nil
}

func failEntry(context.Context, *store.Store, []store.Handle) ([]store.Handle, error) {
	return nil, errors.New("this plugin always fails")
}
