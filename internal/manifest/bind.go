package manifest

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/tessera/internal/registry"
)

// Bind attaches Go entry points to declarations, keyed by qualified
// "namespace/name", and produces registrable descriptors in declaration
// order. Every declaration must have an implementation and every
// implementation a declaration; anything missing or surplus is an error
// naming the offending references.
func Bind(decls []Decl, impls map[string]registry.EntryFunc) ([]registry.Descriptor, error) {
	descs := make([]registry.Descriptor, 0, len(decls))
	used := make(map[string]bool, len(decls))

	var missing []string
	for _, d := range decls {
		entry, ok := impls[d.Ref()]
		if !ok {
			missing = append(missing, d.Ref())
			continue
		}
		used[d.Ref()] = true
		descs = append(descs, registry.Descriptor{
			Name:      d.Name,
			Namespace: d.Namespace,
			Inputs:    slices.Clone(d.Inputs),
			Outputs:   slices.Clone(d.Outputs),
			Entry:     entry,
			Doc:       d.Doc,
		})
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("declared plugins with no implementation: %s", strings.Join(missing, ", "))
	}

	var surplus []string
	for ref := range impls {
		if !used[ref] {
			surplus = append(surplus, ref)
		}
	}
	if len(surplus) > 0 {
		sort.Strings(surplus)
		return nil, fmt.Errorf("implementations with no declaration: %s", strings.Join(surplus, ", "))
	}

	return descs, nil
}
