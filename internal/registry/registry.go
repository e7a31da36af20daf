// Package registry maintains the catalog of callable plugins. Plugins
// register descriptors under a namespace-qualified name; the resolver
// looks descriptors up at call time, optionally waiting for a
// registration that has not happened yet.
//
// Replacement is linearizable: a lookup concurrent with an overwrite
// observes either the old descriptor or the new one, never a mixture.
// Descriptors are immutable once installed, so calls already bound to a
// descriptor are unaffected by later replacement or removal.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/tessera/internal/fault"
)

type key struct {
	namespace string
	name      string
}

// Registry is a thread-safe plugin catalog. The zero value is not usable;
// construct with New.
type Registry struct {
	mu sync.RWMutex

	// byKey is the authoritative mapping from qualified name to the
	// installed descriptor.
	byKey map[key]*Descriptor

	// byName indexes descriptors by bare name for unqualified lookup:
	// name -> namespace -> descriptor.
	byName map[string]map[string]*Descriptor

	// watchers holds pending Await subscriptions keyed by "ns/name" or
	// bare name. Channels are buffered and signalled once, under the
	// install lock, then dropped.
	watchers  map[string]map[uint64]chan struct{}
	nextWatch uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byKey:    make(map[key]*Descriptor),
		byName:   make(map[string]map[string]*Descriptor),
		watchers: make(map[string]map[uint64]chan struct{}),
	}
}

// Register installs a descriptor under its qualified name. If the name is
// already taken and overwrite is false, registration fails with a
// duplicate-registration fault and the existing descriptor stays in
// place. With overwrite true the new descriptor atomically replaces the
// old one.
func (r *Registry) Register(d Descriptor, overwrite bool) error {
	if err := d.validate(); err != nil {
		return err
	}
	installed := d.clone()
	k := key{namespace: d.Namespace, name: d.Name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[k]; exists && !overwrite {
		return fault.NewDuplicateRegistrationError(d.Name, d.Namespace)
	}
	r.byKey[k] = installed
	ns, ok := r.byName[d.Name]
	if !ok {
		ns = make(map[string]*Descriptor)
		r.byName[d.Name] = ns
	}
	ns[d.Namespace] = installed

	r.notifyLocked(installed.Ref())
	r.notifyLocked(installed.Name)

	slog.Debug("plugin registered",
		"name", d.Name,
		"namespace", d.Namespace,
		"inputs", len(d.Inputs),
		"outputs", len(d.Outputs))
	return nil
}

// Deregister removes a plugin. In-flight calls that already resolved the
// descriptor run to completion; subsequent lookups fail.
func (r *Registry) Deregister(name, namespace string) error {
	k := key{namespace: namespace, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[k]; !exists {
		return fault.NewNameNotFoundError(name, namespace)
	}
	delete(r.byKey, k)
	if ns := r.byName[name]; ns != nil {
		delete(ns, namespace)
		if len(ns) == 0 {
			delete(r.byName, name)
		}
	}

	slog.Debug("plugin deregistered", "name", name, "namespace", namespace)
	return nil
}

// Lookup returns the descriptor registered under the given name. An empty
// namespace requests unqualified resolution: it succeeds only when
// exactly one namespace provides the name, and fails with an
// ambiguous-name fault when several do.
func (r *Registry) Lookup(name, namespace string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(name, namespace)
}

// LookupName resolves a bare, unqualified name. Equivalent to Lookup with
// an empty namespace.
func (r *Registry) LookupName(name string) (*Descriptor, error) {
	return r.Lookup(name, "")
}

func (r *Registry) lookupLocked(name, namespace string) (*Descriptor, error) {
	if namespace != "" {
		d, ok := r.byKey[key{namespace: namespace, name: name}]
		if !ok {
			return nil, fault.NewNameNotFoundError(name, namespace)
		}
		return d, nil
	}

	ns := r.byName[name]
	switch len(ns) {
	case 0:
		return nil, fault.NewNameNotFoundError(name, "")
	case 1:
		for _, d := range ns {
			return d, nil
		}
		panic("unreachable")
	default:
		names := make([]string, 0, len(ns))
		for n := range ns {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fault.NewAmbiguousNameError(name, names)
	}
}

// Await blocks until a descriptor for the given name is registered, the
// context is cancelled, or its deadline passes. It returns immediately
// when the name is already resolvable, and immediately with an
// ambiguous-name fault when an unqualified name matches several
// namespaces.
func (r *Registry) Await(ctx context.Context, name, namespace string) (*Descriptor, error) {
	watchKey := name
	if namespace != "" {
		watchKey = namespace + "/" + name
	}

	for {
		r.mu.Lock()
		d, err := r.lookupLocked(name, namespace)
		if err == nil {
			r.mu.Unlock()
			return d, nil
		}
		if !fault.IsNotFound(err) {
			r.mu.Unlock()
			return nil, err
		}
		if ctx.Err() != nil {
			r.mu.Unlock()
			return nil, fault.FromContext(ctx.Err())
		}
		id, ch := r.subscribeLocked(watchKey)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			r.unsubscribe(watchKey, id)
			return nil, fault.FromContext(ctx.Err())
		case <-ch:
			// Re-run the lookup. An unqualified wait may have become
			// ambiguous, and the registration may already be gone again.
		}
	}
}

// Names returns the sorted qualified names of all registered plugins.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		names = append(names, k.namespace+"/"+k.name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

func (r *Registry) subscribeLocked(watchKey string) (uint64, chan struct{}) {
	r.nextWatch++
	id := r.nextWatch
	ch := make(chan struct{}, 1)
	set, ok := r.watchers[watchKey]
	if !ok {
		set = make(map[uint64]chan struct{})
		r.watchers[watchKey] = set
	}
	set[id] = ch
	return id, ch
}

func (r *Registry) unsubscribe(watchKey string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.watchers[watchKey]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.watchers, watchKey)
		}
	}
}

// notifyLocked wakes every watcher subscribed to watchKey and drops the
// subscriptions. Channels are buffered, so the send never blocks while
// the lock is held.
func (r *Registry) notifyLocked(watchKey string) {
	set, ok := r.watchers[watchKey]
	if !ok {
		return
	}
	for _, ch := range set {
		ch <- struct{}{}
	}
	delete(r.watchers, watchKey)
}
