// Package registry implements the identity registry: it maps host objects to
// stable references by reference identity, so the same host object is always
// represented by one bridge identity. Entries hold only weak references and
// never keep a host object alive.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/hybridge/host"
)

var log = commonlog.GetLogger("hybridge.registry")

// DefaultPruneThreshold is the entry count above which Register sweeps stale
// entries.
const DefaultPruneThreshold = 1024

// ---------------------------------------------------------------------------
// Ref: a stable reference to a host object
// ---------------------------------------------------------------------------

// Ref is the stable reference handed out for a registered host object. Its
// ID is what a transport ships across the boundary.
type Ref struct {
	id   uuid.UUID
	weak host.WeakRef
}

// ID returns the reference's unique identifier.
func (r *Ref) ID() uuid.UUID {
	return r.id
}

func (r *Ref) String() string {
	return r.id.String()
}

// Object returns the referenced host object, or false once it has been
// reclaimed.
func (r *Ref) Object() (any, bool) {
	return r.weak.Value()
}

// Alive returns true if the referenced object has not been reclaimed.
func (r *Ref) Alive() bool {
	_, ok := r.weak.Value()
	return ok
}

// Is reports whether r refers to obj by reference identity.
func (r *Ref) Is(obj any) bool {
	target, ok := r.weak.Value()
	return ok && target == obj
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry deduplicates references to host objects. All operations are
// serialized by one lock.
type Registry struct {
	rt host.Runtime

	mu        sync.Mutex
	byKey     map[any]*Ref
	byID      map[uuid.UUID]*Ref
	threshold int
	pruneAt   int
}

// Option configures a Registry.
type Option func(*Registry)

// WithPruneThreshold sets the entry count above which Register sweeps stale
// entries. Zero or negative disables automatic pruning.
func WithPruneThreshold(n int) Option {
	return func(r *Registry) { r.threshold = n }
}

// New creates an empty registry for objects of rt.
func New(rt host.Runtime, opts ...Option) *Registry {
	r := &Registry{
		rt:        rt,
		byKey:     make(map[any]*Ref),
		byID:      make(map[uuid.UUID]*Ref),
		threshold: DefaultPruneThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.pruneAt = r.threshold
	return r
}

// Register returns the reference for obj, creating one if obj has not been
// registered. Registering the same object again returns the same *Ref.
func (r *Registry) Register(obj any) (*Ref, error) {
	w, err := r.rt.MakeWeak(obj)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.byKey[w.Key()]; ok {
		return ref, nil
	}
	ref := &Ref{id: uuid.New(), weak: w}
	r.byKey[w.Key()] = ref
	r.byID[ref.id] = ref
	log.Debugf("registered %T as %s", obj, ref.id)

	if r.threshold > 0 && len(r.byKey) > r.pruneAt {
		n := r.prune()
		r.pruneAt = max(r.threshold, 2*len(r.byKey))
		log.Infof("pruned %d stale entries, %d remain", n, len(r.byKey))
	}
	return ref, nil
}

// Find returns the reference for obj without creating one.
func (r *Registry) Find(obj any) (*Ref, bool) {
	w, err := r.rt.MakeWeak(obj)
	if err != nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.byKey[w.Key()]
	if !ok || !ref.Alive() {
		return nil, false
	}
	return ref, true
}

// Deregister removes and returns the reference for obj. Deregistering an
// object that is not registered reports false.
func (r *Registry) Deregister(obj any) (*Ref, bool) {
	w, err := r.rt.MakeWeak(obj)
	if err != nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.byKey[w.Key()]
	if !ok {
		return nil, false
	}
	r.remove(ref)
	log.Debugf("deregistered %s", ref.id)
	return ref, true
}

// Lookup resolves a reference by ID. References whose object has been
// reclaimed are not found.
func (r *Registry) Lookup(id uuid.UUID) (*Ref, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.byID[id]
	if !ok || !ref.Alive() {
		return nil, false
	}
	return ref, true
}

// Prune drops entries whose objects have been reclaimed and returns how many
// were dropped.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prune()
}

// Count returns the number of entries, stale ones included.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

func (r *Registry) prune() int {
	n := 0
	for _, ref := range r.byKey {
		if !ref.Alive() {
			r.remove(ref)
			n++
		}
	}
	return n
}

func (r *Registry) remove(ref *Ref) {
	delete(r.byKey, ref.weak.Key())
	delete(r.byID, ref.id)
}
