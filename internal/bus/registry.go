package bus

import "sync"

// Registry is the process-wide path → Bus mapping: a sync.Map keyed by
// path, so lookups and creates never contend on a lock. Rename and Unlink
// mutate keys in multiple steps and additionally serialize on nameMu; see
// the comments on those methods.
type Registry struct {
	m sync.Map // path string -> *Bus

	// nameMu serializes Rename and Unlink with each other. A rename moves
	// a Bus between keys in two map operations; without this lock an
	// unlink of the old name landing between them would mark the
	// just-renamed Bus unlinked.
	nameMu sync.Mutex
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// GetOptions controls Registry.Get's lookup, creation, and ref-increment
// behavior.
type GetOptions struct {
	// Create inserts a fresh Bus if path is not yet registered.
	Create bool
	// Increment atomically bumps the returned Bus's refcount (and its
	// reader or writer count, per Writer) before Get returns.
	Increment bool
	// Writer selects which role count Increment bumps.
	Writer bool
	// BusOptions configures a newly created Bus. Ignored if the path was
	// already registered.
	BusOptions Options
}

// Get looks up path, optionally creating and/or ref-incrementing it. ok is
// false only when the path was absent and Create was not requested.
func (r *Registry) Get(path string, opts GetOptions) (b *Bus, ok bool) {
	if v, loaded := r.m.Load(path); loaded {
		b = v.(*Bus)
		if opts.Increment {
			b.addRef(opts.Writer)
		}
		return b, true
	}

	if !opts.Create {
		return nil, false
	}

	candidate := New(path, opts.BusOptions)
	actual, _ := r.m.LoadOrStore(path, candidate)
	b = actual.(*Bus)

	if opts.Increment {
		b.addRef(opts.Writer)
	}

	return b, true
}

// Rename moves bus's registry key from its current path to newPath. The
// Bus's own path field is set via setPath before the map is updated, so a
// lookup of newPath always finds a Bus whose path is newPath. Get does not
// take nameMu, so a lookup of the old path that races with the rename can
// still find the Bus, whose path already reads newPath, until the old key
// is deleted. Holding nameMu across both map operations keeps a
// concurrent Unlink of the old name from observing the half-moved state.
func (r *Registry) Rename(b *Bus, newPath string) {
	r.nameMu.Lock()
	defer r.nameMu.Unlock()

	old := b.Path()
	b.setPath(newPath)
	r.m.Store(newPath, b)
	r.m.CompareAndDelete(old, b)
}

// Unlink removes path from the registry and marks its Bus unlinked. Open
// handles remain valid; blocked readers wake and observe the new state
// the next time their wake condition is evaluated.
func (r *Registry) Unlink(path string) (*Bus, bool) {
	r.nameMu.Lock()
	defer r.nameMu.Unlock()

	v, ok := r.m.Load(path)
	if !ok {
		return nil, false
	}

	b := v.(*Bus)
	if b.Path() != path {
		// A rename moved this Bus off path already; the caller is
		// unlinking a stale name.
		return nil, false
	}
	if !r.m.CompareAndDelete(path, b) {
		return nil, false
	}

	b.markUnlinked()
	return b, true
}

// Range calls fn for every currently-registered path with its Bus's
// Counts(), for out-of-band introspection (cmd/busfsd's stats snapshot).
// Iteration order is unspecified, matching
// sync.Map.Range's own contract.
func (r *Registry) Range(fn func(path string, readers, writers, refs int, unlinked bool)) {
	r.m.Range(func(k, v any) bool {
		b := v.(*Bus)
		readers, writers, refs, unlinked := b.Counts()
		fn(k.(string), readers, writers, refs, unlinked)
		return true
	})
}

// Release decrements bus's refcount and role count. The Bus is only
// eligible for destruction once refcount reaches zero and it has been
// unlinked; Go's garbage collector reclaims it once the last reference
// (here, the caller's) drops, so there is no explicit free step beyond
// dropping the pointer.
func (r *Registry) Release(b *Bus, writer bool) {
	b.release(writer)
}
