package roots

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry maps path prefixes to build roots.
//
// Readers load an immutable snapshot without locking. Writers serialize on a
// mutex and publish a new snapshot, so a reader never sees a partial update.
type Registry struct {
	policy PathPolicy

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[registrySnapshot]
}

type registrySnapshot struct {
	byPrefix map[string]BuildRoot
	// prefixes sorted by descending length; the first match is the longest.
	prefixes []string
}

// NewRegistry creates an empty registry.
func NewRegistry(policy PathPolicy) *Registry {
	r := &Registry{policy: policy}
	r.snap.Store(newRegistrySnapshot(map[string]BuildRoot{}))
	return r
}

func newRegistrySnapshot(byPrefix map[string]BuildRoot) *registrySnapshot {
	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	return &registrySnapshot{byPrefix: byPrefix, prefixes: prefixes}
}

// mutate copies the current map, applies fn and publishes the result.
// Callers must hold r.mu.
func (r *Registry) mutate(fn func(m map[string]BuildRoot)) {
	cur := r.snap.Load()
	next := make(map[string]BuildRoot, len(cur.byPrefix)+1)
	for k, v := range cur.byPrefix {
		next[k] = v
	}
	fn(next)
	r.snap.Store(newRegistrySnapshot(next))
}

// Add inserts root under its normalized prefix, replacing any root with the
// same prefix. It returns the displaced root or nil.
func (r *Registry) Add(root BuildRoot) BuildRoot {
	key := r.policy.Key(root.PathPrefix())
	root = withPrefix(root, key)

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.snap.Load().byPrefix[key]
	r.mutate(func(m map[string]BuildRoot) { m[key] = root })
	return prev
}

// Remove deletes the root at prefix and returns it, or nil.
func (r *Registry) Remove(prefix string) BuildRoot {
	prefix = r.policy.Key(prefix)

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.snap.Load().byPrefix[prefix]
	if !ok {
		return nil
	}
	r.mutate(func(m map[string]BuildRoot) { delete(m, prefix) })
	return prev
}

// Update replaces the root at prefix with fn(current). Nothing happens when
// no root is registered at prefix or fn returns nil. It returns the new root.
func (r *Registry) Update(prefix string, fn func(BuildRoot) BuildRoot) BuildRoot {
	prefix = r.policy.Key(prefix)

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.snap.Load().byPrefix[prefix]
	if !ok {
		return nil
	}
	next := fn(cur)
	if next == nil {
		return nil
	}
	next = withPrefix(next, prefix)
	r.mutate(func(m map[string]BuildRoot) { m[prefix] = next })
	return next
}

// UpdateByPath is Update on the root covering path, as one atomic step.
func (r *Registry) UpdateByPath(path string, fn func(BuildRoot) BuildRoot) BuildRoot {
	key := r.policy.Key(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load().find(r.policy, key)
	if cur == nil {
		return nil
	}
	next := fn(cur)
	if next == nil {
		return nil
	}
	next = withPrefix(next, cur.PathPrefix())
	r.mutate(func(m map[string]BuildRoot) { m[cur.PathPrefix()] = next })
	return next
}

// FindByPath returns the root with the longest prefix covering path, or nil.
func (r *Registry) FindByPath(path string) BuildRoot {
	return r.snap.Load().find(r.policy, r.policy.Key(path))
}

func (s *registrySnapshot) find(policy PathPolicy, key string) BuildRoot {
	if key == "" {
		return nil
	}
	for _, p := range s.prefixes {
		if policy.HasPrefix(key, p) {
			return s.byPrefix[p]
		}
	}
	return nil
}

// FindByWorkingDir returns the root registered exactly at dir, or nil.
func (r *Registry) FindByWorkingDir(dir string) BuildRoot {
	return r.snap.Load().byPrefix[r.policy.Key(dir)]
}

// List returns all roots, longest prefix first.
func (r *Registry) List() []BuildRoot {
	s := r.snap.Load()
	out := make([]BuildRoot, 0, len(s.prefixes))
	for _, p := range s.prefixes {
		out = append(out, s.byPrefix[p])
	}
	return out
}

// Len returns the number of roots.
func (r *Registry) Len() int {
	return len(r.snap.Load().prefixes)
}

// IsStandaloneScript reports whether path has no covering root or is covered
// by an Unsupported root.
func (r *Registry) IsStandaloneScript(path string) bool {
	switch r.FindByPath(path).(type) {
	case nil, *Unsupported:
		return true
	default:
		return false
	}
}
