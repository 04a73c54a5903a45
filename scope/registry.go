package scope

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Registry holds the set of scope names an engine is willing to grant.
// Scopes are registered during engine construction and the registry is
// frozen before the first flow runs.
type Registry struct {
	mu     sync.RWMutex
	names  map[string]struct{}
	frozen bool
}

// NewRegistry creates an empty scope [Registry].
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a scope name. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return errors.New("invalid scope name")
	}
	if _, exists := r.names[name]; exists {
		return errors.New("scope already registered")
	}

	r.names[name] = struct{}{}
	return nil
}

// Freeze prevents further registrations. Must be called before the
// registry is used for validation.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Has reports whether the named scope is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Count returns the number of registered scopes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// ValidateRequested checks that every scope in the space-delimited request
// string is registered. An empty request is valid (the caller decides what
// an empty grant means).
func (r *Registry) ValidateRequested(requested string) error {
	for _, name := range Parse(requested) {
		if !r.Has(name) {
			return errors.New("unknown scope: " + name)
		}
	}
	return nil
}

// Parse splits a space-delimited scope string into de-duplicated, sorted
// scope names.
func Parse(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Join canonicalizes a scope string: parsed, de-duplicated, sorted,
// space-joined.
func Join(names []string) string {
	return strings.Join(names, " ")
}

// IsSubset reports whether every scope in sub also appears in super.
// Both are space-delimited scope strings.
func IsSubset(sub, super string) bool {
	superSet := make(map[string]struct{})
	for _, name := range Parse(super) {
		superSet[name] = struct{}{}
	}
	for _, name := range Parse(sub) {
		if _, ok := superSet[name]; !ok {
			return false
		}
	}
	return true
}
