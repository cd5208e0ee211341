// Package hooks provides an ordered hook registry where every hook is bound
// to an event key and tagged with the owner that registered it.
//
// Hooks run in registration order. An owner can swap its whole set of hooks
// in a single call, so a reader never sees a partially replaced set.
package hooks

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Entry is a single registered hook
type Entry[T any] struct {
	Owner string // Module or subsystem that registered the hook
	Key   string // Event the hook is bound to
	Hook  T      // The hook value itself
}

// PanicError is returned in place of a hook that panicked
type PanicError struct {
	Owner string
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in hook %s/%s: %v", e.Owner, e.Key, e.Value)
}

// Registry manages hook registration and execution for a specific hook type
type Registry[T any] struct {
	mu      sync.RWMutex
	entries []Entry[T]
}

// NewRegistry creates a new hook registry for the given hook type
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make([]Entry[T], 0),
	}
}

// Register appends a hook for key, owned by owner
func (r *Registry[T]) Register(owner, key string, hook T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry[T]{Owner: owner, Key: key, Hook: hook})
}

// Replace drops every hook owned by owner and appends entries in their place.
// The Owner field of each entry is forced to owner.
func (r *Registry[T]) Replace(owner string, entries []Entry[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Entry[T], 0, len(r.entries)+len(entries))
	for _, e := range r.entries {
		if e.Owner != owner {
			next = append(next, e)
		}
	}
	for _, e := range entries {
		e.Owner = owner
		next = append(next, e)
	}
	r.entries = next
}

// RemoveOwner drops every hook owned by owner and returns how many were removed
func (r *Registry[T]) RemoveOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]Entry[T], 0, len(r.entries))
	for _, e := range r.entries {
		if e.Owner != owner {
			kept = append(kept, e)
		}
	}
	removed := len(r.entries) - len(kept)
	r.entries = kept
	return removed
}

// Hooks returns a snapshot of the hooks bound to key, in registration order
func (r *Registry[T]) Hooks(key string) []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry[T]
	for _, e := range r.entries {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

// RunUntil calls fn for each hook bound to key and stops at the first error,
// which is returned. Hooks after the failing one are not called.
func (r *Registry[T]) RunUntil(key string, fn func(Entry[T]) error) error {
	for _, e := range r.Hooks(key) {
		if err := call(e, fn); err != nil {
			return err
		}
	}
	return nil
}

// RunAll calls fn for every hook bound to key. Failures do not stop the run;
// they are joined into the returned error.
func (r *Registry[T]) RunAll(key string, fn func(Entry[T]) error) error {
	var errs []error
	for _, e := range r.Hooks(key) {
		if err := call(e, fn); err != nil {
			zap.S().Errorw("hook failed", "owner", e.Owner, "key", e.Key, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// call runs fn for a single entry and turns a panic into a *PanicError
func call[T any](e Entry[T], fn func(Entry[T]) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			zap.S().Errorw("PANIC in hook", "owner", e.Owner, "key", e.Key, "panic", v)
			err = &PanicError{Owner: e.Owner, Key: e.Key, Value: v}
		}
	}()
	return fn(e)
}

// Clear removes all hooks from the registry
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make([]Entry[T], 0)
}

// Count returns the number of registered hooks
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// CountOwner returns the number of hooks registered by owner
func (r *Registry[T]) CountOwner(owner string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.Owner == owner {
			n++
		}
	}
	return n
}
