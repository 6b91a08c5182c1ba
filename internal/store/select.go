package store

import (
	"reflect"
	"sync"
)

// Selection tracks a projection of a store's state.
type Selection[T any] struct {
	mu       sync.Mutex
	current  T
	closed   bool
	unsub    func()
	onChange func(T)
}

// Select projects the store state with project and calls onChange whenever
// the projection changes under ShallowEqual. onChange may be nil, in which
// case the selection only keeps Value current.
func Select[S, T any](s *Store[S], project func(S) T, onChange func(T)) *Selection[T] {
	sel := &Selection[T]{
		current:  project(s.GetState()),
		onChange: onChange,
	}
	sel.unsub = s.Subscribe(func() {
		sel.update(func() T { return project(s.GetState()) })
	})
	return sel
}

// Value returns the latest projection.
func (sel *Selection[T]) Value() T {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.current
}

// Close stops the selection from observing the store.
func (sel *Selection[T]) Close() {
	sel.mu.Lock()
	sel.closed = true
	sel.mu.Unlock()
	sel.unsub()
}

// update reads the state under sel.mu, so notifications that race each
// other can never move current back to an older state.
func (sel *Selection[T]) update(read func() T) {
	sel.mu.Lock()
	if sel.closed {
		sel.mu.Unlock()
		return
	}
	next := read()
	if ShallowEqual(sel.current, next) {
		sel.mu.Unlock()
		return
	}
	sel.current = next
	onChange := sel.onChange
	sel.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
}

// ShallowEqual reports whether a and b are equal without following
// references: maps, slices, pointers, channels and funcs compare by
// identity, while structs and arrays compare field by field.
func ShallowEqual(a, b any) bool {
	return shallowEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func shallowEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.UnsafePointer() == b.UnsafePointer()
	case reflect.Slice:
		return a.UnsafePointer() == b.UnsafePointer() && a.Len() == b.Len()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return shallowEqual(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := range a.NumField() {
			if !shallowEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := range a.Len() {
			if !shallowEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}
