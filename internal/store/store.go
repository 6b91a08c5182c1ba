// Package store implements the action/reducer runtime that owns the
// application state tree.
//
// All mutation goes through Dispatch. Reducers are pure: they return a new
// state and never modify the one they are given, so a snapshot returned by
// GetState stays valid after later dispatches.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats/internal/metrics"
)

// Sentinel errors.
var (
	// ErrUnknownAction is returned when no reducer owns an action.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrReducerPanic is returned when a reducer panics. The state is left
	// unchanged.
	ErrReducerPanic = errors.New("reducer panicked")
)

// Action is a tagged payload produced by an action constructor.
type Action interface {
	ActionType() string
}

// Reducer computes the next state for an action.
type Reducer[S any] func(state S, action Action) (S, error)

// UnknownAction builds the error a reducer returns for an action it does not own.
func UnknownAction(a Action) error {
	if a == nil {
		return fmt.Errorf("%w: <nil>", ErrUnknownAction)
	}
	return fmt.Errorf("%w: %s", ErrUnknownAction, a.ActionType())
}

// Store holds a state tree of type S.
type Store[S any] struct {
	mu     sync.Mutex
	state  S
	reduce Reducer[S]

	subsMu sync.RWMutex
	subs   map[uuid.UUID]func()

	log zerolog.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// New creates a store with the given initial state and root reducer.
func New[S any](initial S, reduce Reducer[S], opts ...Option) *Store[S] {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[S]{
		state:  initial,
		reduce: reduce,
		subs:   make(map[uuid.UUID]func()),
		log:    o.log,
	}
}

// GetState returns the current snapshot. Callers must treat it as read-only.
func (s *Store[S]) GetState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies an action. Either the whole reduced tree is committed or,
// on error, nothing is.
func (s *Store[S]) Dispatch(a Action) error {
	_, err := s.DispatchFunc(func(S) Action { return a })
	return err
}

// DispatchFunc derives an action from the current state and applies it
// without releasing the store lock in between, so a check-then-write cannot
// interleave with another dispatch. A nil action is a no-op and reports false.
func (s *Store[S]) DispatchFunc(fn func(S) Action) (bool, error) {
	s.mu.Lock()
	a := fn(s.state)
	if a == nil {
		s.mu.Unlock()
		return false, nil
	}

	next, err := s.apply(a)
	if err == nil {
		s.state = next
	}
	s.mu.Unlock()

	metrics.RecordDispatch(a.ActionType(), err)
	if err != nil {
		s.log.Error().Err(err).Str("action", a.ActionType()).Msg("dispatch rejected")
		return false, err
	}

	s.log.Trace().Str("action", a.ActionType()).Msg("dispatched")
	s.notify()
	return true, nil
}

// apply runs the reducer, converting a panic into ErrReducerPanic.
// Must be called with mu held.
func (s *Store[S]) apply(a Action) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrReducerPanic, a.ActionType(), r)
		}
	}()
	return s.reduce(s.state, a)
}

// Subscribe registers fn to run after every committed dispatch.
func (s *Store[S]) Subscribe(fn func()) (unsubscribe func()) {
	id := uuid.New()

	s.subsMu.Lock()
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store[S]) notify() {
	s.subsMu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
