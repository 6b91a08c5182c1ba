package store

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type counterState struct {
	Count int
	Names map[string]string
	Other []int
}

type increment struct{ By int }

func (increment) ActionType() string { return "test/increment" }

type setName struct{ Key, Value string }

func (setName) ActionType() string { return "test/setName" }

type explode struct{}

func (explode) ActionType() string { return "test/explode" }

type failing struct{}

func (failing) ActionType() string { return "test/failing" }

type unregistered struct{}

func (unregistered) ActionType() string { return "test/unregistered" }

func reduceCounter(s counterState, a Action) (counterState, error) {
	switch a := a.(type) {
	case increment:
		s.Count += a.By
		return s, nil
	case setName:
		names := make(map[string]string, len(s.Names)+1)
		for k, v := range s.Names {
			names[k] = v
		}
		names[a.Key] = a.Value
		s.Names = names
		return s, nil
	case explode:
		s.Count = -1
		var m map[string]int
		m["boom"] = 1
		return s, nil
	case failing:
		s.Count = -1
		return s, errors.New("reducer failed")
	default:
		return s, UnknownAction(a)
	}
}

func newCounterStore() *Store[counterState] {
	return New(counterState{Names: map[string]string{}}, reduceCounter)
}

func TestDispatch(t *testing.T) {
	s := newCounterStore()

	if err := s.Dispatch(increment{By: 2}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := s.Dispatch(increment{By: 3}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if got := s.GetState().Count; got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	s := newCounterStore()

	err := s.Dispatch(unregistered{})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Dispatch() error = %v, want ErrUnknownAction", err)
	}
	if got := s.GetState().Count; got != 0 {
		t.Errorf("Count = %d after rejected dispatch, want 0", got)
	}
}

func TestDispatch_AllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr error
	}{
		{"panicking reducer", explode{}, ErrReducerPanic},
		{"erroring reducer", failing{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newCounterStore()
			if err := s.Dispatch(increment{By: 1}); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}

			var notified atomic.Int32
			s.Subscribe(func() { notified.Add(1) })

			err := s.Dispatch(tt.action)
			if err == nil {
				t.Fatal("Dispatch() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.wantErr)
			}
			if got := s.GetState().Count; got != 1 {
				t.Errorf("Count = %d, want 1 (unchanged)", got)
			}
			if n := notified.Load(); n != 0 {
				t.Errorf("subscribers notified %d times for rejected dispatch", n)
			}
		})
	}
}

func TestGetState_SnapshotIsStable(t *testing.T) {
	s := newCounterStore()
	if err := s.Dispatch(setName{Key: "a", Value: "1"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	before := s.GetState()
	if err := s.Dispatch(setName{Key: "b", Value: "2"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if _, ok := before.Names["b"]; ok {
		t.Error("earlier snapshot observed a later write")
	}
	if got := s.GetState().Names["b"]; got != "2" {
		t.Errorf("Names[b] = %q, want 2", got)
	}
}

func TestDispatchFunc(t *testing.T) {
	s := newCounterStore()

	claim := func(st counterState) Action {
		if _, ok := st.Names["key"]; ok {
			return nil
		}
		return setName{Key: "key", Value: "pending"}
	}

	applied, err := s.DispatchFunc(claim)
	if err != nil || !applied {
		t.Fatalf("first DispatchFunc() = %v, %v; want true, nil", applied, err)
	}

	applied, err = s.DispatchFunc(claim)
	if err != nil || applied {
		t.Fatalf("second DispatchFunc() = %v, %v; want false, nil", applied, err)
	}
}

func TestDispatchFunc_ConcurrentClaimsOnce(t *testing.T) {
	s := newCounterStore()

	var claimed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := s.DispatchFunc(func(st counterState) Action {
				if _, ok := st.Names["key"]; ok {
					return nil
				}
				return setName{Key: "key", Value: "mine"}
			})
			if err != nil {
				t.Errorf("DispatchFunc() error = %v", err)
			}
			if applied {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := claimed.Load(); n != 1 {
		t.Errorf("claimed %d times, want 1", n)
	}
}

func TestSubscribe(t *testing.T) {
	s := newCounterStore()

	var calls atomic.Int32
	unsubscribe := s.Subscribe(func() { calls.Add(1) })

	_ = s.Dispatch(increment{By: 1})
	unsubscribe()
	_ = s.Dispatch(increment{By: 1})

	if n := calls.Load(); n != 1 {
		t.Errorf("subscriber called %d times, want 1", n)
	}
}

func TestSelect_NotifiesOnlyOnChange(t *testing.T) {
	s := newCounterStore()

	var changes []map[string]string
	sel := Select(s, func(st counterState) map[string]string { return st.Names }, func(m map[string]string) {
		changes = append(changes, m)
	})
	defer sel.Close()

	_ = s.Dispatch(increment{By: 1})
	_ = s.Dispatch(increment{By: 1})
	if len(changes) != 0 {
		t.Fatalf("got %d changes for unrelated dispatches, want 0", len(changes))
	}

	_ = s.Dispatch(setName{Key: "a", Value: "1"})
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0]["a"] != "1" {
		t.Errorf("change payload = %v", changes[0])
	}
	if sel.Value()["a"] != "1" {
		t.Errorf("Value() = %v", sel.Value())
	}
}

func TestSelect_ConcurrentDispatchesKeepLatest(t *testing.T) {
	s := newCounterStore()
	sel := Select(s, func(st counterState) int { return st.Count }, nil)
	defer sel.Close()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Dispatch(increment{By: 1})
		}()
	}
	wg.Wait()

	if got := sel.Value(); got != 50 {
		t.Errorf("Value() = %d, want 50", got)
	}
}

func TestSelect_Close(t *testing.T) {
	s := newCounterStore()

	var calls int
	sel := Select(s, func(st counterState) int { return st.Count }, func(int) { calls++ })
	sel.Close()

	_ = s.Dispatch(increment{By: 1})
	if calls != 0 {
		t.Errorf("onChange called %d times after Close", calls)
	}
}

func TestShallowEqual(t *testing.T) {
	m := map[string]string{"a": "1"}
	sl := []int{1, 2}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same map", m, m, true},
		{"equal content different map", m, map[string]string{"a": "1"}, false},
		{"same slice", sl, sl, true},
		{"resliced", sl, sl[:1], false},
		{"scalars", 3, 3, true},
		{"strings differ", "a", "b", false},
		{"struct sharing refs", counterState{Count: 1, Names: m, Other: sl}, counterState{Count: 1, Names: m, Other: sl}, true},
		{"struct with new map", counterState{Names: m}, counterState{Names: map[string]string{}}, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, 1, false},
		{"different types", 1, int64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShallowEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("ShallowEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}
