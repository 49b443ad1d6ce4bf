package fsm

import (
	"fmt"
	"sync"
)

type State string
type Event string

// Handler is executed when a transition occurs
type Handler func(event Event, args ...interface{}) error

// Observer is notified after every committed transition.
type Observer func(from, to State, event Event)

type StateMachine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]State
	callbacks   map[State]map[Event]Handler
	observers   []Observer
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]map[Event]Handler),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
		sm.callbacks[from] = make(map[Event]Handler)
	}
	sm.transitions[from][event] = to
	sm.callbacks[from][event] = callback
}

// Observe registers fn to be called after each transition.
func (sm *StateMachine) Observe(fn Observer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.observers = append(sm.observers, fn)
}

// Can reports whether event is valid from the current state.
func (sm *StateMachine) Can(event Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.transitions[sm.current][event]
	return ok
}

// Fire triggers a state transition. It is thread-safe.
// The state is committed before the edge callback runs, and the callback runs
// without the lock held so it may inspect the machine or fire follow-up events.
// A callback error is returned to the caller but does not roll the state back.
func (sm *StateMachine) Fire(event Event, args ...interface{}) error {
	sm.mu.Lock()
	from := sm.current
	next, ok := sm.transitions[from][event]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", from, event)
	}
	handler := sm.callbacks[from][event]
	sm.current = next
	observers := append([]Observer(nil), sm.observers...)
	sm.mu.Unlock()

	for _, o := range observers {
		o(from, next, event)
	}

	if handler != nil {
		return handler(event, args...)
	}
	return nil
}

// Personal.AI order the ending
