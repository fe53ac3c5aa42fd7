package statemachine

import "fmt"

// Option configures a machine during construction.
type Option func(*machine) error

// TransitionOption attaches guards and actions to one transition.
type TransitionOption func(*transition)

// New builds a machine starting in initial.
func New(initial State, opts ...Option) (StateMachine, error) {
	if initial == nil {
		return nil, ErrNilInitialState
	}
	m := &machine{current: initial, table: make(map[key][]transition)}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New for static tables; it panics on error.
func MustNew(initial State, opts ...Option) StateMachine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition allows event to move the machine from one state to
// another. Several transitions may share a source and event; the first
// whose guards pass is taken.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *machine) error {
		if from == nil || to == nil || event == nil {
			return ErrInvalidTransition
		}
		t := transition{to: to}
		for _, opt := range opts {
			opt(&t)
		}
		k := key{from: from.Name(), event: event.Name()}
		m.table[k] = append(m.table[k], t)
		return nil
	}
}

func WithGuard(g Guard) TransitionOption {
	return func(t *transition) {
		if g != nil {
			t.guards = append(t.guards, g)
		}
	}
}

// WithAction adds an action; actions run in the order they were added.
func WithAction(a Action) TransitionOption {
	return func(t *transition) {
		if a != nil {
			t.actions = append(t.actions, a)
		}
	}
}
