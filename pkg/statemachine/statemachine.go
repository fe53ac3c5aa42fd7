package statemachine

import "context"

type State interface {
	Name() string
}

type Event interface {
	Name() string
}

// Action runs during a transition, before the state changes. A non-nil
// error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard decides whether a candidate transition may be taken.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// StateMachine is a finite state machine safe for concurrent use.
type StateMachine interface {
	Current() State
	Fire(ctx context.Context, event Event, data any) error
	CanFire(ctx context.Context, event Event, data any) bool
}

// StringState is a State named by its value.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event named by its value.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }
