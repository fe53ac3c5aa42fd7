package statemachine

import (
	"context"
	"fmt"
	"sync"
)

type key struct {
	from  string
	event string
}

type transition struct {
	to      State
	guards  []Guard
	actions []Action
}

type machine struct {
	mu      sync.RWMutex
	current State
	table   map[key][]transition
}

func (m *machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *machine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.match(ctx, event, data)
	if err != nil {
		return err
	}
	for _, action := range t.actions {
		if err := action(ctx, m.current, t.to, event, data); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}
	m.current = t.to
	return nil
}

func (m *machine) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := m.match(ctx, event, data)
	return err == nil
}

// match returns the first transition whose guards pass. Requires m.mu.
func (m *machine) match(ctx context.Context, event Event, data any) (transition, error) {
	from := m.current.Name()
	candidates := m.table[key{from: from, event: event.Name()}]
	if len(candidates) == 0 {
		return transition{}, &NoTransitionError{State: from, Event: event.Name()}
	}
	for _, t := range candidates {
		if allow(ctx, t.guards, m.current, event, data) {
			return t, nil
		}
	}
	return transition{}, &RejectedError{State: from, Event: event.Name()}
}

func allow(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, g := range guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
