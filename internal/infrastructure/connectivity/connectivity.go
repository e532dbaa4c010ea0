// Package connectivity tells the sync engine whether the network is usable
// and notifies listeners when that changes.
package connectivity

import (
	"context"
	"sync"
)

// State is the last known reachability
type State int

const (
	StateUnknown State = iota
	StateOffline
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Checker answers whether a network call is worth attempting
type Checker interface {
	IsConnected(ctx context.Context) bool
}

// Watcher publishes state transitions. The returned func unsubscribes and
// closes the channel; calling it more than once is safe.
type Watcher interface {
	Subscribe() (<-chan State, func())
}

// broadcaster fans state transitions out to subscribers. Each subscriber
// has a one-slot buffer holding the newest undelivered state, so a slow
// reader skips intermediate states but never blocks the publisher.
type broadcaster struct {
	mu      sync.Mutex
	current State
	nextID  int
	subs    map[int]chan State
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan State)}
}

func (b *broadcaster) Subscribe() (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan State, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// set records s and reports whether it was a transition
func (b *broadcaster) set(s State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s == b.current {
		return false
	}
	b.current = s
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	return true
}

func (b *broadcaster) state() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Manual is a state source driven by the embedding application, which
// reports changes it learns from the platform.
type Manual struct {
	*broadcaster
}

var (
	_ Checker = (*Manual)(nil)
	_ Watcher = (*Manual)(nil)
)

// NewManual creates a Manual source in the given initial state
func NewManual(initial State) *Manual {
	m := &Manual{broadcaster: newBroadcaster()}
	m.current = initial
	return m
}

// Set reports a new state; subscribers see it only when it differs from
// the current one
func (m *Manual) Set(s State) {
	m.set(s)
}

// State returns the current state
func (m *Manual) State() State {
	return m.state()
}

// IsConnected reports whether the current state is StateConnected
func (m *Manual) IsConnected(context.Context) bool {
	return m.state() == StateConnected
}
