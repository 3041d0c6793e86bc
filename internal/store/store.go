// Package store holds the current application state and applies dispatched
// actions to it.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/state"
)

// ErrNilAction is returned when Dispatch is called with nil.
var ErrNilAction = errors.New("store: nil dispatchable")

// Reducer computes the next state for an action.
type Reducer func(*state.AppState, action.Action) *state.AppState

// Listener is called with the committed state after each plain action.
type Listener func(*state.AppState)

// Store wraps a reducer and the state it produced last.
//
// Plain actions are reduced one at a time. The new state is visible through
// GetState before any listener runs, and listeners run in registration order.
// Listeners must not dispatch synchronously; they may hand work to another
// goroutine that does.
type Store struct {
	reduce Reducer
	logger *slog.Logger

	dispatchMu sync.Mutex
	current    atomic.Pointer[state.AppState]

	listenersMu  sync.Mutex
	listeners    map[uint64]Listener
	order        []uint64
	nextListener uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store. A nil initial state starts from state.New().
func New(root Reducer, initial *state.AppState, opts ...Option) *Store {
	if initial == nil {
		initial = state.New()
	}
	s := &Store{
		reduce:    root,
		logger:    slog.Default(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(initial)
	return s
}

// GetState returns the current snapshot. The value must not be modified.
func (s *Store) GetState() *state.AppState {
	return s.current.Load()
}

// Dispatch applies d. A thunk is invoked with the store and its error is
// returned; a plain action is reduced, committed and announced to listeners.
// Nothing is applied once ctx is done.
func (s *Store) Dispatch(ctx context.Context, d action.Dispatchable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch v := d.(type) {
	case action.Thunk:
		if v == nil {
			return ErrNilAction
		}
		return v(ctx, s)
	case action.Action:
		s.apply(v)
		return nil
	default:
		return ErrNilAction
	}
}

func (s *Store) apply(a action.Action) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.current.Load()
	next := s.reduce(prev, a)
	if a.Err != nil {
		s.logger.Debug("dispatch", "action", a.Type, "error", a.Err)
	} else {
		s.logger.Debug("dispatch", "action", a.Type, "changed", next != prev)
	}
	s.current.Store(next)

	for _, fn := range s.snapshotListeners() {
		fn(next)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Store) remove(id uint64) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	delete(s.listeners, id)
	order := make([]uint64, 0, len(s.order))
	for _, o := range s.order {
		if o != id {
			order = append(order, o)
		}
	}
	s.order = order
}

func (s *Store) snapshotListeners() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	out := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.listeners[id])
	}
	return out
}
