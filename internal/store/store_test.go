package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/reducer"
	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return New(reducer.Root, nil)
}

func TestDispatchActionCommitsBeforeListeners(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	var seen []string
	s.Subscribe(func(st *state.AppState) {
		assert.Same(t, st, s.GetState())
		seen = append(seen, "first:"+st.Session.Token)
	})
	s.Subscribe(func(st *state.AppState) {
		seen = append(seen, "second:"+st.Session.Token)
	})

	require.NoError(t, s.Dispatch(ctx, action.NewSetSessionToken("tok")))
	assert.Equal(t, []string{"first:tok", "second:tok"}, seen)
	assert.Equal(t, "tok", s.GetState().Session.Token)
}

func TestDispatchThunkReceivesStore(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	var got action.Dispatcher
	err := s.Dispatch(ctx, action.Thunk(func(ctx context.Context, d action.Dispatcher) error {
		got = d
		return d.Dispatch(ctx, action.NewRouteChange("/origins"))
	}))
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, "/origins", s.GetState().Router.Route)
}

func TestDispatchThunkErrorIsReturned(t *testing.T) {
	s := newStore()
	boom := errors.New("boom")
	err := s.Dispatch(context.Background(), action.Thunk(func(context.Context, action.Dispatcher) error {
		return boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestDispatchNil(t *testing.T) {
	s := newStore()
	assert.ErrorIs(t, s.Dispatch(context.Background(), nil), ErrNilAction)
	assert.ErrorIs(t, s.Dispatch(context.Background(), action.Thunk(nil)), ErrNilAction)
}

func TestDispatchAfterCancel(t *testing.T) {
	s := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := s.GetState()
	err := s.Dispatch(ctx, action.NewSetSessionToken("tok"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Same(t, before, s.GetState())
}

func TestUnsubscribe(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	calls := 0
	unsubscribe := s.Subscribe(func(*state.AppState) { calls++ })

	require.NoError(t, s.Dispatch(ctx, action.NewClearBuilds()))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Dispatch(ctx, action.NewClearBuilds()))

	assert.Equal(t, 1, calls)
}

func TestUnknownActionKeepsSnapshot(t *testing.T) {
	s := newStore()
	before := s.GetState()

	notified := false
	s.Subscribe(func(*state.AppState) { notified = true })

	require.NoError(t, s.Dispatch(context.Background(), action.Action{Type: "NOT_A_THING"}))
	assert.Same(t, before, s.GetState())
	assert.True(t, notified)
}

func TestConcurrentDispatchesAreSerialized(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Dispatch(ctx, action.NewAddNotification(state.Notification{Type: state.NotificationInfo}))
		}()
	}
	wg.Wait()

	assert.Len(t, s.GetState().Notifications.All, n)
}
