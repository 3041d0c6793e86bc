// Package reducer applies actions to the state tree.
//
// Every reducer is pure and total: an action it does not handle, or one whose
// payload has an unexpected type, returns the input pointer unchanged. A
// reducer that does change its slice returns a new value and never writes
// through the pointer it was given.
package reducer

import (
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/state"
)

// Root applies a to every slice of s. It returns s itself when no slice
// changed.
func Root(s *state.AppState, a action.Action) *state.AppState {
	next := &state.AppState{
		Session:       Session(s.Session, a),
		Users:         Users(s.Users, a),
		Origins:       Origins(s.Origins, a),
		Packages:      Packages(s.Packages, a),
		Builds:        Builds(s.Builds, a),
		Projects:      Projects(s.Projects, a),
		Notifications: Notifications(s.Notifications, a),
		Router:        Router(s.Router, a),
	}
	if *next == *s {
		return s
	}
	return next
}

// payload returns a's payload as T.
func payload[T any](a action.Action) (T, bool) {
	v, ok := a.Payload.(T)
	return v, ok
}

// ptr returns the value behind a non-nil pointer payload.
func ptr[T any](a action.Action) (T, bool) {
	var zero T
	p, ok := a.Payload.(*T)
	if !ok || p == nil {
		return zero, false
	}
	return *p, true
}

// failed returns the UI status for a completed request.
func failed(err error) state.UI {
	if err == nil {
		return state.UI{}
	}
	return state.UI{Err: err.Error()}
}

func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
