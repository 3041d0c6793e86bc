// Package action defines the descriptors dispatched into the store and the
// creators that build them.
//
// A Dispatchable is either a plain Action, which a reducer applies to the
// state tree, or a Thunk, which the store invokes with itself so the thunk can
// perform I/O and dispatch plain actions when it completes. Side effects
// (HTTP calls, cookie writes, timers) only ever happen inside thunks.
package action

import (
	"context"

	"github.com/narvanalabs/builder-web/internal/state"
)

// Type discriminates plain actions.
type Type string

const (
	// session
	SetSessionToken Type = "SET_SESSION_TOKEN"
	ResetAppState   Type = "RESET_APP_STATE"

	// users
	PopulateProfile Type = "POPULATE_PROFILE"

	// origins
	PopulateOrigin           Type = "POPULATE_ORIGIN"
	PopulateMyOrigins        Type = "POPULATE_MY_ORIGINS"
	PopulateOriginPublicKeys Type = "POPULATE_ORIGIN_PUBLIC_KEYS"
	SetOriginLoading         Type = "SET_ORIGIN_LOADING"

	// packages
	ClearPackages           Type = "CLEAR_PACKAGES"
	PopulatePackage         Type = "POPULATE_PACKAGE"
	PopulateVisiblePackages Type = "POPULATE_VISIBLE_PACKAGES"
	PopulatePackageChannels Type = "POPULATE_PACKAGE_CHANNELS"

	// builds
	ClearBuilds      Type = "CLEAR_BUILDS"
	ClearBuild       Type = "CLEAR_BUILD"
	ClearBuildLog    Type = "CLEAR_BUILD_LOG"
	PopulateBuilds   Type = "POPULATE_BUILDS"
	PopulateBuild    Type = "POPULATE_BUILD"
	PopulateBuildLog Type = "POPULATE_BUILD_LOG"
	StreamBuildLog   Type = "STREAM_BUILD_LOG"
	BuildLogFailed   Type = "BUILD_LOG_FAILED"
	PopulateJobGroup Type = "POPULATE_JOB_GROUP"

	// projects
	PopulateProject  Type = "POPULATE_PROJECT"
	PopulateProjects Type = "POPULATE_PROJECTS"

	// notifications
	AddNotification     Type = "ADD_NOTIFICATION"
	RemoveNotification  Type = "REMOVE_NOTIFICATION"
	DismissNotification Type = "DISMISS_NOTIFICATION"

	// router
	RouteChange    Type = "ROUTE_CHANGE"
	RouteRequested Type = "ROUTE_REQUESTED"
)

// Types returns every known action type.
func Types() []Type {
	return []Type{
		SetSessionToken, ResetAppState,
		PopulateProfile,
		PopulateOrigin, PopulateMyOrigins, PopulateOriginPublicKeys, SetOriginLoading,
		ClearPackages, PopulatePackage, PopulateVisiblePackages, PopulatePackageChannels,
		ClearBuilds, ClearBuild, ClearBuildLog, PopulateBuilds, PopulateBuild, PopulateBuildLog,
		StreamBuildLog, BuildLogFailed, PopulateJobGroup,
		PopulateProject, PopulateProjects,
		AddNotification, RemoveNotification, DismissNotification,
		RouteChange, RouteRequested,
	}
}

// Known reports whether t is one of Types().
func Known(t Type) bool {
	for _, k := range Types() {
		if k == t {
			return true
		}
	}
	return false
}

// Dispatchable is implemented by Action and Thunk only.
type Dispatchable interface {
	dispatchable()
}

// Action is a plain state transition descriptor.
//
// Err is set when the operation that produced the action failed; Payload is
// then nil. Reducers treat Err as a signal to leave their data untouched or
// record the failure, never to panic.
type Action struct {
	Type    Type
	Payload any
	Err     error
}

func (Action) dispatchable() {}

// Dispatcher is the capability handed to thunks.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Dispatchable) error
	GetState() *state.AppState
}

// Thunk is a deferred action. It is invoked by the store and dispatches plain
// actions back into it. A thunk returns an error only when it could not run at
// all (for example its context was cancelled); failed API calls are reported
// through dispatched actions instead.
type Thunk func(ctx context.Context, d Dispatcher) error

func (Thunk) dispatchable() {}

// Sequence returns a thunk that dispatches each item in order, stopping at the
// first error.
func Sequence(items ...Dispatchable) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		for _, item := range items {
			if err := d.Dispatch(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}
}
