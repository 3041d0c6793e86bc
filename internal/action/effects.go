package action

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/builder-web/internal/clock"
	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/web/api"
)

// BuilderAPI is the subset of the Builder API client the effects use.
// *api.Client implements it.
type BuilderAPI interface {
	Authenticate(ctx context.Context, name string) (*api.Session, error)
	GetProfile(ctx context.Context, token string) (*state.Profile, error)
	ListMyOrigins(ctx context.Context, token string) ([]state.Origin, error)

	CreateOrigin(ctx context.Context, token string, o api.OriginRequest) (*state.Origin, error)
	UpdateOrigin(ctx context.Context, token, name string, o api.OriginRequest) error
	GetOrigin(ctx context.Context, name string) (*state.Origin, error)
	ListOriginPublicKeys(ctx context.Context, token, origin string) ([]state.OriginKey, error)
	UploadOriginKey(ctx context.Context, token string, kind api.KeyKind, origin, revision, key string) error
	CreateChannel(ctx context.Context, token, origin, channel string) (*api.Channel, error)

	GetPackage(ctx context.Context, token string, ident state.PackageIdent) (*state.Package, error)
	ListPackages(ctx context.Context, token, origin, name string, rangeStart int) (*api.PackageList, error)
	ListChannelPackages(ctx context.Context, token, origin, channel string, rangeStart int) (*api.PackageList, error)
	ListPackageChannels(ctx context.Context, token string, ident state.PackageIdent) ([]string, error)
	PromotePackage(ctx context.Context, token, channel string, ident state.PackageIdent) error
	DemotePackage(ctx context.Context, token, channel string, ident state.PackageIdent) error
	SetPackageVisibility(ctx context.Context, token string, ident state.PackageIdent, v state.PackageVisibility) error

	ScheduleJob(ctx context.Context, token, origin, name string) (*state.JobGroup, error)
	GetJobGroup(ctx context.Context, token, id string) (*state.JobGroup, error)
	ListBuilds(ctx context.Context, token, origin, name string) ([]state.Build, error)
	GetBuild(ctx context.Context, token, id string) (*state.Build, error)
	GetBuildLog(ctx context.Context, token, id string, start int) (*state.LogPage, error)

	GetProject(ctx context.Context, token, origin, name string) (*state.Project, error)
	ListProjects(ctx context.Context, token, origin string) ([]state.Project, error)
}

var _ BuilderAPI = (*api.Client)(nil)

// Delays are the waits used by timer-driven effects.
type Delays struct {
	// NotificationDismiss is how long a notification stays displayed.
	NotificationDismiss time.Duration
	// LogPoll is the wait between pages of an incomplete build log.
	LogPoll time.Duration
	// BuildRefresh is the wait before re-fetching a build whose log completed.
	BuildRefresh time.Duration
	// BuildListRefresh is the wait before re-fetching builds after a job submit.
	BuildListRefresh time.Duration
}

// DefaultDelays returns the standard delays.
func DefaultDelays() Delays {
	return Delays{
		NotificationDismiss: 5 * time.Second,
		LogPoll:             2 * time.Second,
		BuildRefresh:        5 * time.Second,
		BuildListRefresh:    5 * time.Second,
	}
}

// Effects creates thunks that talk to the Builder API.
type Effects struct {
	api    BuilderAPI
	clock  clock.Clock
	logger *slog.Logger
	delays Delays

	mu      sync.Mutex
	logGens map[string]uint64
	nextGen uint64
}

// EffectsOption configures Effects.
type EffectsOption func(*Effects)

// WithClock sets the clock used for delayed dispatches.
func WithClock(c clock.Clock) EffectsOption {
	return func(e *Effects) {
		e.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EffectsOption {
	return func(e *Effects) {
		e.logger = logger
	}
}

// WithDelays overrides the default delays.
func WithDelays(d Delays) EffectsOption {
	return func(e *Effects) {
		e.delays = d
	}
}

// NewEffects creates Effects backed by client.
func NewEffects(client BuilderAPI, opts ...EffectsOption) *Effects {
	e := &Effects{
		api:     client,
		clock:   clock.Real(),
		logger:  slog.Default(),
		delays:  DefaultDelays(),
		logGens: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// after dispatches item once delay has elapsed, unless ctx is done first.
func (e *Effects) after(ctx context.Context, d Dispatcher, delay time.Duration, item Dispatchable) {
	var (
		mu      sync.Mutex
		fired   bool
		release func() bool
	)
	timer := e.clock.AfterFunc(delay, func() {
		mu.Lock()
		fired = true
		r := release
		mu.Unlock()
		if r != nil {
			r()
		}
		if ctx.Err() != nil {
			return
		}
		if err := d.Dispatch(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("delayed dispatch failed", "error", err)
		}
	})

	stop := context.AfterFunc(ctx, func() { timer.Stop() })
	mu.Lock()
	release = stop
	done := fired
	mu.Unlock()
	// The timer may fire before release is set.
	if done {
		stop()
	}
}

// notify dispatches a notification and schedules its dismissal.
func (e *Effects) notify(ctx context.Context, d Dispatcher, typ state.NotificationType, title, body string) error {
	return d.Dispatch(ctx, e.AddNotification(state.Notification{Type: typ, Title: title, Body: body}))
}

// AddNotification displays n and removes it after the dismiss delay unless it
// was removed earlier. n gets a fresh id when it has none.
func (e *Effects) AddNotification(n state.Notification) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if err := d.Dispatch(ctx, NewAddNotification(n)); err != nil {
			return err
		}
		e.after(ctx, d, e.delays.NotificationDismiss, NewDismissNotification(n.ID))
		return nil
	}
}
