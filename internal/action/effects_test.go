package action_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/clock"
	"github.com/narvanalabs/builder-web/internal/cookie"
	"github.com/narvanalabs/builder-web/internal/reducer"
	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/internal/store"
	"github.com/narvanalabs/builder-web/web/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements the methods a test sets; any other call panics on the
// nil embedded interface.
type fakeAPI struct {
	action.BuilderAPI

	mu    sync.Mutex
	calls []string

	authenticate  func(name string) (*api.Session, error)
	getProfile    func(token string) (*state.Profile, error)
	listMyOrigins func(token string) ([]state.Origin, error)
	scheduleJob   func(origin, name string) (*state.JobGroup, error)
	listBuilds    func(origin, name string) ([]state.Build, error)
	getBuild      func(id string) (*state.Build, error)
	getBuildLog   func(id string, start int) (*state.LogPage, error)
	getPackage    func(ident state.PackageIdent) (*state.Package, error)
	listChannels  func(ident state.PackageIdent) ([]string, error)
	demote        func(channel string, ident state.PackageIdent) error
	getOrigin     func(name string) (*state.Origin, error)

	createOrigin        func(o api.OriginRequest) (*state.Origin, error)
	updateOrigin        func(name string, o api.OriginRequest) error
	listPublicKeys      func(origin string) ([]state.OriginKey, error)
	uploadKey           func(kind api.KeyKind, origin, revision string) error
	createChannel       func(origin, channel string) (*api.Channel, error)
	listPackages        func(origin, name string, rangeStart int) (*api.PackageList, error)
	listChannelPackages func(origin, channel string, rangeStart int) (*api.PackageList, error)
	promote             func(channel string, ident state.PackageIdent) error
	setVisibility       func(ident state.PackageIdent, v state.PackageVisibility) error
	getJobGroup         func(id string) (*state.JobGroup, error)
	getProject          func(origin, name string) (*state.Project, error)
	listProjects        func(origin string) ([]state.Project, error)
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Authenticate(_ context.Context, name string) (*api.Session, error) {
	f.record("authenticate")
	return f.authenticate(name)
}

func (f *fakeAPI) GetProfile(_ context.Context, token string) (*state.Profile, error) {
	f.record("profile")
	return f.getProfile(token)
}

func (f *fakeAPI) ListMyOrigins(_ context.Context, token string) ([]state.Origin, error) {
	f.record("my-origins")
	return f.listMyOrigins(token)
}

func (f *fakeAPI) ScheduleJob(_ context.Context, _, origin, name string) (*state.JobGroup, error) {
	f.record("schedule")
	return f.scheduleJob(origin, name)
}

func (f *fakeAPI) ListBuilds(_ context.Context, _, origin, name string) ([]state.Build, error) {
	f.record("builds")
	return f.listBuilds(origin, name)
}

func (f *fakeAPI) GetBuild(_ context.Context, _, id string) (*state.Build, error) {
	f.record("build")
	return f.getBuild(id)
}

func (f *fakeAPI) GetBuildLog(_ context.Context, _, id string, start int) (*state.LogPage, error) {
	f.record("log")
	return f.getBuildLog(id, start)
}

func (f *fakeAPI) GetPackage(_ context.Context, _ string, ident state.PackageIdent) (*state.Package, error) {
	f.record("package")
	return f.getPackage(ident)
}

func (f *fakeAPI) ListPackageChannels(_ context.Context, _ string, ident state.PackageIdent) ([]string, error) {
	f.record("channels")
	return f.listChannels(ident)
}

func (f *fakeAPI) DemotePackage(_ context.Context, _, channel string, ident state.PackageIdent) error {
	f.record("demote")
	return f.demote(channel, ident)
}

func (f *fakeAPI) GetOrigin(_ context.Context, name string) (*state.Origin, error) {
	f.record("origin")
	return f.getOrigin(name)
}

func (f *fakeAPI) CreateOrigin(_ context.Context, _ string, o api.OriginRequest) (*state.Origin, error) {
	f.record("create-origin")
	return f.createOrigin(o)
}

func (f *fakeAPI) UpdateOrigin(_ context.Context, _, name string, o api.OriginRequest) error {
	f.record("update-origin")
	return f.updateOrigin(name, o)
}

func (f *fakeAPI) ListOriginPublicKeys(_ context.Context, _, origin string) ([]state.OriginKey, error) {
	f.record("public-keys")
	return f.listPublicKeys(origin)
}

func (f *fakeAPI) UploadOriginKey(_ context.Context, _ string, kind api.KeyKind, origin, revision, _ string) error {
	f.record("upload-key")
	return f.uploadKey(kind, origin, revision)
}

func (f *fakeAPI) CreateChannel(_ context.Context, _, origin, channel string) (*api.Channel, error) {
	f.record("create-channel")
	return f.createChannel(origin, channel)
}

func (f *fakeAPI) ListPackages(_ context.Context, _, origin, name string, rangeStart int) (*api.PackageList, error) {
	f.record("packages")
	return f.listPackages(origin, name, rangeStart)
}

func (f *fakeAPI) ListChannelPackages(_ context.Context, _, origin, channel string, rangeStart int) (*api.PackageList, error) {
	f.record("channel-packages")
	return f.listChannelPackages(origin, channel, rangeStart)
}

func (f *fakeAPI) PromotePackage(_ context.Context, _, channel string, ident state.PackageIdent) error {
	f.record("promote")
	return f.promote(channel, ident)
}

func (f *fakeAPI) SetPackageVisibility(_ context.Context, _ string, ident state.PackageIdent, v state.PackageVisibility) error {
	f.record("visibility")
	return f.setVisibility(ident, v)
}

func (f *fakeAPI) GetJobGroup(_ context.Context, _, id string) (*state.JobGroup, error) {
	f.record("job-group")
	return f.getJobGroup(id)
}

func (f *fakeAPI) GetProject(_ context.Context, _, origin, name string) (*state.Project, error) {
	f.record("project")
	return f.getProject(origin, name)
}

func (f *fakeAPI) ListProjects(_ context.Context, _, origin string) ([]state.Project, error) {
	f.record("projects")
	return f.listProjects(origin)
}

type harness struct {
	api   *fakeAPI
	clock *clock.FakeClock
	fx    *action.Effects
	store *store.Store
}

func newHarness(f *fakeAPI) *harness {
	c := clock.Fake(time.Unix(0, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{
		api:   f,
		clock: c,
		fx:    action.NewEffects(f, action.WithClock(c), action.WithLogger(logger)),
		store: store.New(reducer.Root, nil, store.WithLogger(logger)),
	}
}

func (h *harness) dispatch(t *testing.T, ctx context.Context, d action.Dispatchable) {
	t.Helper()
	require.NoError(t, h.store.Dispatch(ctx, d))
}

func TestNotificationLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("removed by index before timeout", func(t *testing.T) {
		h := newHarness(&fakeAPI{})
		h.dispatch(t, ctx, h.fx.AddNotification(state.Notification{Type: state.NotificationInfo, Title: "hi"}))
		require.Len(t, h.store.GetState().Notifications.All, 1)

		h.dispatch(t, ctx, action.NewRemoveNotification(0))
		assert.Empty(t, h.store.GetState().Notifications.All)

		// The pending dismissal finds nothing to remove.
		h.clock.Advance(5 * time.Second)
		assert.Empty(t, h.store.GetState().Notifications.All)
	})

	t.Run("dismissed after timeout", func(t *testing.T) {
		h := newHarness(&fakeAPI{})
		h.dispatch(t, ctx, h.fx.AddNotification(state.Notification{Type: state.NotificationInfo, Title: "hi"}))

		h.clock.Advance(4999 * time.Millisecond)
		require.Len(t, h.store.GetState().Notifications.All, 1)

		h.clock.Advance(time.Millisecond)
		assert.Empty(t, h.store.GetState().Notifications.All)
	})

	t.Run("dismissal targets its own notification", func(t *testing.T) {
		h := newHarness(&fakeAPI{})
		h.dispatch(t, ctx, h.fx.AddNotification(state.Notification{Title: "first"}))
		h.clock.Advance(3 * time.Second)
		h.dispatch(t, ctx, h.fx.AddNotification(state.Notification{Title: "second"}))
		h.dispatch(t, ctx, action.NewRemoveNotification(0))

		h.clock.Advance(2 * time.Second)
		all := h.store.GetState().Notifications.All
		require.Len(t, all, 1)
		assert.Equal(t, "second", all[0].Title)

		h.clock.Advance(3 * time.Second)
		assert.Empty(t, h.store.GetState().Notifications.All)
	})
}

// immediateClock runs every AfterFunc callback before returning and counts
// Stop calls on the returned timers.
type immediateClock struct {
	clock.Clock
	stops atomic.Int32
}

func (c *immediateClock) AfterFunc(_ time.Duration, f func()) clock.Timer {
	f()
	return stopCounter{&c.stops}
}

type stopCounter struct{ n *atomic.Int32 }

func (s stopCounter) Stop() bool {
	s.n.Add(1)
	return false
}

func TestDelayedDispatchFiredBeforeRegistrationIsReleased(t *testing.T) {
	c := &immediateClock{}
	fx := action.NewEffects(&fakeAPI{},
		action.WithClock(c),
		action.WithDelays(action.Delays{}),
		action.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	st := store.New(reducer.Root, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, st.Dispatch(ctx, fx.AddNotification(state.Notification{Title: "hi"})))
	assert.Empty(t, st.GetState().Notifications.All)

	cancel()
	assert.Never(t, func() bool { return c.stops.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

// logPages serves a fixed sequence of pages keyed by start offset.
func logPages(pages map[int]*state.LogPage) func(string, int) (*state.LogPage, error) {
	return func(_ string, start int) (*state.LogPage, error) {
		p, ok := pages[start]
		if !ok {
			return nil, &api.Error{StatusCode: 404, Message: "Not Found"}
		}
		return p, nil
	}
}

func TestFollowBuildLogPollsUntilComplete(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{
		getBuildLog: logPages(map[int]*state.LogPage{
			0: {Start: 0, Stop: 2, Content: []string{"a", "b"}},
			2: {Start: 2, Stop: 3, Content: []string{"c"}},
			3: {Start: 3, Stop: 4, Content: []string{"d"}, IsComplete: true},
		}),
		getBuild: func(id string) (*state.Build, error) {
			return &state.Build{ID: id, State: state.BuildComplete}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, ctx, h.fx.FollowBuildLog("42", "tok"))
	s := h.store.GetState().Builds
	assert.Equal(t, []string{"a", "b"}, s.Log.Content)
	assert.True(t, s.Streaming)

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, h.store.GetState().Builds.Log.Content)

	h.clock.Advance(2 * time.Second)
	s = h.store.GetState().Builds
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.Log.Content)
	assert.True(t, s.Log.IsComplete)
	assert.False(t, s.Streaming)

	// Build refresh after completion of a continuation page.
	assert.Equal(t, []string{"build", "log", "log", "log"}, f.Calls())
	h.clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"build", "log", "log", "log", "build"}, f.Calls())
	assert.Zero(t, h.clock.Pending())
}

func TestFetchBuildLogCompleteFirstPageDoesNotRefresh(t *testing.T) {
	f := &fakeAPI{
		getBuildLog: logPages(map[int]*state.LogPage{
			0: {Start: 0, Stop: 1, Content: []string{"done"}, IsComplete: true},
		}),
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.FetchBuildLog("42", "tok", 0))
	assert.Equal(t, []string{"done"}, h.store.GetState().Builds.Log.Content)
	assert.Zero(t, h.clock.Pending())
}

func TestFetchBuildLogStopsWhenCancelled(t *testing.T) {
	f := &fakeAPI{
		getBuildLog: func(_ string, start int) (*state.LogPage, error) {
			return &state.LogPage{Start: start, Stop: start + 1, Content: []string{"x"}}, nil
		},
	}
	h := newHarness(f)
	ctx, cancel := context.WithCancel(context.Background())

	h.dispatch(t, ctx, h.fx.FetchBuildLog("42", "tok", 0))
	h.clock.Advance(2 * time.Second)
	require.Len(t, f.Calls(), 2)

	cancel()
	h.clock.Advance(10 * time.Second)
	assert.Len(t, f.Calls(), 2)
	assert.Len(t, h.store.GetState().Builds.Log.Content, 2)
}

func TestFetchBuildLogNewerChainSupersedesOlder(t *testing.T) {
	f := &fakeAPI{
		getBuildLog: func(_ string, start int) (*state.LogPage, error) {
			return &state.LogPage{Start: start, Stop: start + 1, Content: []string{"x"}}, nil
		},
	}
	h := newHarness(f)
	ctx := context.Background()

	h.dispatch(t, ctx, h.fx.FetchBuildLog("42", "tok", 0))
	h.dispatch(t, ctx, h.fx.FetchBuildLog("42", "tok", 0))
	require.Len(t, f.Calls(), 2)

	// Both chains wake up; only the newer one dispatches and reschedules.
	h.clock.Advance(2 * time.Second)
	assert.Len(t, f.Calls(), 4)
	assert.Equal(t, 1, h.clock.Pending())
	assert.Equal(t, []string{"x", "x"}, h.store.GetState().Builds.Log.Content)
}

func TestFetchBuildLogErrorKeepsLogAndRetriesWhileStreaming(t *testing.T) {
	attempts := 0
	f := &fakeAPI{
		getBuildLog: func(_ string, start int) (*state.LogPage, error) {
			attempts++
			if attempts < 3 {
				return nil, &api.Error{StatusCode: 404, Message: "Not Found"}
			}
			return &state.LogPage{Start: start, Stop: 1, Content: []string{"started"}, IsComplete: true}, nil
		},
	}
	h := newHarness(f)
	ctx := context.Background()

	h.dispatch(t, ctx, action.NewStreamBuildLog(true))
	h.dispatch(t, ctx, h.fx.FetchBuildLog("42", "tok", 0))
	assert.Empty(t, h.store.GetState().Builds.Log.Content)

	h.clock.Advance(4 * time.Second)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"started"}, h.store.GetState().Builds.Log.Content)
}

func TestFetchBuildLogErrorWithoutStreamingStops(t *testing.T) {
	f := &fakeAPI{
		getBuildLog: func(string, int) (*state.LogPage, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.FetchBuildLog("42", "tok", 0))
	assert.Zero(t, h.clock.Pending())
}

func TestFetchBuildLogForbiddenEndsStream(t *testing.T) {
	attempts := 0
	f := &fakeAPI{
		getBuild: func(id string) (*state.Build, error) {
			return &state.Build{ID: id, State: state.BuildProcessing}, nil
		},
		getBuildLog: func(string, int) (*state.LogPage, error) {
			attempts++
			return nil, &api.Error{StatusCode: 403, Message: "Forbidden"}
		},
	}
	h := newHarness(f)
	ctx := context.Background()

	h.dispatch(t, ctx, h.fx.FollowBuildLog("42", "tok"))

	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, h.clock.Pending())

	s := h.store.GetState().Builds
	assert.False(t, s.Streaming)
	assert.Contains(t, s.UI.Err, "Forbidden")
	assert.Empty(t, s.Log.Content)
	assert.Equal(t, "42", s.Selected.ID)
}

func TestFetchBuildLogNotFoundRetriesAreBounded(t *testing.T) {
	attempts := 0
	f := &fakeAPI{
		getBuildLog: func(string, int) (*state.LogPage, error) {
			attempts++
			return nil, &api.Error{StatusCode: 404, Message: "Not Found"}
		},
	}
	h := newHarness(f)
	ctx := context.Background()

	h.dispatch(t, ctx, action.NewStreamBuildLog(true))
	h.dispatch(t, ctx, h.fx.FetchBuildLog("42", "tok", 0))
	for i := 0; i < action.MaxLogRetries+5; i++ {
		h.clock.Advance(2 * time.Second)
	}

	assert.Equal(t, action.MaxLogRetries+1, attempts)
	assert.Zero(t, h.clock.Pending())
	s := h.store.GetState().Builds
	assert.False(t, s.Streaming)
	assert.Contains(t, s.UI.Err, "Not Found")
}

func TestFetchBuildLogFailureKeepsDisplayedLines(t *testing.T) {
	f := &fakeAPI{
		getBuildLog: func(_ string, start int) (*state.LogPage, error) {
			if start == 0 {
				return &state.LogPage{Start: 0, Stop: 2, Content: []string{"a", "b"}}, nil
			}
			return nil, &api.Error{StatusCode: 500, Message: "Internal Server Error"}
		},
	}
	h := newHarness(f)
	ctx := context.Background()

	h.dispatch(t, ctx, action.NewStreamBuildLog(true))
	h.dispatch(t, ctx, h.fx.FetchBuildLog("42", "tok", 0))
	h.clock.Advance(2 * time.Second)

	s := h.store.GetState().Builds
	assert.Equal(t, []string{"a", "b"}, s.Log.Content)
	assert.False(t, s.Streaming)
	assert.NotEmpty(t, s.UI.Err)
	assert.Zero(t, h.clock.Pending())
}

func TestSubmitJob(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := &fakeAPI{
			scheduleJob: func(origin, name string) (*state.JobGroup, error) {
				return &state.JobGroup{ID: "g1", State: state.GroupQueued, ProjectName: origin + "/" + name}, nil
			},
			listBuilds: func(string, string) ([]state.Build, error) {
				return []state.Build{{ID: "b1", State: state.BuildPending}}, nil
			},
		}
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.SubmitJob("core", "nginx", "tok"))
		s := h.store.GetState()
		require.NotNil(t, s.Builds.Group)
		assert.Equal(t, "core/nginx", s.Builds.Group.ProjectName)
		require.Len(t, s.Notifications.All, 1)
		assert.Equal(t, state.NotificationSuccess, s.Notifications.All[0].Type)
		assert.Empty(t, s.Builds.Visible)

		h.clock.Advance(5 * time.Second)
		s = h.store.GetState()
		require.Len(t, s.Builds.Visible, 1)
		assert.Empty(t, s.Notifications.All)
	})

	t.Run("failure", func(t *testing.T) {
		f := &fakeAPI{
			scheduleJob: func(string, string) (*state.JobGroup, error) {
				return nil, &api.Error{StatusCode: 400, Message: "Unsupported target"}
			},
		}
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.SubmitJob("core", "nginx", "tok"))
		all := h.store.GetState().Notifications.All
		require.Len(t, all, 1)
		assert.Equal(t, state.NotificationDanger, all[0].Type)
		assert.Equal(t, "There was an error requesting a build for core/nginx: Unsupported target", all[0].Body)
		assert.Equal(t, []string{"schedule"}, f.Calls())
	})
}

func TestSignIn(t *testing.T) {
	f := &fakeAPI{
		authenticate: func(name string) (*api.Session, error) {
			return &api.Session{ID: "session-1", Name: name}, nil
		},
		getProfile: func(string) (*state.Profile, error) {
			return &state.Profile{ID: "1", Name: "bobo"}, nil
		},
		listMyOrigins: func(string) ([]state.Origin, error) {
			return []state.Origin{{Name: "neurosis"}}, nil
		},
	}
	h := newHarness(f)
	jar := cookie.NewMemoryJar()
	jar.Set(cookie.RedirectPath, "/origins/neurosis")

	h.dispatch(t, context.Background(), h.fx.SignIn("bobo", jar))

	s := h.store.GetState()
	assert.Equal(t, "session-1", s.Session.Token)
	assert.Equal(t, "bobo", s.Users.Current.Name)
	assert.Len(t, s.Origins.Mine, 1)
	assert.Equal(t, "/origins/neurosis", s.Router.Requested)

	token, ok := jar.Get(cookie.SessionToken)
	assert.True(t, ok)
	assert.Equal(t, "session-1", token)
	_, ok = jar.Get(cookie.RedirectPath)
	assert.False(t, ok)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("clears session and keeps pending redirect", func(t *testing.T) {
		h := newHarness(&fakeAPI{})
		jar := cookie.NewMemoryJar()
		jar.Set(cookie.SessionToken, "tok")
		jar.Set(cookie.RedirectPath, "/first")
		h.dispatch(t, ctx, action.NewSetSessionToken("tok"))
		h.dispatch(t, ctx, action.NewPopulateMyOrigins([]state.Origin{{Name: "neurosis"}}, nil))

		h.dispatch(t, ctx, h.fx.SignOut(jar, true, "/second"))

		s := h.store.GetState()
		assert.False(t, s.Session.SignedIn())
		assert.Empty(t, s.Origins.Mine)
		assert.Equal(t, action.SignInRoute, s.Router.Requested)

		_, ok := jar.Get(cookie.SessionToken)
		assert.False(t, ok)
		path, _ := jar.Get(cookie.RedirectPath)
		assert.Equal(t, "/first", path)
	})

	t.Run("without a session leaves state alone", func(t *testing.T) {
		h := newHarness(&fakeAPI{})
		jar := cookie.NewMemoryJar()
		h.dispatch(t, ctx, action.NewRouteChange("/pkgs"))
		before := h.store.GetState()

		h.dispatch(t, ctx, h.fx.SignOut(jar, false, "/pkgs"))
		assert.Same(t, before, h.store.GetState())

		path, ok := jar.Get(cookie.RedirectPath)
		assert.True(t, ok)
		assert.Equal(t, "/pkgs", path)
	})
}

func TestRestoreSession(t *testing.T) {
	f := &fakeAPI{
		getProfile: func(token string) (*state.Profile, error) {
			return &state.Profile{ID: "1", Name: token}, nil
		},
	}
	h := newHarness(f)
	jar := cookie.NewMemoryJar()

	h.dispatch(t, context.Background(), h.fx.RestoreSession(jar))
	assert.Empty(t, f.Calls())

	jar.Set(cookie.SessionToken, "bobo")
	h.dispatch(t, context.Background(), h.fx.RestoreSession(jar))
	assert.Equal(t, "bobo", h.store.GetState().Users.Current.Name)
}

func TestFetchPackageLoadsChannelsForFullIdent(t *testing.T) {
	ident := state.PackageIdent{Origin: "neurosis", Name: "testapp", Version: "0.1.3", Release: "20171205003213"}
	f := &fakeAPI{
		getPackage: func(id state.PackageIdent) (*state.Package, error) {
			return &state.Package{Ident: id}, nil
		},
		listChannels: func(state.PackageIdent) ([]string, error) {
			return []string{"unstable", "foo"}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.FetchPackage(ident, "tok"))
	s := h.store.GetState().Packages
	assert.Equal(t, ident, s.Current.Ident)
	assert.Equal(t, []string{"unstable", "foo"}, s.CurrentChannels)

	h.dispatch(t, context.Background(), h.fx.FetchPackage(state.PackageIdent{Origin: "neurosis", Name: "testapp"}, "tok"))
	assert.Equal(t, []string{"package", "channels", "package"}, f.Calls())
}

func TestDemoteFromUnstableNotifiesDanger(t *testing.T) {
	f := &fakeAPI{
		demote: func(string, state.PackageIdent) error {
			return &api.Error{StatusCode: 403, Message: "Forbidden"}
		},
	}
	h := newHarness(f)
	ident := state.PackageIdent{Origin: "neurosis", Name: "testapp", Version: "0.1.3", Release: "1"}

	h.dispatch(t, context.Background(), h.fx.DemotePackage(ident, "unstable", "tok"))
	all := h.store.GetState().Notifications.All
	require.Len(t, all, 1)
	assert.Equal(t, state.NotificationDanger, all[0].Type)
	assert.Contains(t, all[0].Body, "Forbidden")
}

func TestFetchOriginMissing(t *testing.T) {
	f := &fakeAPI{
		getOrigin: func(string) (*state.Origin, error) {
			return nil, &api.Error{StatusCode: 404, Message: "Not Found"}
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.FetchOrigin("nope"))
	s := h.store.GetState().Origins
	assert.False(t, s.CurrentExists)
	assert.False(t, s.UI.Loading)
	assert.NotEmpty(t, s.UI.Err)
}

func lastNotice(t *testing.T, h *harness) state.Notification {
	t.Helper()
	all := h.store.GetState().Notifications.All
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestCreateOrigin(t *testing.T) {
	ctx := context.Background()

	t.Run("selects origin and refreshes mine", func(t *testing.T) {
		f := &fakeAPI{
			createOrigin: func(o api.OriginRequest) (*state.Origin, error) {
				return &state.Origin{Name: o.Name, DefaultPackageVisibility: o.DefaultPackageVisibility}, nil
			},
			listMyOrigins: func(string) ([]state.Origin, error) {
				return []state.Origin{{Name: "core"}, {Name: "neurosis"}}, nil
			},
		}
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.CreateOrigin(api.OriginRequest{Name: "neurosis", DefaultPackageVisibility: state.VisibilityPrivate}, "tok"))

		s := h.store.GetState().Origins
		assert.Equal(t, "neurosis", s.Current.Name)
		assert.Equal(t, state.VisibilityPrivate, s.Current.DefaultPackageVisibility)
		assert.True(t, s.CurrentExists)
		assert.Len(t, s.Mine, 2)
		assert.Equal(t, []string{"create-origin", "my-origins"}, f.Calls())

		n := lastNotice(t, h)
		assert.Equal(t, state.NotificationSuccess, n.Type)
		assert.Equal(t, "Origin neurosis has been created.", n.Body)
	})

	t.Run("conflict notifies with the server message", func(t *testing.T) {
		apiErr := &api.Error{StatusCode: 409, Message: "origin already exists"}
		f := &fakeAPI{
			createOrigin: func(api.OriginRequest) (*state.Origin, error) { return nil, apiErr },
		}
		h := newHarness(f)
		before := h.store.GetState().Origins

		h.dispatch(t, ctx, h.fx.CreateOrigin(api.OriginRequest{Name: "neurosis"}, "tok"))

		n := lastNotice(t, h)
		assert.Equal(t, state.NotificationDanger, n.Type)
		assert.Equal(t, "There was an error creating origin neurosis: "+api.Message(apiErr), n.Body)
		assert.Same(t, before, h.store.GetState().Origins)
		assert.Equal(t, []string{"create-origin"}, f.Calls())
	})
}

func TestUpdateOriginReloadsOrigin(t *testing.T) {
	var saved api.OriginRequest
	f := &fakeAPI{
		updateOrigin: func(_ string, o api.OriginRequest) error {
			saved = o
			return nil
		},
		getOrigin: func(name string) (*state.Origin, error) {
			return &state.Origin{Name: name, DefaultPackageVisibility: saved.DefaultPackageVisibility}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.UpdateOrigin("neurosis", api.OriginRequest{DefaultPackageVisibility: state.VisibilityPrivate}, "tok"))

	s := h.store.GetState().Origins
	assert.Equal(t, state.VisibilityPrivate, s.Current.DefaultPackageVisibility)
	assert.False(t, s.UI.Loading)
	assert.Equal(t, []string{"update-origin", "origin"}, f.Calls())
	assert.Equal(t, "Settings for origin neurosis have been saved.", lastNotice(t, h).Body)
}

func TestUploadOriginKey(t *testing.T) {
	ctx := context.Background()
	newFake := func() *fakeAPI {
		return &fakeAPI{
			uploadKey: func(api.KeyKind, string, string) error { return nil },
			listPublicKeys: func(origin string) ([]state.OriginKey, error) {
				return []state.OriginKey{{Origin: origin, Revision: "20160810182414"}}, nil
			},
		}
	}

	t.Run("public key refreshes key list", func(t *testing.T) {
		f := newFake()
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.UploadOriginKey(api.PublicKey, "neurosis", "20160810182414", "SIG-PUB-1", "tok"))

		assert.Equal(t, []string{"upload-key", "public-keys"}, f.Calls())
		assert.Len(t, h.store.GetState().Origins.CurrentPublicKeys, 1)
		assert.Equal(t, state.NotificationSuccess, lastNotice(t, h).Type)
	})

	t.Run("secret key does not", func(t *testing.T) {
		f := newFake()
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.UploadOriginKey(api.SecretKey, "neurosis", "20160810182414", "SIG-SEC-1", "tok"))

		assert.Equal(t, []string{"upload-key"}, f.Calls())
		assert.Empty(t, h.store.GetState().Origins.CurrentPublicKeys)
		assert.Equal(t, "Key neurosis-20160810182414 has been uploaded.", lastNotice(t, h).Body)
	})

	t.Run("failure", func(t *testing.T) {
		apiErr := &api.Error{StatusCode: 403, Message: "Forbidden"}
		f := &fakeAPI{uploadKey: func(api.KeyKind, string, string) error { return apiErr }}
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.UploadOriginKey(api.PublicKey, "neurosis", "1", "key", "tok"))

		n := lastNotice(t, h)
		assert.Equal(t, state.NotificationDanger, n.Type)
		assert.Equal(t, "There was an error uploading neurosis-1: "+api.Message(apiErr), n.Body)
		assert.Equal(t, []string{"upload-key"}, f.Calls())
	})
}

func TestCreateChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := &fakeAPI{
			createChannel: func(origin, channel string) (*api.Channel, error) {
				return &api.Channel{Name: channel, Origin: origin}, nil
			},
		}
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.CreateChannel("neurosis", "foo", "tok"))
		n := lastNotice(t, h)
		assert.Equal(t, state.NotificationSuccess, n.Type)
		assert.Equal(t, "Channel foo has been created in neurosis.", n.Body)
	})

	t.Run("failure", func(t *testing.T) {
		apiErr := &api.Error{StatusCode: 409, Message: "channel exists"}
		f := &fakeAPI{
			createChannel: func(string, string) (*api.Channel, error) { return nil, apiErr },
		}
		h := newHarness(f)

		h.dispatch(t, ctx, h.fx.CreateChannel("neurosis", "foo", "tok"))
		n := lastNotice(t, h)
		assert.Equal(t, state.NotificationDanger, n.Type)
		assert.Equal(t, "There was an error creating channel foo in neurosis: "+api.Message(apiErr), n.Body)
	})
}

func TestPromotePackageReloadsChannels(t *testing.T) {
	ident := state.PackageIdent{Origin: "neurosis", Name: "testapp", Version: "0.1.3", Release: "20171205003213"}
	channels := []string{"unstable"}
	f := &fakeAPI{
		promote: func(channel string, _ state.PackageIdent) error {
			channels = append(channels, channel)
			return nil
		},
		listChannels: func(state.PackageIdent) ([]string, error) {
			return append([]string(nil), channels...), nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.PromotePackage(ident, "stable", "tok"))

	assert.Equal(t, []string{"unstable", "stable"}, h.store.GetState().Packages.CurrentChannels)
	assert.Equal(t, []string{"promote", "channels"}, f.Calls())
	n := lastNotice(t, h)
	assert.Equal(t, state.NotificationSuccess, n.Type)
	assert.Equal(t, "neurosis/testapp/0.1.3/20171205003213 has been promoted to stable.", n.Body)
}

func TestSetPackageVisibilityReloadsPackage(t *testing.T) {
	ident := state.PackageIdent{Origin: "neurosis", Name: "testapp", Version: "0.1.3", Release: "1"}
	vis := state.VisibilityPublic
	f := &fakeAPI{
		setVisibility: func(_ state.PackageIdent, v state.PackageVisibility) error {
			vis = v
			return nil
		},
		getPackage: func(id state.PackageIdent) (*state.Package, error) {
			return &state.Package{Ident: id, Visibility: vis}, nil
		},
		listChannels: func(state.PackageIdent) ([]string, error) {
			return []string{"unstable"}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.SetPackageVisibility(ident, state.VisibilityPrivate, "tok"))

	s := h.store.GetState().Packages
	assert.Equal(t, state.VisibilityPrivate, s.Current.Visibility)
	assert.Equal(t, []string{"unstable"}, s.CurrentChannels)
	assert.Equal(t, []string{"visibility", "package", "channels"}, f.Calls())
	assert.Equal(t, "neurosis/testapp/0.1.3/1 is now private.", lastNotice(t, h).Body)
}

// pagedIdents serves origin packages two at a time out of total.
func pagedIdents(total int) func(string, string, int) (*api.PackageList, error) {
	return func(origin, _ string, rangeStart int) (*api.PackageList, error) {
		list := &api.PackageList{RangeStart: rangeStart, TotalCount: total}
		for i := rangeStart; i < total && i < rangeStart+2; i++ {
			list.Data = append(list.Data, state.PackageIdent{Origin: origin, Name: "pkg" + string(rune('a'+i))})
		}
		list.RangeEnd = rangeStart + len(list.Data) - 1
		return list, nil
	}
}

func TestFetchPackagesPaging(t *testing.T) {
	ctx := context.Background()
	var h *harness
	var visibleAtFetch []int
	page := pagedIdents(5)
	f := &fakeAPI{
		listPackages: func(origin, name string, rangeStart int) (*api.PackageList, error) {
			visibleAtFetch = append(visibleAtFetch, len(h.store.GetState().Packages.Visible))
			return page(origin, name, rangeStart)
		},
	}
	h = newHarness(f)

	h.dispatch(t, ctx, h.fx.FetchPackages("neurosis", "", 0, "tok"))
	s := h.store.GetState().Packages
	require.Len(t, s.Visible, 2)
	assert.Equal(t, 5, s.TotalCount)
	assert.Equal(t, 2, s.NextRange)

	h.dispatch(t, ctx, h.fx.FetchPackages("neurosis", "", s.NextRange, "tok"))
	s = h.store.GetState().Packages
	require.Len(t, s.Visible, 4)
	assert.Equal(t, "pkga", s.Visible[0].Name)
	assert.Equal(t, "pkgd", s.Visible[3].Name)
	assert.Equal(t, 4, s.NextRange)

	// Starting over clears the list before fetching.
	h.dispatch(t, ctx, h.fx.FetchPackages("neurosis", "", 0, "tok"))
	assert.Len(t, h.store.GetState().Packages.Visible, 2)
	assert.Equal(t, []int{0, 2, 0}, visibleAtFetch)
}

func TestFetchChannelPackagesPaging(t *testing.T) {
	ctx := context.Background()
	var h *harness
	var loadingAtFetch []bool
	page := pagedIdents(3)
	f := &fakeAPI{
		listChannelPackages: func(origin, _ string, rangeStart int) (*api.PackageList, error) {
			loadingAtFetch = append(loadingAtFetch, h.store.GetState().Packages.UI.Loading)
			return page(origin, "", rangeStart)
		},
	}
	h = newHarness(f)

	h.dispatch(t, ctx, h.fx.FetchChannelPackages("neurosis", "stable", 0, "tok"))
	h.dispatch(t, ctx, h.fx.FetchChannelPackages("neurosis", "stable", 2, "tok"))

	s := h.store.GetState().Packages
	assert.Len(t, s.Visible, 3)
	assert.Equal(t, 3, s.TotalCount)
	assert.False(t, s.UI.Loading)
	assert.Equal(t, []bool{true, false}, loadingAtFetch)
}

func TestFetchProjects(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{
		getProject: func(origin, name string) (*state.Project, error) {
			return &state.Project{Name: origin + "/" + name, OriginName: origin, PackageName: name}, nil
		},
		listProjects: func(origin string) ([]state.Project, error) {
			return []state.Project{{Name: origin + "/testapp"}, {Name: origin + "/other"}}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, ctx, h.fx.FetchProject("neurosis", "testapp", "tok"))
	h.dispatch(t, ctx, h.fx.FetchProjects("neurosis", "tok"))

	s := h.store.GetState().Projects
	assert.Equal(t, "neurosis/testapp", s.Current.Name)
	assert.Len(t, s.Visible, 2)
	assert.Empty(t, s.UI.Err)
}

func TestFetchProjectMissing(t *testing.T) {
	f := &fakeAPI{
		getProject: func(string, string) (*state.Project, error) {
			return nil, &api.Error{StatusCode: 404, Message: "Not Found"}
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.FetchProject("neurosis", "nope", "tok"))
	s := h.store.GetState().Projects
	assert.Equal(t, state.Project{}, s.Current)
	assert.Contains(t, s.UI.Err, "Not Found")
}

func TestFetchJobGroup(t *testing.T) {
	f := &fakeAPI{
		getJobGroup: func(id string) (*state.JobGroup, error) {
			return &state.JobGroup{ID: id, State: state.GroupComplete, ProjectName: "neurosis/testapp"}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, context.Background(), h.fx.FetchJobGroup("g1", "tok"))
	g := h.store.GetState().Builds.Group
	require.NotNil(t, g)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, state.GroupComplete, g.State)
}

func TestFetchMyOrigins(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{
		listMyOrigins: func(token string) ([]state.Origin, error) {
			if token == "" {
				return nil, &api.Error{StatusCode: 401, Message: "Unauthorized"}
			}
			return []state.Origin{{Name: "neurosis"}}, nil
		},
	}
	h := newHarness(f)

	h.dispatch(t, ctx, h.fx.FetchMyOrigins("tok"))
	s := h.store.GetState().Origins
	require.Len(t, s.Mine, 1)
	assert.Equal(t, "neurosis", s.Mine[0].Name)

	h.dispatch(t, ctx, h.fx.FetchMyOrigins(""))
	s = h.store.GetState().Origins
	assert.Len(t, s.Mine, 1)
	assert.Contains(t, s.UI.Err, "Unauthorized")
}
