package action

import (
	"context"
	"fmt"

	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/web/api"
)

// FetchBuilds clears the visible builds and loads the builds of origin/name.
func (e *Effects) FetchBuilds(origin, name, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := d.Dispatch(ctx, NewClearBuilds()); err != nil {
			return err
		}
		builds, err := e.api.ListBuilds(ctx, token, origin, name)
		return d.Dispatch(ctx, NewPopulateBuilds(builds, err))
	}
}

// FetchBuild loads a single build into the selected build.
func (e *Effects) FetchBuild(id, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		b, err := e.api.GetBuild(ctx, token, id)
		return d.Dispatch(ctx, NewPopulateBuild(b, err))
	}
}

// FollowBuildLog selects build id, clears any displayed log and streams the
// build's log from the beginning. Cancel ctx to stop following.
func (e *Effects) FollowBuildLog(id, token string) Thunk {
	return Sequence(
		NewClearBuildLog(),
		NewStreamBuildLog(true),
		e.FetchBuild(id, token),
		e.FetchBuildLog(id, token, 0),
	)
}

// FetchBuildLog fetches the log of build id from line start and keeps
// polling until the server reports the log complete.
//
// Each incomplete page schedules the next fetch, starting at the page's stop
// offset, after the log poll delay. When a continuation page completes the
// log, the build itself is re-fetched after the build refresh delay to pick
// up its final state. A 404 is retried while the log is followed, up to
// MaxLogRetries times in a row; any other failure ends the chain and is
// recorded on the builds slice. The chain also ends when ctx is done, and a
// newer FetchBuildLog for the same build supersedes this one.
func (e *Effects) FetchBuildLog(id, token string, start int) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		gen := e.beginLogStream(id)
		return d.Dispatch(ctx, e.fetchLogPage(id, token, start, gen, 0))
	}
}

// MaxLogRetries bounds how many times in a row a followed log is re-fetched
// after a 404.
const MaxLogRetries = 30

func (e *Effects) fetchLogPage(id, token string, start int, gen uint64, retries int) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		page, err := e.api.GetBuildLog(ctx, token, id, start)
		if !e.isCurrentLogStream(id, gen) {
			e.logger.Debug("dropping superseded log page", "build_id", id, "start", start)
			return nil
		}

		if err != nil {
			if err := d.Dispatch(ctx, NewPopulateBuildLog(id, nil, err)); err != nil {
				return err
			}
			// A build that has not started yet has no log. Keep trying while a
			// view follows it; any other failure ends the stream.
			if api.IsNotFound(err) && retries < MaxLogRetries && d.GetState().Builds.Streaming {
				e.after(ctx, d, e.delays.LogPoll, e.fetchLogPage(id, token, start, gen, retries+1))
				return nil
			}
			e.endLogStream(id, gen)
			e.logger.Debug("log stream failed", "build_id", id, "start", start, "error", err)
			return d.Dispatch(ctx, NewBuildLogFailed(err))
		}

		if err := d.Dispatch(ctx, NewPopulateBuildLog(id, page, nil)); err != nil {
			return err
		}

		switch {
		case !page.IsComplete:
			e.after(ctx, d, e.delays.LogPoll, e.fetchLogPage(id, token, page.Stop, gen, 0))
		case start != 0:
			e.endLogStream(id, gen)
			e.after(ctx, d, e.delays.BuildRefresh, e.FetchBuild(id, token))
		default:
			e.endLogStream(id, gen)
		}
		return nil
	}
}

func (e *Effects) beginLogStream(id string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextGen++
	e.logGens[id] = e.nextGen
	return e.nextGen
}

func (e *Effects) isCurrentLogStream(id string, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logGens[id] == gen
}

func (e *Effects) endLogStream(id string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.logGens[id] == gen {
		delete(e.logGens, id)
	}
}

// SubmitJob schedules a build of origin/name. On success the user is
// notified and the build list is refreshed after a delay; on failure the
// user is notified with the server's message. Duplicate submissions are not
// detected.
func (e *Effects) SubmitJob(origin, name, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		group, err := e.api.ScheduleJob(ctx, token, origin, name)
		if err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Build request failed",
				fmt.Sprintf("There was an error requesting a build for %s/%s: %s", origin, name, api.Message(err)))
		}

		if err := d.Dispatch(ctx, NewPopulateJobGroup(group, nil)); err != nil {
			return err
		}
		if err := e.notify(ctx, d, state.NotificationSuccess, "Build submitted",
			fmt.Sprintf("A new build for %s/%s has been submitted.", origin, name)); err != nil {
			return err
		}
		e.after(ctx, d, e.delays.BuildListRefresh, e.FetchBuilds(origin, name, token))
		return nil
	}
}

// FetchJobGroup loads a scheduled job group.
func (e *Effects) FetchJobGroup(id, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		g, err := e.api.GetJobGroup(ctx, token, id)
		return d.Dispatch(ctx, NewPopulateJobGroup(g, err))
	}
}
