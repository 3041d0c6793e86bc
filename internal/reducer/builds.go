package reducer

import (
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/state"
)

// Builds reduces the builds slice.
func Builds(s *state.Builds, a action.Action) *state.Builds {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultBuilds()

	case action.ClearBuilds:
		next := *s
		next.Visible = []state.Build{}
		next.UI = state.UI{Loading: true}
		return &next

	case action.ClearBuild:
		next := *s
		next.Selected = state.Build{}
		next.Log = state.BuildLog{Content: []string{}}
		return &next

	case action.ClearBuildLog:
		next := *s
		next.Log = state.BuildLog{Content: []string{}}
		return &next

	case action.StreamBuildLog:
		streaming, ok := payload[bool](a)
		if !ok {
			return s
		}
		next := *s
		next.Streaming = streaming
		return &next

	case action.BuildLogFailed:
		next := *s
		next.Streaming = false
		next.UI = failed(a.Err)
		return &next

	case action.PopulateBuilds:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			builds, ok := payload[[]state.Build](a)
			if !ok {
				return s
			}
			next.Visible = clone(builds)
		}
		return &next

	case action.PopulateBuild:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			b, ok := ptr[state.Build](a)
			if !ok {
				return s
			}
			next.Selected = b
		}
		return &next

	case action.PopulateBuildLog:
		return buildLog(s, a)

	case action.PopulateJobGroup:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			g, ok := ptr[state.JobGroup](a)
			if !ok {
				return s
			}
			next.Group = &g
		}
		return &next
	}
	return s
}

// buildLog merges one log page into the selected build's log.
//
// A failed fetch leaves the log untouched: logs of builds that have not
// started yet fail routinely and must not wipe what is displayed. The first
// page of a stream that is still running replaces the content; every other
// page is appended.
func buildLog(s *state.Builds, a action.Action) *state.Builds {
	if a.Err != nil {
		return s
	}
	p, ok := ptr[action.BuildLogPage](a)
	if !ok {
		return s
	}

	page := p.Page
	log := state.BuildLog{
		BuildID:    p.BuildID,
		Start:      page.Start,
		Stop:       page.Stop,
		IsComplete: page.IsComplete,
	}
	if page.Start == 0 && !page.IsComplete {
		log.Content = clone(page.Content)
	} else {
		log.Content = concat(s.Log.Content, page.Content)
	}

	next := *s
	next.Log = log
	if page.IsComplete {
		next.Streaming = false
	}
	return &next
}
