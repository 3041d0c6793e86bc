package reducer

import (
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/state"
)

// Session reduces the session slice.
func Session(s *state.Session, a action.Action) *state.Session {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultSession()
	case action.SetSessionToken:
		token, ok := payload[string](a)
		if !ok {
			return s
		}
		return &state.Session{Token: token}
	}
	return s
}

// Users reduces the users slice.
func Users(s *state.Users, a action.Action) *state.Users {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultUsers()
	case action.PopulateProfile:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			p, ok := ptr[state.Profile](a)
			if !ok {
				return s
			}
			next.Current = p
			next.Fetched = true
		}
		return &next
	}
	return s
}

// Origins reduces the origins slice.
func Origins(s *state.Origins, a action.Action) *state.Origins {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultOrigins()

	case action.SetOriginLoading:
		loading, ok := payload[bool](a)
		if !ok {
			return s
		}
		next := *s
		next.UI.Loading = loading
		return &next

	case action.PopulateOrigin:
		next := *s
		next.UI = failed(a.Err)
		if a.Err != nil {
			next.Current = state.Origin{}
			next.CurrentExists = false
			return &next
		}
		o, ok := ptr[state.Origin](a)
		if !ok {
			return s
		}
		next.Current = o
		next.CurrentExists = true
		return &next

	case action.PopulateMyOrigins:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			origins, ok := payload[[]state.Origin](a)
			if !ok {
				return s
			}
			next.Mine = clone(origins)
		}
		return &next

	case action.PopulateOriginPublicKeys:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			keys, ok := payload[[]state.OriginKey](a)
			if !ok {
				return s
			}
			next.CurrentPublicKeys = clone(keys)
		}
		return &next
	}
	return s
}

// Packages reduces the packages slice. A listing page that starts at zero
// replaces the visible packages; later pages extend them.
func Packages(s *state.Packages, a action.Action) *state.Packages {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultPackages()

	case action.ClearPackages:
		next := *s
		next.Visible = []state.PackageIdent{}
		next.TotalCount = 0
		next.NextRange = 0
		next.UI = state.UI{Loading: true}
		return &next

	case action.PopulatePackage:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			p, ok := ptr[state.Package](a)
			if !ok {
				return s
			}
			next.Current = p
			next.CurrentChannels = []string{}
		}
		return &next

	case action.PopulatePackageChannels:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			channels, ok := payload[[]string](a)
			if !ok {
				return s
			}
			next.CurrentChannels = clone(channels)
		}
		return &next

	case action.PopulateVisiblePackages:
		next := *s
		next.UI = failed(a.Err)
		if a.Err != nil {
			return &next
		}
		v, ok := ptr[action.VisiblePackages](a)
		if !ok {
			return s
		}
		if v.RangeStart == 0 {
			next.Visible = clone(v.Idents)
		} else {
			next.Visible = concat(s.Visible, v.Idents)
		}
		next.TotalCount = v.TotalCount
		next.NextRange = v.RangeEnd + 1
		return &next
	}
	return s
}

// Projects reduces the projects slice.
func Projects(s *state.Projects, a action.Action) *state.Projects {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultProjects()

	case action.PopulateProject:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			p, ok := ptr[state.Project](a)
			if !ok {
				return s
			}
			next.Current = p
		}
		return &next

	case action.PopulateProjects:
		next := *s
		next.UI = failed(a.Err)
		if a.Err == nil {
			projects, ok := payload[[]state.Project](a)
			if !ok {
				return s
			}
			next.Visible = clone(projects)
		}
		return &next
	}
	return s
}

// Router reduces the router slice. A requested route is cleared once the
// view reports it reached that route.
func Router(s *state.Router, a action.Action) *state.Router {
	switch a.Type {
	case action.ResetAppState:
		return state.DefaultRouter()

	case action.RouteChange:
		route, ok := payload[string](a)
		if !ok {
			return s
		}
		next := *s
		next.Route = route
		if next.Requested == route {
			next.Requested = ""
		}
		return &next

	case action.RouteRequested:
		route, ok := payload[string](a)
		if !ok {
			return s
		}
		next := *s
		next.Requested = route
		return &next
	}
	return s
}
