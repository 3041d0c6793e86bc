package action

import "github.com/narvanalabs/builder-web/internal/state"

// BuildLogPage is the payload of PopulateBuildLog.
type BuildLogPage struct {
	BuildID string
	Page    state.LogPage
}

// VisiblePackages is the payload of PopulateVisiblePackages.
type VisiblePackages struct {
	Idents     []state.PackageIdent
	RangeStart int
	RangeEnd   int
	TotalCount int
}

func NewSetSessionToken(token string) Action {
	return Action{Type: SetSessionToken, Payload: token}
}

func NewResetAppState() Action {
	return Action{Type: ResetAppState}
}

func NewPopulateProfile(p *state.Profile, err error) Action {
	return populate(PopulateProfile, p, err)
}

func NewPopulateOrigin(o *state.Origin, err error) Action {
	return populate(PopulateOrigin, o, err)
}

func NewPopulateMyOrigins(origins []state.Origin, err error) Action {
	return populate(PopulateMyOrigins, origins, err)
}

func NewPopulateOriginPublicKeys(keys []state.OriginKey, err error) Action {
	return populate(PopulateOriginPublicKeys, keys, err)
}

func NewSetOriginLoading(loading bool) Action {
	return Action{Type: SetOriginLoading, Payload: loading}
}

func NewClearPackages() Action {
	return Action{Type: ClearPackages}
}

func NewPopulatePackage(p *state.Package, err error) Action {
	return populate(PopulatePackage, p, err)
}

func NewPopulateVisiblePackages(v *VisiblePackages, err error) Action {
	return populate(PopulateVisiblePackages, v, err)
}

func NewPopulatePackageChannels(channels []string, err error) Action {
	return populate(PopulatePackageChannels, channels, err)
}

func NewClearBuilds() Action {
	return Action{Type: ClearBuilds}
}

func NewClearBuild() Action {
	return Action{Type: ClearBuild}
}

func NewClearBuildLog() Action {
	return Action{Type: ClearBuildLog}
}

func NewPopulateBuilds(builds []state.Build, err error) Action {
	return populate(PopulateBuilds, builds, err)
}

func NewPopulateBuild(b *state.Build, err error) Action {
	return populate(PopulateBuild, b, err)
}

// NewPopulateBuildLog carries one page of a build's log. A nil page with a
// non-nil err reports a failed fetch.
func NewPopulateBuildLog(buildID string, page *state.LogPage, err error) Action {
	if err != nil || page == nil {
		return Action{Type: PopulateBuildLog, Err: err}
	}
	return Action{Type: PopulateBuildLog, Payload: &BuildLogPage{BuildID: buildID, Page: *page}}
}

// NewStreamBuildLog marks whether the selected build's log is being followed.
func NewStreamBuildLog(streaming bool) Action {
	return Action{Type: StreamBuildLog, Payload: streaming}
}

// NewBuildLogFailed ends following the selected build's log after err.
func NewBuildLogFailed(err error) Action {
	return Action{Type: BuildLogFailed, Err: err}
}

func NewPopulateJobGroup(g *state.JobGroup, err error) Action {
	return populate(PopulateJobGroup, g, err)
}

func NewPopulateProject(p *state.Project, err error) Action {
	return populate(PopulateProject, p, err)
}

func NewPopulateProjects(projects []state.Project, err error) Action {
	return populate(PopulateProjects, projects, err)
}

// NewAddNotification appends n to the notification list. Use
// Effects.AddNotification to also schedule its dismissal.
func NewAddNotification(n state.Notification) Action {
	return Action{Type: AddNotification, Payload: n}
}

// NewRemoveNotification removes the notification at a position in the list.
func NewRemoveNotification(index int) Action {
	return Action{Type: RemoveNotification, Payload: index}
}

// NewDismissNotification removes the notification with the given id, if it is
// still displayed.
func NewDismissNotification(id string) Action {
	return Action{Type: DismissNotification, Payload: id}
}

func NewRouteChange(route string) Action {
	return Action{Type: RouteChange, Payload: route}
}

// NewRequestRoute asks the view layer to navigate to route.
func NewRequestRoute(route string) Action {
	return Action{Type: RouteRequested, Payload: route}
}

func populate[T any](t Type, payload T, err error) Action {
	if err != nil {
		return Action{Type: t, Err: err}
	}
	return Action{Type: t, Payload: payload}
}
