// Package state defines the client application state tree.
//
// An AppState is an immutable snapshot. Reducers never modify a published
// value; they build a new one and reuse the pointers of every slice (and every
// nested record) they did not change. Code holding an *AppState may therefore
// keep reading it after newer snapshots have been committed.
package state

// UI carries per-slice request status for views.
type UI struct {
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
}

// AppState is the root of the state tree. No slice is ever nil.
type AppState struct {
	Session       *Session       `json:"session"`
	Users         *Users         `json:"users"`
	Origins       *Origins       `json:"origins"`
	Packages      *Packages      `json:"packages"`
	Builds        *Builds        `json:"builds"`
	Projects      *Projects      `json:"projects"`
	Notifications *Notifications `json:"notifications"`
	Router        *Router        `json:"router"`
}

// Session holds the opaque bearer token of the signed-in user.
type Session struct {
	Token string `json:"token,omitempty"`
}

// SignedIn reports whether a session token is present.
func (s *Session) SignedIn() bool {
	return s != nil && s.Token != ""
}

// Users holds the current user's profile.
type Users struct {
	Current Profile `json:"current"`
	Fetched bool    `json:"fetched"`
	UI      UI      `json:"ui"`
}

// Origins holds the origin being viewed and the user's own origins.
type Origins struct {
	Current           Origin      `json:"current"`
	CurrentExists     bool        `json:"current_exists"`
	CurrentPublicKeys []OriginKey `json:"current_public_keys"`
	Mine              []Origin    `json:"mine"`
	UI                UI          `json:"ui"`
}

// Packages holds the package being viewed and the visible listing.
type Packages struct {
	Current         Package        `json:"current"`
	CurrentChannels []string       `json:"current_channels"`
	Visible         []PackageIdent `json:"visible"`
	TotalCount      int            `json:"total_count"`
	NextRange       int            `json:"next_range"`
	UI              UI             `json:"ui"`
}

// Builds holds the visible build list and the selected build with its log.
type Builds struct {
	Visible   []Build   `json:"visible"`
	Selected  Build     `json:"selected"`
	Log       BuildLog  `json:"log"`
	Streaming bool      `json:"streaming"`
	Group     *JobGroup `json:"group,omitempty"`
	UI        UI        `json:"ui"`
}

// Projects holds the project being viewed and the origin's project list.
type Projects struct {
	Current Project   `json:"current"`
	Visible []Project `json:"visible"`
	UI      UI        `json:"ui"`
}

// Notifications is the ordered list of displayed notifications.
type Notifications struct {
	All []Notification `json:"all"`
}

// Router tracks the current route and a route requested by an action.
type Router struct {
	Route     string `json:"route"`
	Requested string `json:"requested,omitempty"`
}

// New returns an AppState with every slice at its default.
func New() *AppState {
	return &AppState{
		Session:       DefaultSession(),
		Users:         DefaultUsers(),
		Origins:       DefaultOrigins(),
		Packages:      DefaultPackages(),
		Builds:        DefaultBuilds(),
		Projects:      DefaultProjects(),
		Notifications: DefaultNotifications(),
		Router:        DefaultRouter(),
	}
}

func DefaultSession() *Session { return &Session{} }

func DefaultUsers() *Users { return &Users{} }

func DefaultOrigins() *Origins {
	return &Origins{
		CurrentPublicKeys: []OriginKey{},
		Mine:              []Origin{},
	}
}

func DefaultPackages() *Packages {
	return &Packages{
		CurrentChannels: []string{},
		Visible:         []PackageIdent{},
	}
}

func DefaultBuilds() *Builds {
	return &Builds{
		Visible: []Build{},
		Log:     BuildLog{Content: []string{}},
	}
}

func DefaultProjects() *Projects {
	return &Projects{Visible: []Project{}}
}

func DefaultNotifications() *Notifications {
	return &Notifications{All: []Notification{}}
}

func DefaultRouter() *Router {
	return &Router{Route: "/"}
}

// With returns a shallow copy of s. Callers replace the slices they change
// on the copy and leave the rest shared.
func (s *AppState) With() *AppState {
	next := *s
	return &next
}
