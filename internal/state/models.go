package state

import "time"

// Profile is the signed-in user's account as reported by the Builder API.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// PackageVisibility controls who may download an origin's packages.
type PackageVisibility string

const (
	VisibilityPublic  PackageVisibility = "public"
	VisibilityPrivate PackageVisibility = "private"
)

// Origin is a namespace that owns packages, keys and members.
type Origin struct {
	ID                       string            `json:"id,omitempty"`
	Name                     string            `json:"name"`
	OwnerID                  string            `json:"owner_id,omitempty"`
	DefaultPackageVisibility PackageVisibility `json:"default_package_visibility,omitempty"`
	PrivateKeyName           string            `json:"private_key_name,omitempty"`
}

// OriginKey identifies one revision of an origin signing key.
type OriginKey struct {
	Origin   string `json:"origin"`
	Revision string `json:"revision"`
	Location string `json:"location,omitempty"`
}

// PackageIdent is the fully or partially qualified name of a package.
type PackageIdent struct {
	Origin  string `json:"origin"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Release string `json:"release,omitempty"`
}

// String renders the ident as origin/name[/version[/release]].
func (p PackageIdent) String() string {
	s := p.Origin + "/" + p.Name
	if p.Version != "" {
		s += "/" + p.Version
		if p.Release != "" {
			s += "/" + p.Release
		}
	}
	return s
}

// Package is a single package release with its metadata.
type Package struct {
	Ident      PackageIdent      `json:"ident"`
	Checksum   string            `json:"checksum,omitempty"`
	Manifest   string            `json:"manifest,omitempty"`
	Deps       []PackageIdent    `json:"deps,omitempty"`
	TDeps      []PackageIdent    `json:"tdeps,omitempty"`
	Exposes    []int             `json:"exposes,omitempty"`
	Config     string            `json:"config,omitempty"`
	Target     string            `json:"target,omitempty"`
	Channels   []string          `json:"channels,omitempty"`
	Visibility PackageVisibility `json:"visibility,omitempty"`
}

// BuildState is the server-reported state of a build job.
type BuildState string

const (
	BuildPending    BuildState = "Pending"
	BuildDispatched BuildState = "Dispatched"
	BuildProcessing BuildState = "Processing"
	BuildComplete   BuildState = "Complete"
	BuildFailed     BuildState = "Failed"
	BuildRejected   BuildState = "Rejected"
	BuildCancelled  BuildState = "CancelComplete"
)

// Build is a single build job.
type Build struct {
	ID        string     `json:"id"`
	Origin    string     `json:"origin,omitempty"`
	Name      string     `json:"name,omitempty"`
	Version   string     `json:"version,omitempty"`
	Release   string     `json:"release,omitempty"`
	State     BuildState `json:"state"`
	StartTime *time.Time `json:"build_started_at,omitempty"`
	StopTime  *time.Time `json:"build_finished_at,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// BuildLog is the accumulated output of a build's log stream.
type BuildLog struct {
	BuildID    string   `json:"build_id,omitempty"`
	Start      int      `json:"start"`
	Stop       int      `json:"stop"`
	Content    []string `json:"content"`
	IsComplete bool     `json:"is_complete"`
}

// LogPage is one page returned by the job log endpoint.
type LogPage struct {
	Start      int      `json:"start"`
	Stop       int      `json:"stop"`
	Content    []string `json:"content"`
	IsComplete bool     `json:"is_complete"`
}

// JobGroupState is the lifecycle state of a scheduled job group.
type JobGroupState string

const (
	GroupQueued      JobGroupState = "Queued"
	GroupDispatching JobGroupState = "Dispatching"
	GroupComplete    JobGroupState = "Complete"
	GroupFailed      JobGroupState = "Failed"
	GroupCanceled    JobGroupState = "Canceled"
)

// JobGroup is the server-side unit of scheduled build work.
type JobGroup struct {
	ID          string        `json:"id"`
	State       JobGroupState `json:"state"`
	ProjectName string        `json:"project_name"`
	CreatedAt   string        `json:"created_at,omitempty"`
}

// Project connects a package to its plan source.
type Project struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	OriginName  string            `json:"origin_name,omitempty"`
	PackageName string            `json:"package_name,omitempty"`
	PlanPath    string            `json:"plan_path,omitempty"`
	VCSType     string            `json:"vcs_type,omitempty"`
	VCSData     string            `json:"vcs_data,omitempty"`
	Visibility  PackageVisibility `json:"visibility,omitempty"`
}

// NotificationType selects how a notification is presented.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationDanger  NotificationType = "danger"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is a transient message shown to the user.
type Notification struct {
	ID    string           `json:"id"`
	Type  NotificationType `json:"type"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
}
