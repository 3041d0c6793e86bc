package fixtures

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/builder-web/internal/state"
)

// Errors returned by the in-memory depot. Handlers map them to status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrNotMember    = errors.New("not a member of the origin")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// namePattern matches origin and channel names: lowercase letters, digits,
// hyphens and underscores, starting with a letter or digit.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// MaxNameLength bounds origin and channel names.
const MaxNameLength = 255

func validateName(kind, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: %s name is required", ErrBadRequest, kind)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: %s name must be %d characters or less", ErrBadRequest, kind, MaxNameLength)
	case !namePattern.MatchString(name):
		return fmt.Errorf("%w: %s name %q may only contain lowercase letters, digits, hyphens and underscores", ErrBadRequest, kind, name)
	}
	return nil
}

// DefaultChannels exist in every origin.
var DefaultChannels = []string{"unstable", "stable"}

type origin struct {
	record   state.Origin
	members  map[string]bool
	channels map[string]time.Time
	keys     map[string]map[string]string // kind -> revision -> key text
}

type release struct {
	pkg      state.Package
	artifact []byte
	channels map[string]bool
	uploaded time.Time
}

type job struct {
	build   state.Build
	group   string
	lines   []string
	shown   int
	private bool
}

// depot is the in-memory model behind the fixture.
type depot struct {
	mu sync.Mutex

	now      func() time.Time
	pageSize int

	users    map[string]state.Profile
	origins  map[string]*origin
	releases map[string]*release // ident string -> release
	projects map[string]state.Project
	groups   map[string]state.JobGroup
	jobs     map[string]*job
	jobOrder []string
	nextJob  int64
}

func newDepot(now func() time.Time, pageSize int) *depot {
	return &depot{
		now:      now,
		pageSize: pageSize,
		users:    make(map[string]state.Profile),
		origins:  make(map[string]*origin),
		releases: make(map[string]*release),
		projects: make(map[string]state.Project),
		groups:   make(map[string]state.JobGroup),
		jobs:     make(map[string]*job),
		nextJob:  1000,
	}
}

// user returns the profile of name, creating it on first use.
func (d *depot) user(name string) state.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userLocked(name)
}

func (d *depot) userLocked(name string) state.Profile {
	p, ok := d.users[name]
	if !ok {
		p = state.Profile{ID: uuid.NewString(), Name: name, Email: name + "@example.com"}
		d.users[name] = p
	}
	return p
}

func (d *depot) myOrigins(user string) []state.Origin {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []state.Origin{}
	for _, o := range d.origins {
		if o.members[user] {
			out = append(out, o.record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *depot) createOrigin(user, name string, vis state.PackageVisibility) (state.Origin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := validateName("origin", name); err != nil {
		return state.Origin{}, err
	}
	if _, ok := d.origins[name]; ok {
		return state.Origin{}, fmt.Errorf("origin %s: %w", name, ErrConflict)
	}
	if vis == "" {
		vis = state.VisibilityPublic
	}

	owner := d.userLocked(user)
	o := &origin{
		record: state.Origin{
			ID:                       uuid.NewString(),
			Name:                     name,
			OwnerID:                  owner.ID,
			DefaultPackageVisibility: vis,
		},
		members:  map[string]bool{user: true},
		channels: make(map[string]time.Time),
		keys:     make(map[string]map[string]string),
	}
	for _, c := range DefaultChannels {
		o.channels[c] = d.now()
	}
	d.origins[name] = o
	return o.record, nil
}

func (d *depot) getOrigin(name string) (state.Origin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.origins[name]
	if !ok {
		return state.Origin{}, fmt.Errorf("origin %s: %w", name, ErrNotFound)
	}
	return o.record, nil
}

// memberLocked returns the origin if user belongs to it.
func (d *depot) memberLocked(user, name string) (*origin, error) {
	o, ok := d.origins[name]
	if !ok {
		return nil, fmt.Errorf("origin %s: %w", name, ErrNotFound)
	}
	if !o.members[user] {
		return nil, fmt.Errorf("origin %s: %w", name, ErrNotMember)
	}
	return o, nil
}

func (d *depot) updateOrigin(user, name string, vis state.PackageVisibility) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, err := d.memberLocked(user, name)
	if err != nil {
		return err
	}
	if vis != "" {
		o.record.DefaultPackageVisibility = vis
	}
	return nil
}

// addMember lets user publish into origin.
func (d *depot) addMember(originName, user string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.origins[originName]
	if !ok {
		return fmt.Errorf("origin %s: %w", originName, ErrNotFound)
	}
	o.members[user] = true
	return nil
}

func (d *depot) putKey(user, kind, originName, revision, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, err := d.memberLocked(user, originName)
	if err != nil {
		return err
	}
	if o.keys[kind] == nil {
		o.keys[kind] = make(map[string]string)
	}
	o.keys[kind][revision] = key
	if kind == "secret_keys" {
		o.record.PrivateKeyName = originName + "-" + revision
	}
	return nil
}

func (d *depot) getKey(user, kind, originName, revision string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var o *origin
	if kind == "secret_keys" {
		var err error
		if o, err = d.memberLocked(user, originName); err != nil {
			return "", err
		}
	} else {
		var ok bool
		if o, ok = d.origins[originName]; !ok {
			return "", fmt.Errorf("origin %s: %w", originName, ErrNotFound)
		}
	}
	if revision == "latest" {
		newest := ""
		for rev := range o.keys[kind] {
			if rev > newest {
				newest = rev
			}
		}
		revision = newest
	}
	key, ok := o.keys[kind][revision]
	if !ok {
		return "", fmt.Errorf("key %s-%s: %w", originName, revision, ErrNotFound)
	}
	return key, nil
}

func (d *depot) publicKeys(originName string) ([]state.OriginKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.origins[originName]
	if !ok {
		return nil, fmt.Errorf("origin %s: %w", originName, ErrNotFound)
	}
	out := []state.OriginKey{}
	for rev := range o.keys["keys"] {
		out = append(out, state.OriginKey{
			Origin:   originName,
			Revision: rev,
			Location: "/origins/" + originName + "/keys/" + rev,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision > out[j].Revision })
	return out, nil
}

func (d *depot) createChannel(user, originName, channel string) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := validateName("channel", channel); err != nil {
		return time.Time{}, err
	}
	o, err := d.memberLocked(user, originName)
	if err != nil {
		return time.Time{}, err
	}
	if _, ok := o.channels[channel]; ok {
		return time.Time{}, fmt.Errorf("channel %s: %w", channel, ErrConflict)
	}
	created := d.now()
	o.channels[channel] = created
	return created, nil
}

// upload stores a release and places it in the unstable channel.
func (d *depot) upload(user string, ident state.PackageIdent, checksum string, artifact []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, err := d.memberLocked(user, ident.Origin)
	if err != nil {
		return err
	}
	key := ident.String()
	if _, ok := d.releases[key]; ok {
		return fmt.Errorf("package %s: %w", key, ErrConflict)
	}

	d.releases[key] = &release{
		pkg: state.Package{
			Ident:      ident,
			Checksum:   checksum,
			Target:     "x86_64-linux",
			Visibility: o.record.DefaultPackageVisibility,
		},
		artifact: artifact,
		channels: map[string]bool{"unstable": true},
		uploaded: d.now(),
	}

	projectKey := ident.Origin + "/" + ident.Name
	if _, ok := d.projects[projectKey]; !ok {
		d.projects[projectKey] = state.Project{
			ID:          uuid.NewString(),
			Name:        projectKey,
			OriginName:  ident.Origin,
			PackageName: ident.Name,
			PlanPath:    "plan.sh",
			Visibility:  o.record.DefaultPackageVisibility,
		}
	}
	return nil
}

// visibleLocked reports whether user may see r.
func (d *depot) visibleLocked(user string, r *release) bool {
	if r.pkg.Visibility != state.VisibilityPrivate {
		return true
	}
	o, ok := d.origins[r.pkg.Ident.Origin]
	return ok && o.members[user]
}

func (d *depot) download(user string, ident state.PackageIdent) (*release, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.releases[ident.String()]
	if !ok || !d.visibleLocked(user, r) {
		return nil, fmt.Errorf("package %s: %w", ident, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// matchingLocked returns visible releases matching every set field of want,
// newest first.
func (d *depot) matchingLocked(user string, want state.PackageIdent, filter func(*release) bool) []*release {
	var out []*release
	for _, r := range d.releases {
		id := r.pkg.Ident
		if id.Origin != want.Origin ||
			(want.Name != "" && id.Name != want.Name) ||
			(want.Version != "" && id.Version != want.Version) ||
			(want.Release != "" && id.Release != want.Release) {
			continue
		}
		if !d.visibleLocked(user, r) || (filter != nil && !filter(r)) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].uploaded.Equal(out[j].uploaded) {
			return out[i].uploaded.After(out[j].uploaded)
		}
		return out[i].pkg.Ident.String() > out[j].pkg.Ident.String()
	})
	return out
}

// latest resolves an ident with an empty version or release to its newest
// visible release.
func (d *depot) latest(user string, ident state.PackageIdent) (state.Package, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := d.matchingLocked(user, ident, nil)
	if len(found) == 0 {
		return state.Package{}, fmt.Errorf("package %s: %w", ident, ErrNotFound)
	}
	pkg := found[0].pkg
	pkg.Channels = sortedKeys(found[0].channels)
	return pkg, nil
}

// PackagePage is a ranged listing.
type PackagePage struct {
	RangeStart int                  `json:"range_start"`
	RangeEnd   int                  `json:"range_end"`
	TotalCount int                  `json:"total_count"`
	Data       []state.PackageIdent `json:"data"`
}

func (d *depot) page(found []*release, start int) PackagePage {
	p := PackagePage{RangeStart: start, TotalCount: len(found), Data: []state.PackageIdent{}}
	if start < 0 || start >= len(found) {
		p.RangeEnd = start
		return p
	}
	end := start + d.pageSize
	if end > len(found) {
		end = len(found)
	}
	for _, r := range found[start:end] {
		p.Data = append(p.Data, r.pkg.Ident)
	}
	p.RangeEnd = end - 1
	return p
}

func (d *depot) listPackages(user string, want state.PackageIdent, start int) (PackagePage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.origins[want.Origin]; !ok {
		return PackagePage{}, fmt.Errorf("origin %s: %w", want.Origin, ErrNotFound)
	}
	return d.page(d.matchingLocked(user, want, nil), start), nil
}

func (d *depot) listChannelPackages(user, originName, channel string, start int) (PackagePage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.origins[originName]
	if !ok {
		return PackagePage{}, fmt.Errorf("origin %s: %w", originName, ErrNotFound)
	}
	if _, ok := o.channels[channel]; !ok {
		return PackagePage{}, fmt.Errorf("channel %s: %w", channel, ErrNotFound)
	}
	found := d.matchingLocked(user, state.PackageIdent{Origin: originName}, func(r *release) bool {
		return r.channels[channel]
	})
	return d.page(found, start), nil
}

func (d *depot) packageChannels(user string, ident state.PackageIdent) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.releases[ident.String()]
	if !ok || !d.visibleLocked(user, r) {
		return nil, fmt.Errorf("package %s: %w", ident, ErrNotFound)
	}
	return sortedKeys(r.channels), nil
}

// move promotes a release into channel or demotes it out of channel.
// Nothing is ever demoted from unstable.
func (d *depot) move(user, channel string, ident state.PackageIdent, promote bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, err := d.memberLocked(user, ident.Origin)
	if err != nil {
		return err
	}
	if _, ok := o.channels[channel]; !ok {
		return fmt.Errorf("channel %s: %w", channel, ErrNotFound)
	}
	r, ok := d.releases[ident.String()]
	if !ok {
		return fmt.Errorf("package %s: %w", ident, ErrNotFound)
	}
	if promote {
		r.channels[channel] = true
		return nil
	}
	if channel == "unstable" {
		return fmt.Errorf("demote from unstable: %w", ErrForbidden)
	}
	delete(r.channels, channel)
	return nil
}

func (d *depot) setVisibility(user string, ident state.PackageIdent, vis state.PackageVisibility) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if vis != state.VisibilityPublic && vis != state.VisibilityPrivate {
		return fmt.Errorf("%w: unknown visibility %q", ErrBadRequest, vis)
	}
	if _, err := d.memberLocked(user, ident.Origin); err != nil {
		return err
	}
	r, ok := d.releases[ident.String()]
	if !ok {
		return fmt.Errorf("package %s: %w", ident, ErrNotFound)
	}
	r.pkg.Visibility = vis
	return nil
}

// schedule queues a build of originName/name and returns its group.
func (d *depot) schedule(user, originName, name, target string) (state.JobGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if target != "" && target != "x86_64-linux" {
		return state.JobGroup{}, fmt.Errorf("%w: unsupported target %s", ErrBadRequest, target)
	}
	o, err := d.memberLocked(user, originName)
	if err != nil {
		return state.JobGroup{}, err
	}

	projectKey := originName + "/" + name
	project, ok := d.projects[projectKey]
	if !ok {
		project = state.Project{
			ID:          uuid.NewString(),
			Name:        projectKey,
			OriginName:  originName,
			PackageName: name,
			PlanPath:    "plan.sh",
			Visibility:  o.record.DefaultPackageVisibility,
		}
		d.projects[projectKey] = project
	}

	d.nextJob++
	groupID := strconv.FormatInt(d.nextJob, 10)
	d.nextJob++
	jobID := strconv.FormatInt(d.nextJob, 10)
	created := d.now()

	group := state.JobGroup{
		ID:          groupID,
		State:       state.GroupQueued,
		ProjectName: projectKey,
		CreatedAt:   created.UTC().Format(time.RFC3339),
	}
	d.groups[groupID] = group
	d.jobs[jobID] = &job{
		build: state.Build{
			ID:        jobID,
			Origin:    originName,
			Name:      name,
			State:     state.BuildPending,
			CreatedAt: &created,
		},
		group:   groupID,
		lines:   buildScript(originName, name),
		private: project.Visibility == state.VisibilityPrivate,
	}
	d.jobOrder = append(d.jobOrder, jobID)
	return group, nil
}

// buildScript is the log every fixture build prints.
func buildScript(originName, name string) []string {
	ident := originName + "/" + name
	return []string{
		"   " + name + ": Plan loaded",
		"   " + name + ": Validating plan metadata",
		"   " + name + ": Resolving build dependencies",
		"   " + name + ": Downloading source",
		"   " + name + ": Verifying checksums",
		"   " + name + ": Building",
		"   " + name + ": Installing",
		"   " + name + ": Writing package metadata",
		"   " + name + ": Generated artifact for " + ident,
		"   " + name + ": Build complete",
	}
}

func (d *depot) group(id string) (state.JobGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[id]
	if !ok {
		return state.JobGroup{}, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	return g, nil
}

func (d *depot) projectBuilds(originName, name string) []state.Build {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []state.Build{}
	for i := len(d.jobOrder) - 1; i >= 0; i-- {
		j := d.jobs[d.jobOrder[i]]
		if j.build.Origin == originName && j.build.Name == name {
			out = append(out, j.build)
		}
	}
	return out
}

func (d *depot) build(id string) (state.Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	j, ok := d.jobs[id]
	if !ok {
		return state.Build{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return j.build, nil
}

// logPage returns the job's log from start. Each call makes up to pageSize
// more lines available, so a client polling the log sees it grow until the
// build completes.
func (d *depot) logPage(user, id string, start int) (state.LogPage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return state.LogPage{}, fmt.Errorf("%w: job id must be numeric", ErrBadRequest)
	}
	j, ok := d.jobs[id]
	if !ok {
		return state.LogPage{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if j.private {
		if user == "" {
			return state.LogPage{}, fmt.Errorf("job %s: %w", id, ErrUnauthorized)
		}
		if o, ok := d.origins[j.build.Origin]; !ok || !o.members[user] {
			return state.LogPage{}, fmt.Errorf("job %s: %w", id, ErrForbidden)
		}
	}

	now := d.now()
	if j.build.State == state.BuildPending {
		j.build.State = state.BuildProcessing
		j.build.StartTime = &now
		d.setGroupStateLocked(j.group, state.GroupDispatching)
	}
	if j.shown < len(j.lines) {
		j.shown += d.pageSize
		if j.shown >= len(j.lines) {
			j.shown = len(j.lines)
			j.build.State = state.BuildComplete
			j.build.StopTime = &now
			d.setGroupStateLocked(j.group, state.GroupComplete)
		}
	}

	if start < 0 {
		start = 0
	}
	if start > j.shown {
		start = j.shown
	}
	content := make([]string, j.shown-start)
	copy(content, j.lines[start:j.shown])
	return state.LogPage{
		Start:      start,
		Stop:       j.shown,
		Content:    content,
		IsComplete: j.shown == len(j.lines),
	}, nil
}

func (d *depot) setGroupStateLocked(id string, s state.JobGroupState) {
	if g, ok := d.groups[id]; ok {
		g.State = s
		d.groups[id] = g
	}
}

func (d *depot) project(originName, name string) (state.Project, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.projects[originName+"/"+name]
	if !ok {
		return state.Project{}, fmt.Errorf("project %s/%s: %w", originName, name, ErrNotFound)
	}
	return p, nil
}

func (d *depot) originProjects(originName string) []state.Project {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []state.Project{}
	for _, p := range d.projects {
		if p.OriginName == originName {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
