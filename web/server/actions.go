package server

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/web/api"
)

// LogFollowAction is the action that runs under the cancellable follow context.
const LogFollowAction = "log-follow"

// actionDef turns decoded JSON arguments into something to dispatch.
type actionDef struct {
	follow bool
	build  func(e *action.Effects, raw map[string]any, token string) (action.Dispatchable, *Error)
}

// define binds an argument struct A to an effect. check may be nil.
func define[A any](check func(A, *fieldErrors), build func(e *action.Effects, a A, token string) action.Dispatchable) actionDef {
	return actionDef{
		build: func(e *action.Effects, raw map[string]any, token string) (action.Dispatchable, *Error) {
			var a A
			if err := decodeArgs(raw, &a); err != nil {
				return nil, newError(CodeValidationError, err.Error())
			}
			var fe fieldErrors
			if check != nil {
				check(a, &fe)
			}
			if err := fe.err(); err != nil {
				return nil, err
			}
			return build(e, a, token), nil
		},
	}
}

func decodeArgs(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("creating argument decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}

type noArgs struct{}

type idArgs struct {
	ID string `mapstructure:"id"`
}

func (a idArgs) check(fe *fieldErrors) { fe.require("id", a.ID) }

type projectArgs struct {
	Origin string `mapstructure:"origin"`
	Name   string `mapstructure:"name"`
}

func (a projectArgs) check(fe *fieldErrors) {
	fe.require("origin", a.Origin)
	fe.require("name", a.Name)
}

type originArgs struct {
	Name                     string `mapstructure:"name"`
	DefaultPackageVisibility string `mapstructure:"default_package_visibility"`
}

func (a originArgs) check(fe *fieldErrors) {
	fe.require("name", a.Name)
	checkVisibility(fe, "default_package_visibility", a.DefaultPackageVisibility, true)
}

func (a originArgs) request() api.OriginRequest {
	return api.OriginRequest{
		Name:                     a.Name,
		DefaultPackageVisibility: state.PackageVisibility(a.DefaultPackageVisibility),
	}
}

type keyArgs struct {
	Origin   string `mapstructure:"origin"`
	Revision string `mapstructure:"revision"`
	Key      string `mapstructure:"key"`
	Secret   bool   `mapstructure:"secret"`
}

type channelArgs struct {
	Origin     string `mapstructure:"origin"`
	Channel    string `mapstructure:"channel"`
	RangeStart int    `mapstructure:"range_start"`
}

type packageArgs struct {
	Origin     string `mapstructure:"origin"`
	Name       string `mapstructure:"name"`
	Version    string `mapstructure:"version"`
	Release    string `mapstructure:"release"`
	Channel    string `mapstructure:"channel"`
	Visibility string `mapstructure:"visibility"`
	RangeStart int    `mapstructure:"range_start"`
}

func (a packageArgs) ident() state.PackageIdent {
	return state.PackageIdent{Origin: a.Origin, Name: a.Name, Version: a.Version, Release: a.Release}
}

// checkRelease requires a fully qualified ident.
func (a packageArgs) checkRelease(fe *fieldErrors) {
	fe.require("origin", a.Origin)
	fe.require("name", a.Name)
	fe.require("version", a.Version)
	fe.require("release", a.Release)
}

type notificationArgs struct {
	Type  string `mapstructure:"type"`
	Title string `mapstructure:"title"`
	Body  string `mapstructure:"body"`
}

type indexArgs struct {
	Index *int `mapstructure:"index"`
}

func (a indexArgs) check(fe *fieldErrors) {
	switch {
	case a.Index == nil:
		fe.add("index", "index is required")
	case *a.Index < 0:
		fe.add("index", "index must not be negative")
	}
}

type routeArgs struct {
	Route string `mapstructure:"route"`
}

func checkVisibility(fe *fieldErrors, field, v string, optional bool) {
	switch state.PackageVisibility(v) {
	case state.VisibilityPublic, state.VisibilityPrivate:
	case "":
		if !optional {
			fe.require(field, v)
		}
	default:
		fe.add(field, field+" must be public or private")
	}
}

func notificationType(v string) (state.NotificationType, bool) {
	switch t := state.NotificationType(v); t {
	case state.NotificationSuccess, state.NotificationDanger, state.NotificationWarning, state.NotificationInfo:
		return t, true
	case "":
		return state.NotificationInfo, true
	}
	return "", false
}

// actions maps each dispatchable name accepted by POST /actions/{name}.
var actions = map[string]actionDef{
	// builds
	"fetch-builds": define(projectArgs.check, func(e *action.Effects, a projectArgs, token string) action.Dispatchable {
		return e.FetchBuilds(a.Origin, a.Name, token)
	}),
	"fetch-build": define(idArgs.check, func(e *action.Effects, a idArgs, token string) action.Dispatchable {
		return e.FetchBuild(a.ID, token)
	}),
	LogFollowAction: following(define(idArgs.check, func(e *action.Effects, a idArgs, token string) action.Dispatchable {
		return e.FollowBuildLog(a.ID, token)
	})),
	"submit-job": define(projectArgs.check, func(e *action.Effects, a projectArgs, token string) action.Dispatchable {
		return e.SubmitJob(a.Origin, a.Name, token)
	}),
	"fetch-job-group": define(idArgs.check, func(e *action.Effects, a idArgs, token string) action.Dispatchable {
		return e.FetchJobGroup(a.ID, token)
	}),

	// origins
	"fetch-origin": define(func(a originArgs, fe *fieldErrors) { fe.require("name", a.Name) },
		func(e *action.Effects, a originArgs, _ string) action.Dispatchable {
			return e.FetchOrigin(a.Name)
		}),
	"fetch-my-origins": define[noArgs](nil, func(e *action.Effects, _ noArgs, token string) action.Dispatchable {
		return e.FetchMyOrigins(token)
	}),
	"create-origin": define(originArgs.check, func(e *action.Effects, a originArgs, token string) action.Dispatchable {
		return e.CreateOrigin(a.request(), token)
	}),
	"update-origin": define(originArgs.check, func(e *action.Effects, a originArgs, token string) action.Dispatchable {
		return e.UpdateOrigin(a.Name, api.OriginRequest{DefaultPackageVisibility: state.PackageVisibility(a.DefaultPackageVisibility)}, token)
	}),
	"fetch-origin-public-keys": define(func(a channelArgs, fe *fieldErrors) { fe.require("origin", a.Origin) },
		func(e *action.Effects, a channelArgs, token string) action.Dispatchable {
			return e.FetchOriginPublicKeys(a.Origin, token)
		}),
	"upload-origin-key": define(func(a keyArgs, fe *fieldErrors) {
		fe.require("origin", a.Origin)
		fe.require("revision", a.Revision)
		fe.require("key", a.Key)
	}, func(e *action.Effects, a keyArgs, token string) action.Dispatchable {
		kind := api.PublicKey
		if a.Secret {
			kind = api.SecretKey
		}
		return e.UploadOriginKey(kind, a.Origin, a.Revision, a.Key, token)
	}),
	"create-channel": define(func(a channelArgs, fe *fieldErrors) {
		fe.require("origin", a.Origin)
		fe.require("channel", a.Channel)
	}, func(e *action.Effects, a channelArgs, token string) action.Dispatchable {
		return e.CreateChannel(a.Origin, a.Channel, token)
	}),

	// packages
	"fetch-package": define(func(a packageArgs, fe *fieldErrors) {
		fe.require("origin", a.Origin)
		fe.require("name", a.Name)
	}, func(e *action.Effects, a packageArgs, token string) action.Dispatchable {
		return e.FetchPackage(a.ident(), token)
	}),
	"fetch-packages": define(func(a packageArgs, fe *fieldErrors) {
		fe.require("origin", a.Origin)
		if a.RangeStart < 0 {
			fe.add("range_start", "range_start must not be negative")
		}
	}, func(e *action.Effects, a packageArgs, token string) action.Dispatchable {
		return e.FetchPackages(a.Origin, a.Name, a.RangeStart, token)
	}),
	"fetch-channel-packages": define(func(a channelArgs, fe *fieldErrors) {
		fe.require("origin", a.Origin)
		fe.require("channel", a.Channel)
		if a.RangeStart < 0 {
			fe.add("range_start", "range_start must not be negative")
		}
	}, func(e *action.Effects, a channelArgs, token string) action.Dispatchable {
		return e.FetchChannelPackages(a.Origin, a.Channel, a.RangeStart, token)
	}),
	"fetch-package-channels": define(packageArgs.checkRelease, func(e *action.Effects, a packageArgs, token string) action.Dispatchable {
		return e.FetchPackageChannels(a.ident(), token)
	}),
	"promote-package": define(func(a packageArgs, fe *fieldErrors) {
		a.checkRelease(fe)
		fe.require("channel", a.Channel)
	}, func(e *action.Effects, a packageArgs, token string) action.Dispatchable {
		return e.PromotePackage(a.ident(), a.Channel, token)
	}),
	"demote-package": define(func(a packageArgs, fe *fieldErrors) {
		a.checkRelease(fe)
		fe.require("channel", a.Channel)
	}, func(e *action.Effects, a packageArgs, token string) action.Dispatchable {
		return e.DemotePackage(a.ident(), a.Channel, token)
	}),
	"set-package-visibility": define(func(a packageArgs, fe *fieldErrors) {
		a.checkRelease(fe)
		checkVisibility(fe, "visibility", a.Visibility, false)
	}, func(e *action.Effects, a packageArgs, token string) action.Dispatchable {
		return e.SetPackageVisibility(a.ident(), state.PackageVisibility(a.Visibility), token)
	}),

	// projects and profile
	"fetch-project": define(projectArgs.check, func(e *action.Effects, a projectArgs, token string) action.Dispatchable {
		return e.FetchProject(a.Origin, a.Name, token)
	}),
	"fetch-projects": define(func(a projectArgs, fe *fieldErrors) { fe.require("origin", a.Origin) },
		func(e *action.Effects, a projectArgs, token string) action.Dispatchable {
			return e.FetchProjects(a.Origin, token)
		}),
	"fetch-profile": define[noArgs](nil, func(e *action.Effects, _ noArgs, token string) action.Dispatchable {
		return e.FetchProfile(token)
	}),

	// notifications
	"add-notification": define(func(a notificationArgs, fe *fieldErrors) {
		fe.require("title", a.Title)
		if _, ok := notificationType(a.Type); !ok {
			fe.add("type", "type must be success, danger, warning or info")
		}
	}, func(e *action.Effects, a notificationArgs, _ string) action.Dispatchable {
		t, _ := notificationType(a.Type)
		return e.AddNotification(state.Notification{Type: t, Title: a.Title, Body: a.Body})
	}),
	"remove-notification": define(indexArgs.check, func(_ *action.Effects, a indexArgs, _ string) action.Dispatchable {
		return action.NewRemoveNotification(*a.Index)
	}),
	"dismiss-notification": define(idArgs.check, func(_ *action.Effects, a idArgs, _ string) action.Dispatchable {
		return action.NewDismissNotification(a.ID)
	}),

	// router
	"route-change": define(func(a routeArgs, fe *fieldErrors) { fe.require("route", a.Route) },
		func(_ *action.Effects, a routeArgs, _ string) action.Dispatchable {
			return action.NewRouteChange(a.Route)
		}),
	"request-route": define(func(a routeArgs, fe *fieldErrors) { fe.require("route", a.Route) },
		func(_ *action.Effects, a routeArgs, _ string) action.Dispatchable {
			return action.NewRequestRoute(a.Route)
		}),
}

func following(d actionDef) actionDef {
	d.follow = true
	return d
}

// ActionNames lists the accepted action names in sorted order.
func ActionNames() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
