package action

import (
	"context"
	"fmt"

	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/web/api"
)

// FetchPackage loads a release. For a fully qualified ident the channels the
// release is in are loaded as well.
func (e *Effects) FetchPackage(ident state.PackageIdent, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		pkg, err := e.api.GetPackage(ctx, token, ident)
		if err := d.Dispatch(ctx, NewPopulatePackage(pkg, err)); err != nil {
			return err
		}
		if err != nil || ident.Release == "" {
			return nil
		}
		return d.Dispatch(ctx, e.FetchPackageChannels(ident, token))
	}
}

// FetchPackages lists the releases of origin/name, or every package in
// origin when name is empty, starting at rangeStart. The first page clears
// previously listed packages; later pages extend them.
func (e *Effects) FetchPackages(origin, name string, rangeStart int, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if rangeStart == 0 {
			if err := d.Dispatch(ctx, NewClearPackages()); err != nil {
				return err
			}
		}
		list, err := e.api.ListPackages(ctx, token, origin, name, rangeStart)
		return d.Dispatch(ctx, NewPopulateVisiblePackages(visible(list), err))
	}
}

// FetchChannelPackages lists the packages promoted to a channel.
func (e *Effects) FetchChannelPackages(origin, channel string, rangeStart int, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if rangeStart == 0 {
			if err := d.Dispatch(ctx, NewClearPackages()); err != nil {
				return err
			}
		}
		list, err := e.api.ListChannelPackages(ctx, token, origin, channel, rangeStart)
		return d.Dispatch(ctx, NewPopulateVisiblePackages(visible(list), err))
	}
}

// FetchPackageChannels loads the channels a release is in.
func (e *Effects) FetchPackageChannels(ident state.PackageIdent, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		channels, err := e.api.ListPackageChannels(ctx, token, ident)
		return d.Dispatch(ctx, NewPopulatePackageChannels(channels, err))
	}
}

// PromotePackage adds a release to channel.
func (e *Effects) PromotePackage(ident state.PackageIdent, channel, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := e.api.PromotePackage(ctx, token, channel, ident); err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Failed to promote package",
				fmt.Sprintf("There was an error promoting %s to %s: %s", ident, channel, api.Message(err)))
		}
		if err := d.Dispatch(ctx, e.FetchPackageChannels(ident, token)); err != nil {
			return err
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Package promoted",
			fmt.Sprintf("%s has been promoted to %s.", ident, channel))
	}
}

// DemotePackage removes a release from channel. The Builder API refuses
// demotion from unstable.
func (e *Effects) DemotePackage(ident state.PackageIdent, channel, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := e.api.DemotePackage(ctx, token, channel, ident); err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Failed to demote package",
				fmt.Sprintf("There was an error demoting %s from %s: %s", ident, channel, api.Message(err)))
		}
		if err := d.Dispatch(ctx, e.FetchPackageChannels(ident, token)); err != nil {
			return err
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Package demoted",
			fmt.Sprintf("%s has been demoted from %s.", ident, channel))
	}
}

// SetPackageVisibility makes a release public or private and reloads it.
func (e *Effects) SetPackageVisibility(ident state.PackageIdent, v state.PackageVisibility, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := e.api.SetPackageVisibility(ctx, token, ident, v); err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Failed to change visibility",
				fmt.Sprintf("There was an error making %s %s: %s", ident, v, api.Message(err)))
		}
		if err := d.Dispatch(ctx, e.FetchPackage(ident, token)); err != nil {
			return err
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Visibility changed",
			fmt.Sprintf("%s is now %s.", ident, v))
	}
}

func visible(list *api.PackageList) *VisiblePackages {
	if list == nil {
		return nil
	}
	return &VisiblePackages{
		Idents:     list.Data,
		RangeStart: list.RangeStart,
		RangeEnd:   list.RangeEnd,
		TotalCount: list.TotalCount,
	}
}
