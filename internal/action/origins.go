package action

import (
	"context"
	"fmt"

	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/web/api"
)

// FetchOrigin loads an origin. A 404 populates the origin slice with the
// error so the view can tell a missing origin from one still loading.
func (e *Effects) FetchOrigin(name string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := d.Dispatch(ctx, NewSetOriginLoading(true)); err != nil {
			return err
		}
		o, err := e.api.GetOrigin(ctx, name)
		return d.Dispatch(ctx, NewPopulateOrigin(o, err))
	}
}

// FetchMyOrigins loads the origins the token's owner is a member of.
func (e *Effects) FetchMyOrigins(token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		origins, err := e.api.ListMyOrigins(ctx, token)
		return d.Dispatch(ctx, NewPopulateMyOrigins(origins, err))
	}
}

// CreateOrigin creates an origin, selects it and refreshes the user's
// origins.
func (e *Effects) CreateOrigin(o api.OriginRequest, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		created, err := e.api.CreateOrigin(ctx, token, o)
		if err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Failed to create origin",
				fmt.Sprintf("There was an error creating origin %s: %s", o.Name, api.Message(err)))
		}
		if err := d.Dispatch(ctx, NewPopulateOrigin(created, nil)); err != nil {
			return err
		}
		if err := d.Dispatch(ctx, e.FetchMyOrigins(token)); err != nil {
			return err
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Origin created",
			fmt.Sprintf("Origin %s has been created.", created.Name))
	}
}

// UpdateOrigin saves an origin's settings and reloads it.
func (e *Effects) UpdateOrigin(name string, o api.OriginRequest, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := e.api.UpdateOrigin(ctx, token, name, o); err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Failed to save origin settings",
				fmt.Sprintf("There was an error updating origin %s: %s", name, api.Message(err)))
		}
		if err := d.Dispatch(ctx, e.FetchOrigin(name)); err != nil {
			return err
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Origin settings saved",
			fmt.Sprintf("Settings for origin %s have been saved.", name))
	}
}

// FetchOriginPublicKeys loads the public key revisions of an origin.
func (e *Effects) FetchOriginPublicKeys(origin, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		keys, err := e.api.ListOriginPublicKeys(ctx, token, origin)
		return d.Dispatch(ctx, NewPopulateOriginPublicKeys(keys, err))
	}
}

// UploadOriginKey uploads a public or secret key revision. Public uploads
// refresh the origin's key list.
func (e *Effects) UploadOriginKey(kind api.KeyKind, origin, revision, key, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if err := e.api.UploadOriginKey(ctx, token, kind, origin, revision, key); err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Key upload failed",
				fmt.Sprintf("There was an error uploading %s-%s: %s", origin, revision, api.Message(err)))
		}
		if kind == api.PublicKey {
			if err := d.Dispatch(ctx, e.FetchOriginPublicKeys(origin, token)); err != nil {
				return err
			}
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Key uploaded",
			fmt.Sprintf("Key %s-%s has been uploaded.", origin, revision))
	}
}

// CreateChannel creates a channel in origin.
func (e *Effects) CreateChannel(origin, channel, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		if _, err := e.api.CreateChannel(ctx, token, origin, channel); err != nil {
			return e.notify(ctx, d, state.NotificationDanger, "Failed to create channel",
				fmt.Sprintf("There was an error creating channel %s in %s: %s", channel, origin, api.Message(err)))
		}
		return e.notify(ctx, d, state.NotificationSuccess, "Channel created",
			fmt.Sprintf("Channel %s has been created in %s.", channel, origin))
	}
}
