package action

import (
	"context"

	"github.com/narvanalabs/builder-web/internal/cookie"
	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/web/api"
)

// SignInRoute is where SignOut sends the user when asked to.
const SignInRoute = "/sign-in"

// SignIn bootstraps a session for name, persists its token in jar and loads
// the user's profile and origins. A redirect path stored by SignOut is
// consumed and requested as the next route.
func (e *Effects) SignIn(name string, jar cookie.Jar) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		sess, err := e.api.Authenticate(ctx, name)
		if err != nil {
			e.logger.Debug("sign in failed", "user", name, "error", err)
			return e.notify(ctx, d, state.NotificationDanger, "Sign in failed", api.Message(err))
		}

		token := sess.Bearer()
		jar.Set(cookie.SessionToken, token)

		if err := d.Dispatch(ctx, NewSetSessionToken(token)); err != nil {
			return err
		}
		if err := d.Dispatch(ctx, e.FetchProfile(token)); err != nil {
			return err
		}
		if err := d.Dispatch(ctx, e.FetchMyOrigins(token)); err != nil {
			return err
		}

		if path, ok := jar.Get(cookie.RedirectPath); ok && path != "" {
			jar.Remove(cookie.RedirectPath)
			return d.Dispatch(ctx, NewRequestRoute(path))
		}
		return nil
	}
}

// RestoreSession loads the session stored in jar, if any.
func (e *Effects) RestoreSession(jar cookie.Jar) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		token, ok := jar.Get(cookie.SessionToken)
		if !ok || token == "" {
			return nil
		}
		if err := d.Dispatch(ctx, NewSetSessionToken(token)); err != nil {
			return err
		}
		return d.Dispatch(ctx, e.FetchProfile(token))
	}
}

// SignOut clears the session token and resets every state slice when a
// session exists. pathAfterSignIn, when set, is remembered for the next sign
// in unless an earlier redirect is still pending. redirectToSignIn requests
// the sign-in route.
func (e *Effects) SignOut(jar cookie.Jar, redirectToSignIn bool, pathAfterSignIn string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		_, hasCookie := jar.Get(cookie.SessionToken)
		if hasCookie || d.GetState().Session.SignedIn() {
			jar.Remove(cookie.SessionToken)
			if err := d.Dispatch(ctx, NewResetAppState()); err != nil {
				return err
			}
		}

		if pathAfterSignIn != "" {
			if _, pending := jar.Get(cookie.RedirectPath); !pending {
				jar.Set(cookie.RedirectPath, pathAfterSignIn)
			}
		}

		if redirectToSignIn {
			return d.Dispatch(ctx, NewRequestRoute(SignInRoute))
		}
		return nil
	}
}

// FetchProfile loads the profile of the token's owner.
func (e *Effects) FetchProfile(token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		p, err := e.api.GetProfile(ctx, token)
		return d.Dispatch(ctx, NewPopulateProfile(p, err))
	}
}
