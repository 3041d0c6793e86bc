package api

import (
	"context"
	"net/http"

	"github.com/narvanalabs/builder-web/internal/state"
)

// Session is returned by the authenticate endpoint.
type Session struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Bearer returns the credential to send with subsequent calls.
func (s *Session) Bearer() string {
	return s.ID
}

// Authenticate bootstraps a session for name (GET /authenticate/:name).
// Only development deployments expose this endpoint.
func (c *Client) Authenticate(ctx context.Context, name string) (*Session, error) {
	var sess Session
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/authenticate" + pathEscape(name),
	}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetProfile fetches the profile of the token's owner.
func (c *Client) GetProfile(ctx context.Context, token string) (*state.Profile, error) {
	var p state.Profile
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/profile", token: token}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListMyOrigins fetches the origins the token's owner is a member of.
func (c *Client) ListMyOrigins(ctx context.Context, token string) ([]state.Origin, error) {
	var origins []state.Origin
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/user/origins", token: token}, &origins)
	return origins, err
}
