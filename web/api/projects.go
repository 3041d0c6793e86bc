package api

import (
	"context"
	"net/http"

	"github.com/narvanalabs/builder-web/internal/state"
)

// GetProject fetches the project of origin/name.
func (c *Client) GetProject(ctx context.Context, token, origin, name string) (*state.Project, error) {
	var p state.Project
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/projects" + pathEscape(origin, name),
		token:  token,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects lists the projects of an origin.
func (c *Client) ListProjects(ctx context.Context, token, origin string) ([]state.Project, error) {
	var projects []state.Project
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/projects" + pathEscape(origin),
		token:  token,
	}, &projects)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []state.Project{}
	}
	return projects, nil
}
