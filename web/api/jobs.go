package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/narvanalabs/builder-web/internal/state"
)

// BuildList is the ranged response of the project jobs listing.
type BuildList struct {
	RangeStart int           `json:"range_start"`
	RangeEnd   int           `json:"range_end"`
	TotalCount int           `json:"total_count"`
	Data       []state.Build `json:"data"`
}

// ScheduleJob schedules a build of origin/name (POST /depot/pkgs/schedule/:origin/:name).
func (c *Client) ScheduleJob(ctx context.Context, token, origin, name string) (*state.JobGroup, error) {
	var group state.JobGroup
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/depot/pkgs/schedule" + pathEscape(origin, name),
		token:  token,
		accept: []int{http.StatusOK, http.StatusCreated},
	}, &group)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetJobGroup fetches a scheduled job group.
func (c *Client) GetJobGroup(ctx context.Context, token, id string) (*state.JobGroup, error) {
	var group state.JobGroup
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/depot/pkgs/schedule" + pathEscape(id),
		token:  token,
	}, &group)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ListBuilds lists the build jobs of a project.
func (c *Client) ListBuilds(ctx context.Context, token, origin, name string) ([]state.Build, error) {
	var list BuildList
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/projects" + pathEscape(origin, name, "jobs"),
		token:  token,
	}, &list)
	if err != nil {
		return nil, err
	}
	if list.Data == nil {
		return []state.Build{}, nil
	}
	return list.Data, nil
}

// GetBuild fetches a single build job.
func (c *Client) GetBuild(ctx context.Context, token, id string) (*state.Build, error) {
	var b state.Build
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/jobs" + pathEscape(id), token: token}, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBuildLog fetches the page of a job log beginning at line start.
func (c *Client) GetBuildLog(ctx context.Context, token, id string, start int) (*state.LogPage, error) {
	var page state.LogPage
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/jobs" + pathEscape(id, "log"),
		token:  token,
		query:  url.Values{"start": {strconv.Itoa(start)}},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}
