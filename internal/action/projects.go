package action

import "context"

// FetchProject loads the build project of origin/name.
func (e *Effects) FetchProject(origin, name, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		p, err := e.api.GetProject(ctx, token, origin, name)
		return d.Dispatch(ctx, NewPopulateProject(p, err))
	}
}

// FetchProjects loads the build projects of origin.
func (e *Effects) FetchProjects(origin, token string) Thunk {
	return func(ctx context.Context, d Dispatcher) error {
		projects, err := e.api.ListProjects(ctx, token, origin)
		return d.Dispatch(ctx, NewPopulateProjects(projects, err))
	}
}
