package shutdown

import (
	"context"
	"errors"
	"net/http"
)

type funcComponent struct {
	name string
	stop func(ctx context.Context) error
}

func (c funcComponent) Name() string                       { return c.name }
func (c funcComponent) Shutdown(ctx context.Context) error { return c.stop(ctx) }

// NewFuncComponent registers stop under name.
func NewFuncComponent(name string, stop func(ctx context.Context) error) Component {
	return funcComponent{name: name, stop: stop}
}

// NewHTTPServerComponent stops srv from accepting connections and waits for
// in-flight requests. Connections still open at the deadline are closed.
func NewHTTPServerComponent(name string, srv *http.Server) Component {
	return NewFuncComponent(name, func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			_ = srv.Close()
		}
		return err
	})
}
