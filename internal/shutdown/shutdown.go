// Package shutdown coordinates graceful shutdown of the builder-web processes.
// It waits for SIGTERM/SIGINT or a cancelled context, then stops registered
// components in reverse registration order within a shared deadline.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout is the default graceful shutdown timeout.
const DefaultTimeout = 30 * time.Second

// Component represents a component that can be gracefully shut down.
type Component interface {
	// Name returns the component name for logging.
	Name() string
	// Shutdown stops the component. It should return within the context deadline.
	Shutdown(ctx context.Context) error
}

// Coordinator manages graceful shutdown of multiple components.
type Coordinator struct {
	components []Component
	timeout    time.Duration
	logger     *slog.Logger
	mu         sync.Mutex

	// signalCh replaces OS signal delivery in tests.
	signalCh chan os.Signal

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	err          error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the shutdown timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithSignalChannel sets a custom signal channel (for testing).
func WithSignalChannel(ch chan os.Signal) Option {
	return func(c *Coordinator) {
		c.signalCh = ch
	}
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		timeout:      DefaultTimeout,
		logger:       slog.Default(),
		shutdownDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register adds a component to be shut down. Components registered later
// are stopped first.
func (c *Coordinator) Register(component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
	c.logger.Debug("registered shutdown component", "name", component.Name())
}

// Run blocks until ctx is done or a termination signal arrives, then shuts
// everything down and returns the combined shutdown error.
func (c *Coordinator) Run(ctx context.Context) error {
	sigCh := c.signalCh
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	select {
	case sig := <-sigCh:
		c.logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		c.logger.Info("context done, shutting down")
	}

	return c.Shutdown()
}

// Shutdown stops every registered component once. Later calls wait for the
// first to finish and return its result.
func (c *Coordinator) Shutdown() error {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDone)
		c.logger.Info("initiating graceful shutdown", "timeout", c.timeout)

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		c.mu.Lock()
		components := make([]Component, len(c.components))
		copy(components, c.components)
		c.mu.Unlock()

		var errs []error
		for i := len(components) - 1; i >= 0; i-- {
			comp := components[i]
			if ctx.Err() != nil {
				errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), ctx.Err()))
				continue
			}
			c.logger.Info("shutting down component", "name", comp.Name())
			if err := comp.Shutdown(ctx); err != nil {
				c.logger.Error("component shutdown error", "name", comp.Name(), "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), err))
				continue
			}
			c.logger.Info("component shutdown complete", "name", comp.Name())
		}

		c.err = errors.Join(errs...)
		if c.err != nil {
			c.logger.Warn("shutdown finished with errors", "error", c.err)
		} else {
			c.logger.Info("all components shut down successfully")
		}
	})

	<-c.shutdownDone
	return c.err
}
