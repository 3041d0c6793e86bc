// Package cli implements the builder-web command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/shutdown"
	"github.com/narvanalabs/builder-web/pkg/config"
	"github.com/narvanalabs/builder-web/pkg/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	LogFormat  string
}

// NewRootCommand creates the builder-web root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "builder-web",
		Short: "Habitat Builder web state host",
		Long: `builder-web keeps one client state store per browser session and
drives it against the Habitat Builder API.

Configuration is read from an optional YAML file and then from the
environment (BUILDER_API_URL, BUILDER_WEB_PORT, LOG_LEVEL, ...).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "path to a dotenv file applied beneath the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewFixturesCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// load reads configuration, applies flag overrides and builds the logger.
func (o *RootOptions) load(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	if o.EnvFile != "" {
		if err := config.LoadEnvFile(o.EnvFile); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewWriter(cmd.ErrOrStderr(), level, cfg.Log.Format == "json"), nil
}

func delays(cfg *config.Config) action.Delays {
	return action.Delays{
		NotificationDismiss: cfg.Delays.NotificationDismiss,
		LogPoll:             cfg.Delays.LogPoll,
		BuildRefresh:        cfg.Delays.BuildRefresh,
		BuildListRefresh:    cfg.Delays.BuildListRefresh,
	}
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serve runs hs until ctx is done, a signal arrives or listening fails, then
// shuts down hs followed by the extra components in reverse order.
func serve(ctx context.Context, log *logger.Logger, timeout time.Duration, hs *http.Server, extra ...shutdown.Component) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	coord := shutdown.NewCoordinator(shutdown.WithTimeout(timeout), shutdown.WithLogger(log.Logger))
	for _, c := range extra {
		coord.Register(c)
	}
	coord.Register(shutdown.NewHTTPServerComponent("http", hs))

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	shutdownErr := coord.Run(ctx)
	select {
	case err := <-errCh:
		return fmt.Errorf("serving %s: %w", hs.Addr, err)
	default:
	}
	return shutdownErr
}
