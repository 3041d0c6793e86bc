package cli

import (
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/shutdown"
	"github.com/narvanalabs/builder-web/web/api"
	"github.com/narvanalabs/builder-web/web/health"
	"github.com/narvanalabs/builder-web/web/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve browser sessions",
		Long: `Start the view host. Each browser gets its own state store; views read
snapshots from /state or /state/ws and dispatch work with POST /actions/{name}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}

			client := api.NewClient(cfg.BuilderAPIURL, api.WithUserAgent("builder-web/"+health.Version))

			sessions := server.NewManager(client,
				server.WithLogger(log.WithComponent("sessions").Logger),
				server.WithIdleTimeout(cfg.Server.SessionIdleTimeout),
				server.WithEffectsOptions(action.WithDelays(delays(cfg))),
			)
			go sessions.Run(cmd.Context())

			checker := health.NewChecker(health.Version)
			checker.Register("builder_api", health.Ping(client.Status))
			checker.Register("sessions", sessions.Check)

			srv := server.New(sessions, checker, log.WithComponent("server").Logger)

			log.Info("starting builder-web", "builder_api", cfg.BuilderAPIURL)
			return serve(cmd.Context(), log, cfg.ShutdownTimeout,
				newHTTPServer(cfg.Server.Addr(), srv),
				shutdown.NewFuncComponent("sessions", sessions.Shutdown),
			)
		},
	}
}
