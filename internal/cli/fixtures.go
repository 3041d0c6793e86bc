package cli

import (
	"github.com/narvanalabs/builder-web/internal/fixtures"
	"github.com/spf13/cobra"
)

// NewFixturesCommand creates the fixtures command.
func NewFixturesCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Run an in-memory Builder API for local development",
		Long: `Serve an in-memory stand-in for the Builder API. Any name can sign in
through /authenticate/{name}; data is lost on exit.

Example:
  builder-web fixtures --port 9636 &
  BUILDER_API_URL=http://localhost:9636 builder-web serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Fixtures.Port = port
			}
			if err := cfg.ValidateFixtures(); err != nil {
				return err
			}

			fx := fixtures.New(
				fixtures.WithSecret(cfg.Fixtures.Secret),
				fixtures.WithTokenExpiry(cfg.Fixtures.TokenExpiry),
				fixtures.WithPageSize(cfg.Fixtures.PageSize),
				fixtures.WithLogger(log.WithComponent("fixtures").Logger),
			)
			return serve(cmd.Context(), log, cfg.ShutdownTimeout, newHTTPServer(cfg.Fixtures.Addr(), fx))
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 9636, "listen port")
	return cmd
}
