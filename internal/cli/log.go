package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/cookie"
	"github.com/narvanalabs/builder-web/internal/reducer"
	"github.com/narvanalabs/builder-web/internal/state"
	"github.com/narvanalabs/builder-web/internal/store"
	"github.com/narvanalabs/builder-web/web/api"
	"github.com/narvanalabs/builder-web/web/health"
	"github.com/spf13/cobra"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Token string
	User  string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <build-id>",
		Short: "Follow a build log",
		Long: `Follow a build log through the same store and polling the browser uses,
printing lines as they arrive until the build completes.

Example:
  builder-web log 1000 --token $HAB_AUTH_TOKEN
  builder-web log 1000 --user bobo   # fixtures only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return followLog(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "Builder API token")
	cmd.Flags().StringVar(&opts.User, "user", "", "sign in by name (development API only)")
	cmd.MarkFlagsMutuallyExclusive("token", "user")

	return cmd
}

func followLog(cmd *cobra.Command, opts *LogOptions, id string) error {
	cfg, log, err := opts.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client := api.NewClient(cfg.BuilderAPIURL, api.WithUserAgent("builder-web/"+health.Version))
	effects := action.NewEffects(client,
		action.WithDelays(delays(cfg)),
		action.WithLogger(log.WithComponent("effects").Logger),
	)
	st := store.New(reducer.Root, nil, store.WithLogger(log.WithComponent("store").Logger))

	token := opts.Token
	if opts.User != "" {
		if err := st.Dispatch(ctx, effects.SignIn(opts.User, cookie.NewMemoryJar())); err != nil {
			return err
		}
		s := st.GetState()
		if !s.Session.SignedIn() {
			return fmt.Errorf("signing in as %s: %s", opts.User, lastNotification(s))
		}
		token = s.Session.Token
	}

	done := make(chan struct{})
	var once sync.Once
	p := &logPrinter{out: cmd.OutOrStdout(), buildID: id}
	unsubscribe := st.Subscribe(func(s *state.AppState) {
		if p.print(s) {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	if err := st.Dispatch(ctx, effects.FollowBuildLog(id, token)); err != nil {
		return err
	}

	select {
	case <-done:
		if p.failed != "" {
			return fmt.Errorf("following build %s: %s", id, p.failed)
		}
		b := st.GetState().Builds.Selected
		log.Info("build log complete", "build_id", id, "state", b.State)
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

// logPrinter writes lines appended to the followed build's log. Listeners
// run one at a time so it needs no locking.
type logPrinter struct {
	out     io.Writer
	buildID string
	printed int
	lastErr string
	failed  string
}

// print reports whether following has ended, either because the log is
// complete or because fetching it failed.
func (p *logPrinter) print(s *state.AppState) bool {
	b := s.Builds
	if b.UI.Err != "" && b.UI.Err != p.lastErr {
		fmt.Fprintf(p.out, "! %s\n", b.UI.Err)
	}
	p.lastErr = b.UI.Err

	if !b.Streaming && b.UI.Err != "" && !b.Log.IsComplete {
		p.failed = b.UI.Err
		return true
	}
	if b.Log.BuildID != p.buildID {
		return false
	}
	lines := b.Log.Content
	if len(lines) < p.printed {
		p.printed = 0
	}
	for _, line := range lines[p.printed:] {
		fmt.Fprintln(p.out, line)
	}
	p.printed = len(lines)
	return b.Log.IsComplete
}

func lastNotification(s *state.AppState) string {
	all := s.Notifications.All
	if len(all) == 0 {
		return "no session"
	}
	n := all[len(all)-1]
	if n.Body != "" {
		return n.Body
	}
	return n.Title
}
