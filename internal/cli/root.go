// Package cli provides the command-line interface for analyst.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/raphaelgruber/analyst-go/internal/auth"
	"github.com/raphaelgruber/analyst-go/internal/client"
	"github.com/raphaelgruber/analyst-go/internal/config"
	"github.com/raphaelgruber/analyst-go/internal/guard"
	"github.com/raphaelgruber/analyst-go/internal/metrics"
	"github.com/raphaelgruber/analyst-go/internal/storage"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// accessAnnotation marks which guard policy applies to a command.
const accessAnnotation = "access"

const (
	accessPublic    = "public"    // signed-out users only
	accessProtected = "protected" // signed-in users only
	accessAny       = "any"
)

// app holds what a single command invocation needs. It is built in
// PersistentPreRunE and torn down by close.
type app struct {
	verbose   bool
	ephemeral bool

	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	store      storage.Store
	auth       *auth.Facade
	client     *client.Client
	stats      *metrics.Collector

	// redirect is set when a public-only command runs while signed in.
	redirect guard.View

	in *bufio.Reader
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "analyst",
		Short: "Chat with the data-analysis backend",
		Long: `Analyst is a terminal client for the multi-agent data-analysis backend.

Upload a CSV, Excel or text file, ask questions about it, and download the
charts, PDF reports, slide decks and dashboards the backend generates.

Sign up or log in first; your session is kept in the local data directory.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&a.ephemeral, "ephemeral", false, "keep session and accounts in memory for this run only")

	root.AddCommand(newSignupCmd(a))
	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newLogoutCmd(a))
	root.AddCommand(newWhoamiCmd(a))
	root.AddCommand(newAskCmd(a))
	root.AddCommand(newChatCmd(a))
	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newRouteCmd(a))

	return root
}

// setup loads config, opens storage and applies the command's access policy.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	// Skip for help and completion commands
	if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
		return nil
	}

	a.cfg = config.Load()
	if a.ephemeral {
		a.cfg.Store = config.StoreMemory
	}

	stderrLevel := slog.LevelWarn
	if a.verbose {
		stderrLevel = slog.LevelDebug
	}
	a.logger, a.logCleanup = config.SetupLogger(a.cfg.LogFile, a.cfg.LogLevel, stderrLevel)
	slog.SetDefault(a.logger)

	ctx := cmd.Context()
	store, err := storage.Open(ctx, storage.Options{
		Backend: a.cfg.Store,
		DataDir: a.cfg.DataDir,
		Surreal: storage.SurrealConfig{
			URL:       a.cfg.SurrealDBURL,
			Namespace: a.cfg.SurrealDBNamespace,
			Database:  a.cfg.SurrealDBDatabase,
			Username:  a.cfg.SurrealDBUser,
			Password:  a.cfg.SurrealDBPass,
			AuthLevel: a.cfg.SurrealDBAuthLevel,
		},
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	a.auth = auth.New(ctx, store, a.logger)
	a.stats = metrics.NewCollector()
	a.client = client.New(a.cfg.ServerURL, a.cfg.ClientTimeout,
		client.WithMetrics(a.stats),
		client.WithLogger(a.logger),
	)

	return a.authorize(cmd)
}

// authorize evaluates the guard policy named by the command's annotation.
func (a *app) authorize(cmd *cobra.Command) error {
	signedIn := a.auth.IsAuthenticated()

	switch cmd.Annotations[accessAnnotation] {
	case accessProtected:
		if d := guard.Protected(signedIn); !d.Render {
			return fmt.Errorf("%w: run 'analyst %s' first", guard.ErrSignInRequired, d.Redirect)
		}
	case accessPublic:
		if d := guard.Public(signedIn); !d.Render {
			a.redirect = d.Redirect
		}
	}
	return nil
}

// close releases storage and the log file. Safe to call after a failed setup.
func (a *app) close(w io.Writer) {
	if a.verbose && a.stats != nil {
		if snap := a.stats.Snapshot(); snap.Requests() > 0 {
			printStats(w, snap)
		}
	}
	if a.store != nil {
		if err := a.store.Close(context.Background()); err != nil {
			fmt.Fprintf(w, "Warning: failed to close storage: %v\n", err)
		}
	}
	if a.logCleanup != nil {
		_ = a.logCleanup()
	}
}

// input returns a line reader over the command's stdin, shared by all
// prompts of one invocation.
func (a *app) input(cmd *cobra.Command) *bufio.Reader {
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	return a.in
}

// Execute runs the root command with interrupt-driven cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	defer a.close(os.Stderr)

	return newRootCmd(a).ExecuteContext(ctx)
}

func printStats(w io.Writer, s metrics.Snapshot) {
	fmt.Fprintf(w, "\nBackend requests: %d\n", s.Requests())
	for _, op := range []struct {
		name string
		snap *metrics.OperationSnapshot
	}{
		{"analyze", s.Analyze},
		{"analyze+upload", s.AnalyzeUpload},
		{"download", s.Download},
	} {
		if op.snap == nil {
			continue
		}
		fmt.Fprintf(w, "  %-15s %d calls, %d failed, avg %.0fms, %d bytes\n",
			op.name, op.snap.Count, op.snap.Failures, op.snap.AvgTimeMs, op.snap.TotalBytes)
	}
}
