package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/analyst-go/internal/client"
	"github.com/raphaelgruber/analyst-go/internal/router"
	"github.com/spf13/cobra"
)

func newDownloadCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <filename|url>",
		Short: "Download a generated artifact",
		Long: `Download a report, slide deck, dashboard or chart generated by the backend.

Accepts either the bare filename or the full download URL printed by
'analyst ask'.

Examples:
  analyst download report_20250101.pdf
  analyst download http://localhost:8000/download/dashboard.html -o dash.html`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{accessAnnotation: accessProtected},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := client.ArtifactFilename(args[0])
			if name == "" {
				return fmt.Errorf("no filename in %q", args[0])
			}

			data, err := a.client.DownloadReport(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("download %s: %w", name, err)
			}

			dest := output
			if dest == "" {
				dest = name
			}
			if dir := filepath.Dir(dest); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", dest, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: the artifact filename)")
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <prompt>",
		Short: "Preview which agent auto mode would pick",
		Long: `Show which agent the backend's auto mode is expected to choose for a
prompt, and which keywords decided it.

Examples:
  analyst route "Make slides summarizing Q3"
  analyst route "Plot a histogram of order values"`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{accessAnnotation: accessAny},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), router.Explain(args[0]))
			return nil
		},
	}
}
