package cli

import (
	"fmt"

	"github.com/raphaelgruber/analyst-go/internal/client"
	"github.com/raphaelgruber/analyst-go/internal/conversation"
	"github.com/raphaelgruber/analyst-go/internal/router"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		file    string
		agent   string
		saveDir string
	)

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt to the analysis backend",
		Long: `Send a single prompt and print the answer.

With --file the data file is uploaded together with the prompt. Without it
the backend answers from the data of an earlier upload.

The agent defaults to auto, which lets the backend pick one from the prompt.
Use --save-dir to download generated charts and documents.

Examples:
  analyst ask "Summarize this data" --file sales.csv
  analyst ask "Plot revenue by region"
  analyst ask "Create a PDF report" --agent pdf --save-dir ./out`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{accessAnnotation: accessProtected},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := client.ParseAgentKind(agent)
			if err != nil {
				return err
			}

			ctrl := conversation.New(a.logger)
			if file != "" {
				upload, err := client.NewUpload(file)
				if err != nil {
					return err
				}
				ctrl.Stage(upload)
			}

			if a.verbose && kind == client.AgentAuto {
				predicted, confidence := router.Detect(args[0])
				fmt.Fprintf(cmd.ErrOrStderr(), "Routing: %s (%.0f%%)\n", predicted.Label(), confidence*100)
			}

			msg, err := ctrl.Send(cmd.Context(), a.client, args[0], kind)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), defaultTheme.renderMessage(msg))

			if saveDir == "" {
				return nil
			}
			return saveArtifacts(cmd, a, msg, saveDir)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "data file to upload (.csv, .xlsx, .xls, .txt)")
	cmd.Flags().StringVarP(&agent, "agent", "a", "auto", "agent: auto, data_analysis, pdf, ppt, dashboard")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "download generated artifacts into this directory")
	return cmd
}

// saveArtifacts downloads every chart and document referenced by msg.
// Individual failures are reported and do not stop the rest.
func saveArtifacts(cmd *cobra.Command, a *app, msg conversation.Message, dir string) error {
	var locations []string
	for _, img := range msg.Images {
		locations = append(locations, img.URL)
	}
	if len(msg.Images) == 0 {
		locations = append(locations, msg.ImagePaths...)
	}
	for _, loc := range []string{msg.PDFPath, msg.PPTPath, msg.DashboardPath} {
		if loc != "" {
			locations = append(locations, loc)
		}
	}

	failed := 0
	for _, loc := range locations {
		dest, err := a.client.DownloadArtifact(cmd.Context(), loc, dir)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to download %s: %v\n", loc, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(locations))
	}
	return nil
}
