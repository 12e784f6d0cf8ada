package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voice-forms-go/internal/app"
)

var (
	replayForm  int64
	replayLimit int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run enrichment for answers stuck in the received state",
	Long: `Replay finds answers of a form that were stored but never enriched,
for example because the queue was full or the server stopped, and runs
them through the pipeline again. Recordings stored when the queue was full
are transcribed from the blob store; other answers are analyzed from their
response text. Run it while the API server is stopped so no answer is
processed twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayForm <= 0 {
			return fmt.Errorf("--form is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Service.Replay(ctx, replayForm, replayLimit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replaying %d answers for form %d\n", n, replayForm)
			return nil
		})
	},
}

func init() {
	replayCmd.Flags().Int64Var(&replayForm, "form", 0, "Form ID")
	replayCmd.Flags().IntVar(&replayLimit, "limit", 0, "Maximum answers to replay (0 = all)")
}
