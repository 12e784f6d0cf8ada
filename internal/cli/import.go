package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voice-forms-go/internal/app"
	"voice-forms-go/internal/dataset"
	"voice-forms-go/internal/processor"
)

var (
	importForm    int64
	importOwner   int64
	importSession int64
	importFile    string
	importFinal   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load text answers from an Excel workbook and enrich them",
	Long: `Import reads one answer per row from the first sheet of --xlsx and
submits them to a response session. Without --session a new session is
opened for --form and --owner. With --final the last row completes the
session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" {
			return fmt.Errorf("--xlsx is required")
		}
		if importSession <= 0 && (importForm <= 0 || importOwner <= 0) {
			return fmt.Errorf("either --session or both --form and --owner are required")
		}
		rows, err := dataset.Load(importFile)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sessionID := importSession
			if sessionID <= 0 {
				sess, err := a.Service.StartSession(ctx, importForm, importOwner)
				if err != nil {
					return err
				}
				sessionID = sess.ID
			}

			for i, r := range rows {
				_, err := a.Service.ImportAnswer(ctx, processor.SubmitRequest{
					SessionID:      sessionID,
					QuestionID:     r.QuestionID,
					QuestionNumber: r.QuestionNumber,
					ResponseText:   r.Text,
					ResponseTime:   r.ResponseTime,
					IsFinalAnswer:  importFinal && i == len(rows)-1,
				})
				if err != nil {
					return fmt.Errorf("row %d: %w", i+2, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d answers into session %d\n", len(rows), sessionID)
			return nil
		})
	},
}

func init() {
	importCmd.Flags().Int64Var(&importForm, "form", 0, "Form ID for a new session")
	importCmd.Flags().Int64Var(&importOwner, "owner", 0, "Form owner ID for a new session")
	importCmd.Flags().Int64Var(&importSession, "session", 0, "Existing response session ID")
	importCmd.Flags().StringVar(&importFile, "xlsx", "", "Workbook to read")
	importCmd.Flags().BoolVar(&importFinal, "final", false, "Complete the session with the last row")
}
