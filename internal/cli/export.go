package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voice-forms-go/internal/app"
	"voice-forms-go/internal/dataset"
)

var (
	exportForm int64
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a form's category analytics to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportForm <= 0 || exportOut == "" {
			return fmt.Errorf("--form and --out are required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sum, err := a.Service.FormSummary(ctx, exportForm)
			if err != nil {
				return fmt.Errorf("form %d: %w", exportForm, err)
			}
			if err := dataset.Export(exportOut, sum.Summary, sum.Action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d categories to %s\n", sum.TotalCategories, exportOut)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportForm, "form", 0, "Form ID")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output .xlsx path")
}
