package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/pipeline"
)

var (
	runMaterials []string
	runStage     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the validation pipeline",
	Long:  "Runs all seven stages in order, or a single stage with --stage. Stages 2-7 resume from the latest snapshot.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := pipeline.NewDefault(cfg, st)
		if err != nil {
			return err
		}

		result, runErr := p.Run(ctx, pipeline.RunOptions{
			Filter: runMaterials,
			Stage:  runStage,
		})
		if result != nil {
			formatRunResult(result)
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runMaterials, "materials", nil, "restrict the run to the named materials")
	runCmd.Flags().IntVar(&runStage, "stage", 0, "run a single stage (1-7) instead of the full pipeline")
	rootCmd.AddCommand(runCmd)
}

func formatRunResult(result *model.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Stage", "Status", "Duration", "Error"})
	for _, sr := range result.Stages {
		errMsg := sr.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		t.AppendRow(table.Row{sr.Stage, sr.Name, sr.Status, fmt.Sprintf("%dms", sr.Duration), errMsg})
	}
	t.AppendFooter(table.Row{"", "properties", result.TotalProperties, "success", fmt.Sprintf("%.1f%%", result.SuccessRate*100)})
	t.Render()
}
