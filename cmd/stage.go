package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/matref/property-cli/internal/pipeline"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Inspect pipeline stages",
}

var stageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the pipeline stages in execution order",
	Run: func(cmd *cobra.Command, _ []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Stage"})
		for n := 1; n <= pipeline.StageCount; n++ {
			t.AppendRow(table.Row{n, pipeline.StageName(n)})
		}
		t.Render()
	},
}

var stageResultsCmd = &cobra.Command{
	Use:   "results <run-id>",
	Short: "Show per-stage results for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListStageResults(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "stage results")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Stage", "Status", "Duration (ms)", "Error"})
		for _, sr := range results {
			t.AppendRow(table.Row{sr.Stage, sr.Name, sr.Status, sr.Duration, sr.Error})
		}
		t.Render()
		return nil
	},
}

func init() {
	stageCmd.AddCommand(stageListCmd)
	stageCmd.AddCommand(stageResultsCmd)
	rootCmd.AddCommand(stageCmd)
}
