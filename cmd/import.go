package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matref/property-cli/internal/importer"
)

var (
	importOut   string
	importSheet string
)

var importCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import a materials workbook into the discovery data directory",
	Long:  "Converts workbook rows (material, category, property, value, unit, min, max, confidence) into the per-material JSON exports the discovery stage scans.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := importOut
		if outDir == "" {
			outDir = cfg.Discovery.DataDir
		}

		report, err := importer.ImportWorkbook(cmd.Context(), args[0], outDir, importer.Options{
			SheetName: importSheet,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d materials (%d properties) into %s\n", report.Materials, report.Properties, outDir)
		if len(report.SkippedRows) > 0 {
			fmt.Printf("Skipped %d rows:\n", len(report.SkippedRows))
			for _, row := range report.SkippedRows {
				fmt.Println("  " + row)
			}
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importOut, "out", "", "output directory (default: discovery data dir)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default: first sheet)")
	rootCmd.AddCommand(importCmd)
}
