// Package importer converts a materials workbook into the per-material
// JSON exports the discovery stage scans. One workbook row is one
// (material, property) observation.
package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/standardize"
)

// Options configures the workbook import.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Report summarizes one import.
type Report struct {
	Materials   int      `json:"materials"`
	Properties  int      `json:"properties"`
	SkippedRows []string `json:"skipped_rows,omitempty"`
}

// expected column headers, matched case-insensitively.
const (
	colMaterial   = "material"
	colCategory   = "category"
	colProperty   = "property"
	colValue      = "value"
	colUnit       = "unit"
	colMin        = "min"
	colMax        = "max"
	colConfidence = "confidence"
)

type materialExport struct {
	Material   string         `json:"material"`
	Category   string         `json:"category"`
	Properties map[string]any `json:"properties"`
}

// ImportWorkbook reads the workbook and writes one JSON export per
// material into outDir. Rows missing a material or property name are
// skipped and reported, not fatal.
func ImportWorkbook(ctx context.Context, path, outDir string, opts Options) (*Report, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open workbook")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("importer: workbook is empty")
	}

	cols, err := headerIndex(sheet.Rows[0])
	if err != nil {
		return nil, err
	}

	report := &Report{}
	exports := make(map[string]*materialExport)

	for i, row := range sheet.Rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "importer: context")
		}

		material := cellValue(row, cols[colMaterial])
		property := standardize.NormalizeName(cellValue(row, cols[colProperty]))
		if material == "" || property == "" {
			report.SkippedRows = append(report.SkippedRows, "row "+strconv.Itoa(i+2)+": missing material or property")
			continue
		}

		export, ok := exports[material]
		if !ok {
			export = &materialExport{
				Material:   material,
				Category:   cellValue(row, cols[colCategory]),
				Properties: make(map[string]any),
			}
			exports[material] = export
		}

		export.Properties[property] = buildProperty(row, cols)
		report.Properties++
	}
	report.Materials = len(exports)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "importer: create output dir")
	}
	for material, export := range exports {
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return nil, eris.Wrapf(err, "importer: marshal %s", material)
		}
		name := standardize.NormalizeName(material) + ".json"
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
			return nil, eris.Wrapf(err, "importer: write %s", name)
		}
	}

	zap.L().Info("importer: workbook imported",
		zap.String("workbook", path),
		zap.Int("materials", report.Materials),
		zap.Int("properties", report.Properties),
		zap.Int("skipped_rows", len(report.SkippedRows)),
	)
	return report, nil
}

// buildProperty assembles the structured property entry for one row.
// Numeric fields that fail to parse are left out rather than failing the
// row.
func buildProperty(row *xlsx.Row, cols map[string]int) map[string]any {
	prop := make(map[string]any)

	rawValue := cellValue(row, cols[colValue])
	if num, err := strconv.ParseFloat(rawValue, 64); err == nil {
		prop["value"] = num
	} else {
		prop["value"] = rawValue
	}
	if unit := cellValue(row, cols[colUnit]); unit != "" {
		prop["unit"] = unit
	}
	for _, col := range []string{colMin, colMax, colConfidence} {
		if raw := cellValue(row, cols[col]); raw != "" {
			if num, err := strconv.ParseFloat(raw, 64); err == nil {
				prop[col] = num
			}
		}
	}
	return prop
}

func headerIndex(header *xlsx.Row) (map[string]int, error) {
	cols := map[string]int{
		colMaterial: -1, colCategory: -1, colProperty: -1, colValue: -1,
		colUnit: -1, colMin: -1, colMax: -1, colConfidence: -1,
	}
	for i, cell := range header.Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if _, known := cols[name]; known {
			cols[name] = i
		}
	}
	for _, required := range []string{colMaterial, colProperty, colValue} {
		if cols[required] < 0 {
			return nil, eris.Errorf("importer: workbook is missing required column %q", required)
		}
	}
	return cols, nil
}

func cellValue(row *xlsx.Row, idx int) string {
	if idx < 0 || idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx].String())
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("importer: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
