// Package discovery scans the per-material property exports and the
// category rule source, builds the property inventory and the prioritized
// processing queue, and creates the run's initial record set.
package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/config"
	"github.com/matref/property-cli/internal/model"
)

// Run executes the full discovery stage: scan, inventory, queue, gap
// analysis, recommendations, and the initial record set. The record set's
// membership is fixed after this point; later stages only mutate records
// in place.
func Run(ctx context.Context, cfg config.DiscoveryConfig, filter []string, workers int) (*Result, error) {
	acc, err := ScanMaterials(ctx, cfg.DataDir, filter, workers)
	if err != nil {
		return nil, err
	}

	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	inventory := BuildInventory(acc, rules)
	gaps := AnalyzeGaps(acc, rules)

	result := &Result{
		Inventory:       inventory,
		Queue:           BuildQueue(acc, inventory),
		Gaps:            gaps,
		Recommendations: Recommend(acc, inventory, gaps),
		FilesProcessed:  acc.FilesProcessed,
		Errors:          acc.Errors,
		Records:         buildRecords(acc),
	}

	zap.L().Info("discovery: complete",
		zap.Int("properties", len(inventory)),
		zap.Int("queue_entries", len(result.Queue)),
		zap.Int("records", len(result.Records)),
		zap.Int("flagged_categories", len(gaps.CategoriesMissingRanges)),
	)

	return result, nil
}

// BuildInventory computes per-property statistics and priority scores
// from the merged accumulator.
func BuildInventory(acc *Accumulator, rules *RuleSet) map[string]PropertyStats {
	inventory := make(map[string]PropertyStats, len(acc.Usage))
	for _, prop := range sortedKeys(acc.Usage) {
		usage := acc.Usage[prop]
		materialCov := len(acc.Materials[prop])
		categoryCov := len(acc.Categories[prop])

		coverageRate := 0.0
		if acc.TotalMaterials > 0 {
			coverageRate = float64(usage) / float64(acc.TotalMaterials)
		}

		var types []ValueType
		hasNumeric := false
		for _, vt := range []ValueType{ValueNumeric, ValueText, ValueBool, ValueList, ValueStructured} {
			if _, ok := acc.ValueTypes[prop][vt]; ok {
				types = append(types, vt)
				if vt == ValueNumeric {
					hasNumeric = true
				}
			}
		}

		inventory[prop] = PropertyStats{
			Name:             prop,
			UsageCount:       usage,
			MaterialCoverage: materialCov,
			CategoryCoverage: categoryCov,
			CoverageRate:     coverageRate,
			HasDefinition:    rules.HasDefinition(prop),
			ValueTypes:       types,
			IsCritical:       IsCritical(prop),
			PriorityScore:    PriorityScore(usage, materialCov, categoryCov, prop, hasNumeric),
		}
	}
	return inventory
}

// buildRecords creates one PropertyRecord per observed (material, property)
// pair. Observations were sorted after the scan, so record order is
// deterministic.
func buildRecords(acc *Accumulator) []model.PropertyRecord {
	records := make([]model.PropertyRecord, 0, len(acc.Observations))
	for _, obs := range acc.Observations {
		rec := model.PropertyRecord{
			MaterialName:     obs.Material,
			Category:         obs.Category,
			PropertyName:     obs.Property,
			OriginalValue:    obs.Value,
			ConfidenceScore:  obs.Confidence,
			ValidationStatus: model.StatusPending,
		}
		rec.AddSources(obs.Source)
		records = append(records, rec)
	}
	return records
}
