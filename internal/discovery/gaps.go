package discovery

import (
	"fmt"
	"sort"
)

const (
	// completenessFlagThreshold marks categories whose rule coverage is
	// low enough to surface in the gap analysis.
	completenessFlagThreshold = 0.8

	// completenessRecommendThreshold is the stricter bar below which a
	// category earns an advisory recommendation.
	completenessRecommendThreshold = 0.5
)

// AnalyzeGaps compares observed data against the rule source: properties
// used but never defined, definitions never seen in data, and per-category
// rule completeness.
func AnalyzeGaps(acc *Accumulator, rules *RuleSet) GapAnalysis {
	gaps := GapAnalysis{
		CategoryCompleteness: make(map[string]float64),
	}

	for _, prop := range sortedKeys(acc.Usage) {
		if !rules.HasDefinition(prop) {
			gaps.UndefinedObserved = append(gaps.UndefinedObserved, prop)
		}
	}
	for prop := range rules.Properties {
		if _, observed := acc.Usage[prop]; !observed {
			gaps.DefinedUnobserved = append(gaps.DefinedUnobserved, prop)
		}
	}
	sort.Strings(gaps.DefinedUnobserved)

	// Per-category completeness: share of the category's used properties
	// that carry a defined range.
	usedByCategory := make(map[string]map[string]struct{})
	for prop, cats := range acc.Categories {
		for cat := range cats {
			if usedByCategory[cat] == nil {
				usedByCategory[cat] = make(map[string]struct{})
			}
			usedByCategory[cat][prop] = struct{}{}
		}
	}

	for _, cat := range sortedKeys(usedByCategory) {
		used := usedByCategory[cat]
		defined := 0
		for prop := range used {
			if _, ok := rules.RangeFor(cat, prop); ok {
				defined++
			}
		}
		completeness := float64(defined) / float64(len(used))
		gaps.CategoryCompleteness[cat] = completeness
		if completeness < completenessFlagThreshold {
			gaps.CategoriesMissingRanges = append(gaps.CategoriesMissingRanges, cat)
		}
	}

	return gaps
}

// Recommend emits advisory findings. Nothing in the pipeline acts on
// these; they are persisted with the stage results for review.
func Recommend(acc *Accumulator, inventory map[string]PropertyStats, gaps GapAnalysis) []Recommendation {
	var recs []Recommendation

	for _, prop := range gaps.UndefinedObserved {
		if acc.Usage[prop] > 10 {
			recs = append(recs, Recommendation{
				Kind:    "define_property",
				Subject: prop,
				Message: fmt.Sprintf("property %q is used %d times but has no formal definition", prop, acc.Usage[prop]),
			})
		}
	}

	for _, cat := range sortedKeys(gaps.CategoryCompleteness) {
		if gaps.CategoryCompleteness[cat] < completenessRecommendThreshold {
			recs = append(recs, Recommendation{
				Kind:    "define_ranges",
				Subject: cat,
				Message: fmt.Sprintf("category %q defines ranges for only %.0f%% of its used properties", cat, gaps.CategoryCompleteness[cat]*100),
			})
		}
	}

	for _, prop := range sortedKeys(acc.ValueTypes) {
		types := acc.ValueTypes[prop]
		_, hasText := types[ValueText]
		_, hasNumeric := types[ValueNumeric]
		if hasText && hasNumeric {
			recs = append(recs, Recommendation{
				Kind:    "mixed_value_types",
				Subject: prop,
				Message: fmt.Sprintf("property %q mixes textual and numeric values across materials", prop),
			})
		}
	}

	for _, prop := range sortedKeys(acc.Usage) {
		stats := inventory[prop]
		if stats.CoverageRate < 0.1 && stats.UsageCount > 1 {
			recs = append(recs, Recommendation{
				Kind:    "low_coverage",
				Subject: prop,
				Message: fmt.Sprintf("property %q appears in only %.1f%% of materials", prop, stats.CoverageRate*100),
			})
		}
	}

	return recs
}
