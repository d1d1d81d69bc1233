package discovery

import "sort"

// BuildQueue produces one entry per (property, category) combination
// actually observed, ordered for processing. Each entry carries only the
// materials observed for that property within its own category. The sort
// is total and deterministic: descending by (is_critical, priority_score,
// usage_count, coverage_rate), with (property, category) as the final
// tie-break. Critical entries always precede non-critical ones regardless
// of score.
func BuildQueue(acc *Accumulator, inventory map[string]PropertyStats) []QueueEntry {
	// property -> category -> material set
	members := make(map[string]map[string]map[string]struct{})
	for _, obs := range acc.Observations {
		if members[obs.Property] == nil {
			members[obs.Property] = make(map[string]map[string]struct{})
		}
		if members[obs.Property][obs.Category] == nil {
			members[obs.Property][obs.Category] = make(map[string]struct{})
		}
		members[obs.Property][obs.Category][obs.Material] = struct{}{}
	}

	var queue []QueueEntry
	for _, prop := range sortedKeys(acc.Categories) {
		stats := inventory[prop]
		for _, cat := range sortedKeys(acc.Categories[prop]) {
			queue = append(queue, QueueEntry{
				Property:      prop,
				Category:      cat,
				IsCritical:    stats.IsCritical,
				PriorityScore: stats.PriorityScore,
				UsageCount:    stats.UsageCount,
				CoverageRate:  stats.CoverageRate,
				HasDefinition: stats.HasDefinition,
				Materials:     sortedKeys(members[prop][cat]),
			})
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.IsCritical != b.IsCritical {
			return a.IsCritical
		}
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		if a.CoverageRate != b.CoverageRate {
			return a.CoverageRate > b.CoverageRate
		}
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		return a.Category < b.Category
	})

	return queue
}
