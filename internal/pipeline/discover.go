package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/matref/property-cli/internal/discovery"
)

// runDiscovery executes stage 1: scan the property exports, build the
// inventory and queue, and create the run's record set.
func (p *Pipeline) runDiscovery(ctx context.Context, state *RunState) (map[string]any, error) {
	res, err := discovery.Run(ctx, p.cfg.Discovery, state.Filter, p.cfg.Pipeline.Workers)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return map[string]any{
			"files_processed": res.FilesProcessed,
			"scan_errors":     len(res.Errors),
		}, eris.New("discovery: no property records found")
	}

	state.Discovery = res
	state.Records = res.Records

	p.writeArtifact("discovery_report.json", res)

	return map[string]any{
		"files_processed":    res.FilesProcessed,
		"total_properties":   len(res.Inventory),
		"records":            len(res.Records),
		"queue_entries":      len(res.Queue),
		"recommendations":    len(res.Recommendations),
		"flagged_categories": len(res.Gaps.CategoriesMissingRanges),
		"scan_errors":        len(res.Errors),
	}, nil
}
