package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/research"
)

// runResearch executes stage 3: look up external findings for records
// whose confidence is not already high enough to skip. Findings can only
// raise a record's confidence, never lower it.
func (p *Pipeline) runResearch(ctx context.Context, state *RunState) (map[string]any, error) {
	var enriched, skipped, notFound, failed atomic.Int64

	timeout := time.Duration(p.cfg.Research.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i := range state.Records {
		rec := &state.Records[i]
		g.Go(func() error {
			// A skipped record keeps its history untouched: only stages
			// that actually process a record may append to it.
			if rec.ConfidenceScore > p.cfg.Research.SkipConfidence {
				skipped.Add(1)
				return nil
			}

			lookupCtx, cancel := context.WithTimeout(gCtx, timeout)
			defer cancel()

			finding, err := p.researcher.Research(lookupCtx, rec.MaterialName, rec.Category, rec.PropertyName)
			switch {
			case errors.Is(err, research.ErrNotFound):
				rec.AppendEvent(3, model.EventResearch, "no_finding", nil)
				notFound.Add(1)
			case err != nil:
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				rec.AppendEvent(3, model.EventError, "research_failed", map[string]any{
					"error": err.Error(),
				})
				failed.Add(1)
			default:
				rec.ResearchedValue = finding.Value
				rec.RaiseConfidence(finding.Confidence)
				rec.AddSources(finding.Sources...)
				rec.AppendEvent(3, model.EventResearch, "enriched", map[string]any{
					"confidence": finding.Confidence,
					"sources":    len(finding.Sources),
				})
				enriched.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[string]any{
		"enriched":  enriched.Load(),
		"skipped":   skipped.Load(),
		"not_found": notFound.Load(),
		"failed":    failed.Load(),
	}, nil
}
