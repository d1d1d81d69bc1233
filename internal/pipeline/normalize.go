package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/matref/property-cli/internal/model"
)

// runStandardize executes stage 2: normalize every record's value and
// unit naming. Per-record failures are recorded on the record and do not
// abort the stage.
func (p *Pipeline) runStandardize(ctx context.Context, state *RunState) (map[string]any, error) {
	var standardized, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i := range state.Records {
		rec := &state.Records[i]
		g.Go(func() error {
			value, details, err := p.standardizer.Standardize(gCtx, rec)
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				rec.AppendEvent(2, model.EventError, "standardize_failed", map[string]any{
					"error": err.Error(),
				})
				failed.Add(1)
				return nil
			}
			rec.StandardizedValue = value
			rec.AppendEvent(2, model.EventStandardize, "normalized", details)
			standardized.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[string]any{
		"standardized": standardized.Load(),
		"failed":       failed.Load(),
	}, nil
}

func (p *Pipeline) workers() int {
	if p.cfg.Pipeline.Workers > 0 {
		return p.cfg.Pipeline.Workers
	}
	return 4
}
