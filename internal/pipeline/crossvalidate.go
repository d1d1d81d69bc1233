package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/matref/property-cli/internal/model"
)

// runValidate executes stage 4: reconcile each record's candidate value
// against its sources and category rules and assign a validation status.
// Promotion to a final value is the QA gate's job, not this stage's.
func (p *Pipeline) runValidate(ctx context.Context, state *RunState) (map[string]any, error) {
	var approved, needsReview, rejected, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i := range state.Records {
		rec := &state.Records[i]
		g.Go(func() error {
			value := candidateValue(rec)

			verdict, err := p.validator.Validate(gCtx, rec.MaterialName, rec.Category, rec.PropertyName, value, rec.Sources)
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				rec.AppendEvent(4, model.EventError, "validation_failed", map[string]any{
					"error": err.Error(),
				})
				failed.Add(1)
				return nil
			}

			rec.ValidatedValue = verdict.ValidatedValue
			rec.ValidationStatus = verdict.Status
			rec.RaiseConfidence(verdict.Confidence)

			details := map[string]any{"confidence": rec.ConfidenceScore}
			if verdict.Reason != "" {
				details["reason"] = verdict.Reason
			}
			rec.AppendEvent(4, model.EventValidate, string(verdict.Status), details)

			switch verdict.Status {
			case model.StatusApproved:
				approved.Add(1)
			case model.StatusNeedsReview:
				needsReview.Add(1)
			case model.StatusRejected:
				rejected.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[string]any{
		"approved":     approved.Load(),
		"needs_review": needsReview.Load(),
		"rejected":     rejected.Load(),
		"failed":       failed.Load(),
	}, nil
}

// candidateValue picks the value cross-validation should judge: the
// standardized value when stage 2 produced one, then the researched
// value, then the raw original.
func candidateValue(rec *model.PropertyRecord) any {
	if rec.StandardizedValue != nil {
		return rec.StandardizedValue
	}
	if rec.ResearchedValue != nil {
		return rec.ResearchedValue
	}
	return rec.OriginalValue
}
