package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/model"
)

// runQAGate executes stage 5: promote approved records that clear the
// confidence threshold to a final value, then compute quality metrics
// over the record set and abort the run when any metric is below its
// threshold. Metrics are recorded in the run state even when the gate
// fails, so the aborted run's artifacts still show what was measured.
func (p *Pipeline) runQAGate(ctx context.Context, state *RunState) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "qa: context")
	}
	if len(state.Records) == 0 {
		return nil, eris.New("qa: no records to evaluate")
	}

	var (
		finalized           int
		rejected            int
		approvedConfidences []float64
	)
	for i := range state.Records {
		rec := &state.Records[i]
		switch rec.ValidationStatus {
		case model.StatusApproved:
			approvedConfidences = append(approvedConfidences, rec.ConfidenceScore)
			if rec.FinalValue == nil && rec.ConfidenceScore >= p.cfg.Validation.ConfidenceThreshold {
				if value := finalCandidate(rec); value != nil {
					rec.FinalValue = value
					rec.AppendEvent(5, model.EventQA, "finalized", map[string]any{
						"confidence": rec.ConfidenceScore,
					})
				}
			}
		case model.StatusRejected:
			rejected++
		}
		if rec.FinalValue != nil {
			finalized++
		}
	}

	total := float64(len(state.Records))
	completeness := float64(finalized) / total
	consistency := 1 - float64(rejected)/total

	accuracy := 0.0
	if len(approvedConfidences) > 0 {
		var err error
		if accuracy, err = stats.Mean(approvedConfidences); err != nil {
			return nil, eris.Wrap(err, "qa: mean confidence")
		}
	}

	metrics := map[string]any{
		"completeness": completeness,
		"accuracy":     accuracy,
		"consistency":  consistency,
		"approved":     len(approvedConfidences),
		"finalized":    finalized,
		"rejected":     rejected,
	}
	state.QualityMetrics = metrics

	var failures []string
	for _, check := range []struct {
		name      string
		value     float64
		threshold float64
	}{
		{"completeness", completeness, p.cfg.Quality.Completeness},
		{"accuracy", accuracy, p.cfg.Quality.Accuracy},
		{"consistency", consistency, p.cfg.Quality.Consistency},
	} {
		if check.value < check.threshold {
			failures = append(failures, fmt.Sprintf("%s %.3f < %.3f", check.name, check.value, check.threshold))
		}
	}

	if len(failures) > 0 {
		zap.L().Error("qa: gate failed", zap.Strings("failures", failures))
		return metrics, eris.Errorf("qa: gate failed: %s", strings.Join(failures, "; "))
	}

	zap.L().Info("qa: gate passed",
		zap.Float64("completeness", completeness),
		zap.Float64("accuracy", accuracy),
		zap.Float64("consistency", consistency),
	)
	return metrics, nil
}

// finalCandidate picks the value an approved record is promoted to:
// the validated value when cross-validation produced one, else the
// researched value.
func finalCandidate(rec *model.PropertyRecord) any {
	if rec.ValidatedValue != nil {
		return rec.ValidatedValue
	}
	return rec.ResearchedValue
}
