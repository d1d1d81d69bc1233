// Package monitoring tracks the health of deployed property data:
// confidence metrics over production records, run success rates, and
// webhook alerts when either degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"

	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/store"
)

// Low-confidence records are surfaced for periodic review.
const lowConfidenceCutoff = 0.7

// MetricsSnapshot holds a point-in-time view of deployed data quality.
type MetricsSnapshot struct {
	DeployedCount      int     `json:"deployed_count"`
	AvgConfidence      float64 `json:"avg_confidence"`
	MedianConfidence   float64 `json:"median_confidence"`
	MinConfidence      float64 `json:"min_confidence"`
	LowConfidenceCount int     `json:"low_confidence_count"`

	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	SuccessRate  float64 `json:"success_rate"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the production tables and run history.
type Collector struct {
	store store.Store
}

func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of deployed data quality and recent run health.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	deployed, err := c.store.ListProduction(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list production")
	}
	snap.DeployedCount = len(deployed)

	if len(deployed) > 0 {
		confidences := make([]float64, 0, len(deployed))
		for _, rec := range deployed {
			confidences = append(confidences, rec.ConfidenceScore)
			if rec.ConfidenceScore < lowConfidenceCutoff {
				snap.LowConfidenceCount++
			}
		}
		if snap.AvgConfidence, err = stats.Mean(confidences); err != nil {
			return nil, eris.Wrap(err, "monitoring: mean confidence")
		}
		if snap.MedianConfidence, err = stats.Median(confidences); err != nil {
			return nil, eris.Wrap(err, "monitoring: median confidence")
		}
		if snap.MinConfidence, err = stats.Min(confidences); err != nil {
			return nil, eris.Wrap(err, "monitoring: min confidence")
		}
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 100})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		}
	}
	snap.RunsTotal = len(runs)
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.SuccessRate = float64(snap.RunsComplete) / float64(finished)
	}

	return snap, nil
}
