// Package pipeline orchestrates the seven validation stages: discovery,
// standardization, research, cross-validation, the QA gate, deployment,
// and monitoring setup. Stages run strictly in order and a stage failure
// aborts the run.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/config"
	"github.com/matref/property-cli/internal/deploy"
	"github.com/matref/property-cli/internal/discovery"
	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/monitoring"
	"github.com/matref/property-cli/internal/research"
	"github.com/matref/property-cli/internal/standardize"
	"github.com/matref/property-cli/internal/store"
	"github.com/matref/property-cli/internal/validate"
)

// Researcher is the slice of the research registry the pipeline needs.
type Researcher interface {
	Research(ctx context.Context, material, category, property string) (*research.Finding, error)
}

// stageNames are fixed: stage numbers in history and artifacts always
// mean the same thing.
var stageNames = [8]string{
	"", // stages are 1-based
	"discovery",
	"standardization",
	"research",
	"cross_validation",
	"qa_gate",
	"deployment",
	"monitoring",
}

// StageCount is the number of pipeline stages.
const StageCount = 7

// StageName returns the canonical name for a 1-based stage number.
func StageName(n int) string {
	if n < 1 || n > StageCount {
		return ""
	}
	return stageNames[n]
}

// RunState is the mutable state threaded through the stages of one run.
// Records are created by discovery and only mutated in place afterward.
type RunState struct {
	RunID          string
	Filter         []string
	Records        []model.PropertyRecord
	Discovery      *discovery.Result
	QualityMetrics map[string]any
	BackupHandle   string
}

// RunOptions selects what to execute.
type RunOptions struct {
	// Filter restricts discovery to the named materials. Empty means all.
	Filter []string
	// Stage runs a single stage instead of the full pipeline. Stage 1
	// re-runs discovery; stages 2-7 resume from the latest snapshot.
	Stage int
}

// Pipeline wires the stage collaborators together.
type Pipeline struct {
	cfg          *config.Config
	store        store.Store
	standardizer standardize.Standardizer
	researcher   Researcher
	validator    validate.Validator
	deployer     deploy.Deployer
	monitor      monitoring.Monitor
}

// New creates a Pipeline with explicit collaborators.
func New(
	cfg *config.Config,
	st store.Store,
	standardizer standardize.Standardizer,
	researcher Researcher,
	validator validate.Validator,
	deployer deploy.Deployer,
	monitor monitoring.Monitor,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		store:        st,
		standardizer: standardizer,
		researcher:   researcher,
		validator:    validator,
		deployer:     deployer,
		monitor:      monitor,
	}
}

// NewDefault creates a Pipeline with the standard in-process collaborators.
func NewDefault(cfg *config.Config, st store.Store) (*Pipeline, error) {
	rules, err := discovery.LoadRules(cfg.Discovery.RulesPath)
	if err != nil {
		return nil, err
	}
	return New(
		cfg,
		st,
		standardize.New(),
		research.NewRegistry(cfg.Research, research.DefaultProviders()...),
		validate.New(rules, cfg.Validation),
		deploy.New(st),
		monitoring.New(cfg.Monitoring, st),
	), nil
}

// Run executes the pipeline per opts and returns the run result. The
// result is persisted and written to the artifacts directory whether the
// run completed or aborted.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*model.RunResult, error) {
	log := zap.L().With(zap.Strings("materials", opts.Filter))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, opts.Filter)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	state := &RunState{RunID: run.ID, Filter: opts.Filter}
	result := &model.RunResult{StartedAt: time.Now().UTC()}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}
	setStatus(model.RunStatusRunning)

	trackStage := func(stage int, fn func() (map[string]any, error)) error {
		name := StageName(stage)
		sr := &model.StageResult{Stage: stage, Name: name, Status: model.StageInProgress}
		if saveErr := p.store.SaveStageResult(ctx, run.ID, sr); saveErr != nil {
			log.Warn("pipeline: failed to create stage record", zap.String("stage", name), zap.Error(saveErr))
		}

		start := time.Now()
		summary, fnErr := fn()
		sr.Duration = time.Since(start).Milliseconds()
		sr.Summary = summary

		if fnErr != nil {
			sr.Status = model.StageFailed
			sr.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", sr.Duration),
				zap.Error(fnErr),
			)
		} else {
			sr.Status = model.StageCompleted
			result.StagesCompleted++
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", sr.Duration),
			)
		}

		if saveErr := p.store.SaveStageResult(ctx, run.ID, sr); saveErr != nil {
			log.Warn("pipeline: failed to save stage result", zap.String("stage", name), zap.Error(saveErr))
		}
		p.writeStageArtifact(stage, sr)
		result.Stages = append(result.Stages, *sr)

		if fnErr != nil {
			return eris.Wrapf(fnErr, "pipeline: stage %d (%s)", stage, name)
		}

		// Snapshot after every successful stage so a single-stage rerun
		// can resume from here.
		if snapErr := p.store.SaveSnapshot(ctx, run.ID, state.Records); snapErr != nil {
			log.Warn("pipeline: failed to save snapshot", zap.Error(snapErr))
		}
		return nil
	}

	stageFns := [StageCount + 1]func() (map[string]any, error){
		1: func() (map[string]any, error) { return p.runDiscovery(ctx, state) },
		2: func() (map[string]any, error) { return p.runStandardize(ctx, state) },
		3: func() (map[string]any, error) { return p.runResearch(ctx, state) },
		4: func() (map[string]any, error) { return p.runValidate(ctx, state) },
		5: func() (map[string]any, error) { return p.runQAGate(ctx, state) },
		6: func() (map[string]any, error) { return p.runDeploy(ctx, state) },
		7: func() (map[string]any, error) { return p.runMonitoring(ctx, state) },
	}

	first, last := 1, StageCount
	if opts.Stage > 0 {
		if opts.Stage > StageCount {
			return nil, eris.Errorf("pipeline: no stage %d", opts.Stage)
		}
		first, last = opts.Stage, opts.Stage
		if opts.Stage > 1 {
			snapRunID, records, snapErr := p.store.LatestSnapshot(ctx)
			if snapErr != nil {
				return nil, eris.Wrap(snapErr, "pipeline: single-stage run needs a prior snapshot")
			}
			state.Records = records
			log.Info("pipeline: resuming from snapshot",
				zap.String("snapshot_run_id", snapRunID),
				zap.Int("records", len(records)),
			)
		}
	}

	var runErr error
	for stage := first; stage <= last; stage++ {
		if runErr = trackStage(stage, stageFns[stage]); runErr != nil {
			break
		}
	}

	p.finalize(ctx, run.ID, state, result, runErr, setStatus)
	if runErr != nil {
		return result, runErr
	}
	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("stages", result.StagesCompleted),
		zap.Float64("success_rate", result.SuccessRate),
	)
	return result, nil
}

// finalize fills the aggregate fields, persists the run result, and
// writes the run-level artifacts. It runs for aborted runs too: partial
// results are part of the contract.
func (p *Pipeline) finalize(ctx context.Context, runID string, state *RunState, result *model.RunResult, runErr error, setStatus func(model.RunStatus)) {
	result.EndedAt = time.Now().UTC()
	result.Duration = result.EndedAt.Sub(result.StartedAt).Seconds()
	result.TotalProperties = len(state.Records)
	result.QualityMetrics = state.QualityMetrics
	result.SuccessRate = successRate(state.Records)
	// File-level scan errors are recoverable but still part of the run's
	// error ledger.
	if state.Discovery != nil {
		result.Errors = append(result.Errors, state.Discovery.Errors...)
	}
	if runErr != nil {
		result.Errors = append(result.Errors, runErr.Error())
	}

	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	if saveErr := p.store.UpdateRunResult(ctx, runID, status, result); saveErr != nil {
		zap.L().Warn("pipeline: failed to save run result", zap.Error(saveErr))
	}
	setStatus(status)

	p.writeRunArtifacts(result, state.Records)
}

// successRate is the fraction of records that made it to a final value.
func successRate(records []model.PropertyRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for i := range records {
		if records[i].FinalValue != nil {
			n++
		}
	}
	return float64(n) / float64(len(records))
}
