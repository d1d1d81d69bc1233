package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/model"
)

// runDeploy executes stage 6: back up production, stage the approved
// records, verify staging, and promote. A failed verification rolls back
// to the backup exactly once and aborts the run.
func (p *Pipeline) runDeploy(ctx context.Context, state *RunState) (map[string]any, error) {
	deployable := deployableRecords(state.Records)
	if len(deployable) == 0 {
		return nil, eris.New("deploy: no approved records to deploy")
	}

	handle, err := p.deployer.CreateBackup(ctx)
	if err != nil {
		return nil, err
	}
	state.BackupHandle = handle

	if err := p.deployer.DeployToStaging(ctx, deployable); err != nil {
		return nil, err
	}

	report, err := p.deployer.RunIntegrationTests(ctx, deployable)
	if err != nil {
		return nil, err
	}
	if !report.Success {
		if rbErr := p.deployer.Rollback(ctx, handle); rbErr != nil {
			return nil, eris.Wrapf(rbErr, "deploy: verification failed and rollback also failed (backup %s)", handle)
		}
		return map[string]any{
			"backup_id":   handle,
			"checks":      report.Checks,
			"failures":    report.Failures,
			"rolled_back": true,
		}, eris.Errorf("deploy: staging verification failed, production rolled back to backup %s", handle)
	}

	if err := p.deployer.DeployToProduction(ctx, deployable); err != nil {
		if rbErr := p.deployer.Rollback(ctx, handle); rbErr != nil {
			return nil, eris.Wrapf(rbErr, "deploy: production write failed and rollback also failed (backup %s)", handle)
		}
		return nil, eris.Wrap(err, "deploy: production write failed, rolled back")
	}

	for i := range state.Records {
		rec := &state.Records[i]
		if rec.FinalValue != nil && rec.ValidationStatus == model.StatusApproved {
			rec.AppendEvent(6, model.EventDeploy, "deployed", map[string]any{
				"backup_id": handle,
			})
		}
	}

	zap.L().Info("deploy: production updated",
		zap.Int("records", len(deployable)),
		zap.String("backup_id", handle),
	)
	return map[string]any{
		"deployed":  len(deployable),
		"backup_id": handle,
		"checks":    report.Checks,
	}, nil
}

// deployableRecords filters for records that earned a final value.
func deployableRecords(records []model.PropertyRecord) []model.PropertyRecord {
	var out []model.PropertyRecord
	for i := range records {
		if records[i].FinalValue != nil && records[i].ValidationStatus == model.StatusApproved {
			out = append(out, records[i])
		}
	}
	return out
}
