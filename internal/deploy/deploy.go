// Package deploy moves approved property records through staging into
// production, with a backup taken first so a failed verification can be
// rolled back.
package deploy

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/store"
)

// TestReport is the outcome of post-staging verification.
type TestReport struct {
	Success  bool     `json:"success"`
	Checks   int      `json:"checks"`
	Failures []string `json:"failures,omitempty"`
}

// Deployer is the stage-6 collaborator contract.
type Deployer interface {
	CreateBackup(ctx context.Context) (string, error)
	DeployToStaging(ctx context.Context, records []model.PropertyRecord) error
	RunIntegrationTests(ctx context.Context, records []model.PropertyRecord) (*TestReport, error)
	DeployToProduction(ctx context.Context, records []model.PropertyRecord) error
	Rollback(ctx context.Context, backupHandle string) error
}

// StoreDeployer is the default implementation backed by the pipeline store.
type StoreDeployer struct {
	store store.Store
}

func New(s store.Store) *StoreDeployer {
	return &StoreDeployer{store: s}
}

func (d *StoreDeployer) CreateBackup(ctx context.Context) (string, error) {
	handle, err := d.store.BackupProduction(ctx)
	if err != nil {
		return "", eris.Wrap(err, "deploy: create backup")
	}
	zap.L().Info("production backup created", zap.String("backup_id", handle))
	return handle, nil
}

func (d *StoreDeployer) DeployToStaging(ctx context.Context, records []model.PropertyRecord) error {
	if err := d.store.ReplaceStaging(ctx, records); err != nil {
		return eris.Wrap(err, "deploy: stage records")
	}
	zap.L().Info("records staged", zap.Int("count", len(records)))
	return nil
}

// RunIntegrationTests verifies the staged set: the row count must match
// what was deployed, and every record must carry a final value and an
// approved status.
func (d *StoreDeployer) RunIntegrationTests(ctx context.Context, records []model.PropertyRecord) (*TestReport, error) {
	report := &TestReport{Success: true}

	n, err := d.store.CountStaging(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "deploy: verify staging")
	}
	report.Checks++
	if n != len(records) {
		report.Success = false
		report.Failures = append(report.Failures, "staging row count does not match deployed set")
	}

	for _, rec := range records {
		report.Checks++
		switch {
		case rec.FinalValue == nil:
			report.Success = false
			report.Failures = append(report.Failures, rec.Key()+": missing final value")
		case rec.ValidationStatus != model.StatusApproved:
			report.Success = false
			report.Failures = append(report.Failures, rec.Key()+": not approved")
		}
	}

	zap.L().Info("staging verification finished",
		zap.Bool("success", report.Success),
		zap.Int("checks", report.Checks),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

func (d *StoreDeployer) DeployToProduction(ctx context.Context, records []model.PropertyRecord) error {
	if err := d.store.DeployToProduction(ctx, records); err != nil {
		return eris.Wrap(err, "deploy: production")
	}
	zap.L().Info("records deployed to production", zap.Int("count", len(records)))
	return nil
}

func (d *StoreDeployer) Rollback(ctx context.Context, backupHandle string) error {
	if err := d.store.RestoreBackup(ctx, backupHandle); err != nil {
		return eris.Wrapf(err, "deploy: rollback to %s", backupHandle)
	}
	zap.L().Warn("production rolled back", zap.String("backup_id", backupHandle))
	return nil
}
