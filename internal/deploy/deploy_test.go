package deploy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/store"
)

func newTestDeployer(t *testing.T) *StoreDeployer {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "deploy.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func approvedRecord(property string, value float64) model.PropertyRecord {
	return model.PropertyRecord{
		MaterialName:     "steel",
		Category:         "metal",
		PropertyName:     property,
		FinalValue:       value,
		ConfidenceScore:  0.9,
		Sources:          []string{"export:steel.json", "reference_data:metal"},
		ValidationStatus: model.StatusApproved,
	}
}

func TestIntegrationTests_PassForApprovedSet(t *testing.T) {
	d := newTestDeployer(t)
	ctx := context.Background()

	records := []model.PropertyRecord{
		approvedRecord("density", 7.85),
		approvedRecord("hardness", 200),
	}
	require.NoError(t, d.DeployToStaging(ctx, records))

	report, err := d.RunIntegrationTests(ctx, records)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Checks)
	assert.Empty(t, report.Failures)
}

func TestIntegrationTests_FailOnMissingFinalValue(t *testing.T) {
	d := newTestDeployer(t)
	ctx := context.Background()

	bad := approvedRecord("density", 7.85)
	bad.FinalValue = nil
	records := []model.PropertyRecord{bad}
	require.NoError(t, d.DeployToStaging(ctx, records))

	report, err := d.RunIntegrationTests(ctx, records)
	require.NoError(t, err)
	assert.False(t, report.Success)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "missing final value")
}

func TestIntegrationTests_FailOnUnapprovedRecord(t *testing.T) {
	d := newTestDeployer(t)
	ctx := context.Background()

	bad := approvedRecord("density", 7.85)
	bad.ValidationStatus = model.StatusNeedsReview
	records := []model.PropertyRecord{bad}
	require.NoError(t, d.DeployToStaging(ctx, records))

	report, err := d.RunIntegrationTests(ctx, records)
	require.NoError(t, err)
	assert.False(t, report.Success)
}

func TestBackupThenRollbackRestoresProduction(t *testing.T) {
	d := newTestDeployer(t)
	ctx := context.Background()

	require.NoError(t, d.DeployToProduction(ctx, []model.PropertyRecord{approvedRecord("density", 7.85)}))

	handle, err := d.CreateBackup(ctx)
	require.NoError(t, err)

	// A later deploy overwrites the value; rollback must bring the old one back.
	require.NoError(t, d.DeployToProduction(ctx, []model.PropertyRecord{approvedRecord("density", 1.23)}))
	require.NoError(t, d.Rollback(ctx, handle))

	prod, err := d.store.ListProduction(ctx)
	require.NoError(t, err)
	require.Len(t, prod, 1)
	assert.Equal(t, 7.85, prod[0].FinalValue)
}
