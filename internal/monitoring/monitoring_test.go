package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matref/property-cli/internal/config"
	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func deployRecords(t *testing.T, s store.Store, confidences ...float64) {
	t.Helper()
	records := make([]model.PropertyRecord, 0, len(confidences))
	for i, c := range confidences {
		records = append(records, model.PropertyRecord{
			MaterialName:     "steel",
			Category:         "metal",
			PropertyName:     "prop_" + string(rune('a'+i)),
			FinalValue:       float64(i),
			ConfidenceScore:  c,
			ValidationStatus: model.StatusApproved,
		})
	}
	require.NoError(t, s.DeployToProduction(context.Background(), records))
}

func TestCollect_ConfidenceMetrics(t *testing.T) {
	s := newTestStore(t)
	deployRecords(t, s, 0.9, 0.8, 0.6)

	snap, err := NewCollector(s).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snap.DeployedCount)
	assert.InDelta(t, (0.9+0.8+0.6)/3, snap.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.8, snap.MedianConfidence, 1e-9)
	assert.InDelta(t, 0.6, snap.MinConfidence, 1e-9)
	assert.Equal(t, 1, snap.LowConfidenceCount)
}

func TestCollect_SuccessRate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, status := range []model.RunStatus{
		model.RunStatusComplete, model.RunStatusComplete, model.RunStatusFailed,
	} {
		run, err := s.CreateRun(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, status))
	}

	snap, err := NewCollector(s).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.RunsTotal)
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 1e-9)
}

func TestEvaluate_SuccessRateBelowThreshold(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{AlertThreshold: 0.95})

	alerts := a.Evaluate(&MetricsSnapshot{
		RunsComplete: 2, RunsFailed: 1, SuccessRate: 2.0 / 3.0,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSuccessRate, alerts[0].Type)
}

func TestEvaluate_TooFewRunsStaysQuiet(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{AlertThreshold: 0.95})

	alerts := a.Evaluate(&MetricsSnapshot{
		RunsComplete: 1, RunsFailed: 1, SuccessRate: 0.5,
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_LowConfidenceDeployed(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{AlertThreshold: 0.95})

	alerts := a.Evaluate(&MetricsSnapshot{
		DeployedCount: 10, LowConfidenceCount: 2, MinConfidence: 0.55,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowConfidence, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestSendAlerts_PostsToWebhook(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertLowConfidence, alert.Type)
		received.Add(1)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertLowConfidence, Severity: "medium"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSuccessRate}})
	assert.Equal(t, 0, sent)
}

func TestSetup_Disabled(t *testing.T) {
	m := New(config.MonitoringConfig{Enabled: false}, newTestStore(t))

	report, err := m.Setup(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, report.Enabled)
	assert.Empty(t, report.Dashboards)
}

func TestSetup_IdempotentDefinitions(t *testing.T) {
	s := newTestStore(t)
	deployRecords(t, s, 0.9)
	m := New(config.MonitoringConfig{Enabled: true, AlertThreshold: 0.95, ReviewSchedule: "weekly"}, s)

	first, err := m.Setup(context.Background(), nil)
	require.NoError(t, err)
	second, err := m.Setup(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Dashboards, second.Dashboards)
	assert.Equal(t, first.AlertRules, second.AlertRules)
	assert.Equal(t, "weekly", second.ReviewSchedule)
	require.NotNil(t, second.Snapshot)
	assert.Equal(t, 1, second.Snapshot.DeployedCount)
}
