package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/pipeline"
	"github.com/matref/property-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAPI_Healthz(t *testing.T) {
	router := newAPIRouter(newTestStore(t), func(pipeline.RunOptions) {})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAPI_ListRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"steel"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))

	router := newAPIRouter(st, func(pipeline.RunOptions) {})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	// Status filter that matches nothing returns an empty list, not null.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?status=failed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAPI_GetRun(t *testing.T) {
	st := newTestStore(t)
	run, err := st.CreateRun(context.Background(), nil)
	require.NoError(t, err)

	router := newAPIRouter(st, func(pipeline.RunOptions) {})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateRun(t *testing.T) {
	var launched []pipeline.RunOptions
	router := newAPIRouter(newTestStore(t), func(opts pipeline.RunOptions) {
		launched = append(launched, opts)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"materials":["steel","aluminum"]}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, launched, 1)
	assert.Equal(t, []string{"steel", "aluminum"}, launched[0].Filter)
}

func TestAPI_CreateRunRejectsBadStage(t *testing.T) {
	var launched int
	router := newAPIRouter(newTestStore(t), func(pipeline.RunOptions) { launched++ })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"stage":9}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, launched)
}

func TestAPI_StageResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.SaveStageResult(ctx, run.ID, &model.StageResult{
		Stage: 1, Name: "discovery", Status: model.StageCompleted,
	}))

	router := newAPIRouter(st, func(pipeline.RunOptions) {})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/stages", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var results []model.StageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "discovery", results[0].Name)
}
