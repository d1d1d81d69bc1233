package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/matref/property-cli/internal/model"
)

// Artifacts are best-effort: a write failure is logged, never fatal. The
// store holds the authoritative copy.

func (p *Pipeline) writeStageArtifact(stage int, sr *model.StageResult) {
	p.writeArtifact(fmt.Sprintf("stage_%d_results.json", stage), sr)
}

func (p *Pipeline) writeRunArtifacts(result *model.RunResult, records []model.PropertyRecord) {
	p.writeArtifact("run_result.json", result)
	p.writeArtifact("records_snapshot.json", records)
}

func (p *Pipeline) writeArtifact(name string, v any) {
	dir := p.cfg.Artifacts.Dir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zap.L().Warn("pipeline: create artifacts dir", zap.Error(err))
		return
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		zap.L().Warn("pipeline: marshal artifact", zap.String("artifact", name), zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		zap.L().Warn("pipeline: write artifact", zap.String("artifact", name), zap.Error(err))
	}
}
