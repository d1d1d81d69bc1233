package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// materialExport is the on-disk shape of a per-material property export.
type materialExport struct {
	Material   string         `json:"material"`
	Category   string         `json:"category"`
	Properties map[string]any `json:"properties"`
}

// ScanMaterials scans every per-material JSON export under dataDir and
// returns the merged accumulator. A file that fails to parse contributes
// one error string and is skipped; the scan never aborts on bad input.
// When filter is non-empty, only the named materials are scanned.
func ScanMaterials(ctx context.Context, dataDir string, filter []string, workers int) (*Accumulator, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read data dir %s", dataDir)
	}

	filterSet := make(map[string]struct{}, len(filter))
	for _, m := range filter {
		filterSet[m] = struct{}{}
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if len(filterSet) > 0 {
			name := strings.TrimSuffix(e.Name(), ".json")
			if _, ok := filterSet[name]; !ok {
				continue
			}
		}
		paths = append(paths, filepath.Join(dataDir, e.Name()))
	}
	sort.Strings(paths)

	if workers <= 0 {
		workers = 1
	}

	acc := NewAccumulator()
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			fileAcc := scanFile(path)
			mu.Lock()
			acc.Merge(fileAcc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "discovery: scan")
	}

	// Merge order depends on goroutine scheduling; restore a deterministic
	// observation order for downstream record creation.
	sort.SliceStable(acc.Observations, func(i, j int) bool {
		a, b := acc.Observations[i], acc.Observations[j]
		if a.Material != b.Material {
			return a.Material < b.Material
		}
		return a.Property < b.Property
	})
	sort.Strings(acc.Errors)

	zap.L().Info("discovery: scan complete",
		zap.Int("files_processed", acc.FilesProcessed),
		zap.Int("materials", acc.TotalMaterials),
		zap.Int("observations", len(acc.Observations)),
		zap.Int("errors", len(acc.Errors)),
	)

	return acc, nil
}

// scanFile parses one export into a fresh accumulator. Parse failures are
// recorded as error strings, never returned.
func scanFile(path string) *Accumulator {
	acc := NewAccumulator()

	data, err := os.ReadFile(path)
	if err != nil {
		acc.Errors = append(acc.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		return acc
	}

	var export materialExport
	if err := json.Unmarshal(data, &export); err != nil {
		acc.Errors = append(acc.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		return acc
	}
	if export.Material == "" {
		export.Material = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	acc.FilesProcessed++
	acc.TotalMaterials++
	source := "export:" + filepath.Base(path)

	for _, prop := range sortedKeys(export.Properties) {
		obs := parseProperty(export.Material, export.Category, prop, export.Properties[prop])
		obs.Source = source
		acc.Observe(obs)
	}

	return acc
}

// parseProperty normalizes one (property, raw value) pair. Structured
// entries carry value/unit/min/max/confidence/description; anything else
// is recorded as-is and flagged for later structuring.
func parseProperty(material, category, property string, raw any) observation {
	obs := observation{
		Material: material,
		Category: category,
		Property: property,
	}

	switch v := raw.(type) {
	case map[string]any:
		obs.Type = ValueStructured
		obs.Value = v["value"]
		if unit, ok := v["unit"].(string); ok {
			obs.Unit = unit
		}
		if min, ok := toFloat(v["min"]); ok {
			obs.Min = &min
		}
		if max, ok := toFloat(v["max"]); ok {
			obs.Max = &max
		}
		if conf, ok := toFloat(v["confidence"]); ok {
			obs.Confidence = conf
		} else {
			obs.Confidence = 0.7
		}
		if desc, ok := v["description"].(string); ok {
			obs.Description = desc
		}
		if _, isNum := toFloat(obs.Value); isNum {
			obs.Type = ValueNumeric
		}
	case bool:
		obs.Type = ValueBool
		obs.Value = v
		obs.Confidence = 0.5
		obs.NeedsStructuring = true
	case []any:
		obs.Type = ValueList
		obs.Value = v
		obs.Confidence = 0.5
		obs.NeedsStructuring = true
	case string:
		obs.Value = v
		obs.Confidence = 0.5
		obs.NeedsStructuring = true
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			obs.Type = ValueNumeric
		} else {
			obs.Type = ValueText
		}
	default:
		obs.Value = v
		obs.Confidence = 0.5
		if _, isNum := toFloat(v); isNum {
			obs.Type = ValueNumeric
		} else {
			obs.Type = ValueText
			obs.NeedsStructuring = true
		}
	}

	return obs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
