// Package standardize normalizes record values and unit naming before
// enrichment. The concrete rule tables live with the downstream content
// system; this default implementation covers the units the exports
// actually carry.
package standardize

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/matref/property-cli/internal/model"
)

// Standardizer is the stage-2 collaborator contract.
type Standardizer interface {
	Standardize(ctx context.Context, record *model.PropertyRecord) (value any, details map[string]any, err error)
}

// unitAliases maps lowercase unit spellings to their canonical form.
var unitAliases = map[string]string{
	"g/cc":    "g/cm3",
	"g/cm^3":  "g/cm3",
	"g/cm3":   "g/cm3",
	"kg/m3":   "kg/m3",
	"kg/m^3":  "kg/m3",
	"mpa":     "MPa",
	"gpa":     "GPa",
	"pa":      "Pa",
	"w/mk":    "W/mK",
	"w/m-k":   "W/mK",
	"w/(m·k)": "W/mK",
	"degc":    "C",
	"°c":      "C",
	"c":       "C",
	"degf":    "F",
	"°f":      "F",
	"hb":      "HB",
	"hrc":     "HRC",
	"hv":      "HV",
	"um/m-c":  "µm/m·C",
	"µm/m·c":  "µm/m·C",
	"1/k":     "1/K",
}

// UnitStandardizer is the default in-process implementation: it splits
// scalar "value unit" strings, canonicalizes unit spelling, and lowers
// property naming to snake case.
type UnitStandardizer struct {
	lower cases.Caser
}

// New creates the default standardizer.
func New() *UnitStandardizer {
	return &UnitStandardizer{lower: cases.Lower(language.English)}
}

// Standardize normalizes the record's original value. It returns the
// standardized value and detail fields describing what changed.
func (s *UnitStandardizer) Standardize(ctx context.Context, record *model.PropertyRecord) (any, map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "standardize: context")
	}
	if record.OriginalValue == nil {
		return nil, nil, eris.Errorf("standardize: %s has no original value", record.Key())
	}

	details := map[string]any{
		"property": NormalizeName(record.PropertyName),
	}

	switch v := record.OriginalValue.(type) {
	case float64:
		details["unit"] = ""
		return v, details, nil
	case int:
		details["unit"] = ""
		return float64(v), details, nil
	case bool:
		return v, details, nil
	case string:
		value, unit, ok := splitValueUnit(v)
		if !ok {
			// Textual values pass through unchanged; later structuring is
			// the research stage's problem.
			details["textual"] = true
			return strings.TrimSpace(v), details, nil
		}
		details["unit"] = s.canonicalUnit(unit)
		return value, details, nil
	default:
		return nil, nil, eris.Errorf("standardize: %s has unsupported value type %T", record.Key(), v)
	}
}

func (s *UnitStandardizer) canonicalUnit(unit string) string {
	if unit == "" {
		return ""
	}
	if canonical, ok := unitAliases[s.lower.String(unit)]; ok {
		return canonical
	}
	return unit
}

// splitValueUnit parses strings like "7.85 g/cm3" or "250MPa" into a
// numeric value and a unit suffix.
func splitValueUnit(raw string) (float64, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", false
	}

	// Find the longest numeric prefix.
	end := 0
	for i, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E' {
			end = i + 1
			continue
		}
		break
	}
	if end == 0 {
		return 0, "", false
	}

	value, err := strconv.ParseFloat(raw[:end], 64)
	if err != nil {
		return 0, "", false
	}
	return value, strings.TrimSpace(raw[end:]), true
}

// NormalizeName lowers a property name to snake_case.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
