package discovery

import (
	"sort"

	"github.com/matref/property-cli/internal/model"
)

// ValueType classifies an observed property value.
type ValueType string

const (
	ValueNumeric    ValueType = "numeric"
	ValueText       ValueType = "text"
	ValueBool       ValueType = "bool"
	ValueList       ValueType = "list"
	ValueStructured ValueType = "structured"
)

// PropertyStats is the per-property inventory computed from the scan.
type PropertyStats struct {
	Name             string      `json:"name"`
	UsageCount       int         `json:"usage_count"`
	MaterialCoverage int         `json:"material_coverage"`
	CategoryCoverage int         `json:"category_coverage"`
	CoverageRate     float64     `json:"coverage_rate"`
	HasDefinition    bool        `json:"has_definition"`
	ValueTypes       []ValueType `json:"value_types"`
	IsCritical       bool        `json:"is_critical"`
	PriorityScore    float64     `json:"priority_score"`
}

// QueueEntry is one (property, category) combination in the prioritized
// processing queue.
type QueueEntry struct {
	Property      string   `json:"property"`
	Category      string   `json:"category"`
	IsCritical    bool     `json:"is_critical"`
	PriorityScore float64  `json:"priority_score"`
	UsageCount    int      `json:"usage_count"`
	CoverageRate  float64  `json:"coverage_rate"`
	HasDefinition bool     `json:"has_definition"`
	Materials     []string `json:"materials"`
}

// GapAnalysis reports mismatches between observed data and the rule source.
type GapAnalysis struct {
	UndefinedObserved       []string           `json:"undefined_observed"`
	DefinedUnobserved       []string           `json:"defined_unobserved"`
	CategoryCompleteness    map[string]float64 `json:"category_completeness"`
	CategoriesMissingRanges []string           `json:"categories_missing_ranges"`
}

// Recommendation is an advisory finding. Nothing acts on these; they are
// persisted for a human to review.
type Recommendation struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Result is the full output of the discovery stage.
type Result struct {
	Inventory       map[string]PropertyStats `json:"inventory"`
	Queue           []QueueEntry             `json:"queue"`
	Gaps            GapAnalysis              `json:"gaps"`
	Recommendations []Recommendation         `json:"recommendations"`
	FilesProcessed  int                      `json:"files_processed"`
	Errors          []string                 `json:"errors,omitempty"`
	Records         []model.PropertyRecord   `json:"-"`
}

// observation is one parsed (material, property, value) triple.
type observation struct {
	Material    string
	Category    string
	Property    string
	Value       any
	Unit        string
	Min         *float64
	Max         *float64
	Confidence  float64
	Description string
	// NeedsStructuring flags an unstructured scalar that later stages
	// should break into value/unit components.
	NeedsStructuring bool
	Source           string
	Type             ValueType
}

// Accumulator is the explicit scan state: one value threaded through the
// scan and merged across files, so parallel scanning needs no hidden
// cross-call state.
type Accumulator struct {
	Usage          map[string]int
	Materials      map[string]map[string]struct{}
	Categories     map[string]map[string]struct{}
	ValueTypes     map[string]map[ValueType]struct{}
	TotalMaterials int
	FilesProcessed int
	Errors         []string
	Observations   []observation
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		Usage:      make(map[string]int),
		Materials:  make(map[string]map[string]struct{}),
		Categories: make(map[string]map[string]struct{}),
		ValueTypes: make(map[string]map[ValueType]struct{}),
	}
}

// Observe indexes one parsed observation.
func (a *Accumulator) Observe(obs observation) {
	a.Usage[obs.Property]++
	if a.Materials[obs.Property] == nil {
		a.Materials[obs.Property] = make(map[string]struct{})
	}
	a.Materials[obs.Property][obs.Material] = struct{}{}
	if a.Categories[obs.Property] == nil {
		a.Categories[obs.Property] = make(map[string]struct{})
	}
	a.Categories[obs.Property][obs.Category] = struct{}{}
	if a.ValueTypes[obs.Property] == nil {
		a.ValueTypes[obs.Property] = make(map[ValueType]struct{})
	}
	a.ValueTypes[obs.Property][obs.Type] = struct{}{}
	a.Observations = append(a.Observations, obs)
}

// Merge folds another accumulator into this one.
func (a *Accumulator) Merge(b *Accumulator) {
	for prop, n := range b.Usage {
		a.Usage[prop] += n
	}
	for prop, set := range b.Materials {
		if a.Materials[prop] == nil {
			a.Materials[prop] = make(map[string]struct{})
		}
		for m := range set {
			a.Materials[prop][m] = struct{}{}
		}
	}
	for prop, set := range b.Categories {
		if a.Categories[prop] == nil {
			a.Categories[prop] = make(map[string]struct{})
		}
		for c := range set {
			a.Categories[prop][c] = struct{}{}
		}
	}
	for prop, set := range b.ValueTypes {
		if a.ValueTypes[prop] == nil {
			a.ValueTypes[prop] = make(map[ValueType]struct{})
		}
		for vt := range set {
			a.ValueTypes[prop][vt] = struct{}{}
		}
	}
	a.TotalMaterials += b.TotalMaterials
	a.FilesProcessed += b.FilesProcessed
	a.Errors = append(a.Errors, b.Errors...)
	a.Observations = append(a.Observations, b.Observations...)
}

// sortedKeys returns the keys of a string-keyed set in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
