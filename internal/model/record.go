package model

import "time"

// ValidationStatus is the cross-validation verdict for a record.
type ValidationStatus string

const (
	StatusPending     ValidationStatus = "pending"
	StatusApproved    ValidationStatus = "approved"
	StatusNeedsReview ValidationStatus = "needs_review"
	StatusRejected    ValidationStatus = "rejected"
)

// EventKind identifies what a stage recorded about a record.
type EventKind string

const (
	EventStandardize EventKind = "standardize"
	EventResearch    EventKind = "research"
	EventValidate    EventKind = "validate"
	EventQA          EventKind = "qa"
	EventDeploy      EventKind = "deploy"
	EventError       EventKind = "error"
)

// StageEvent is one append-only entry in a record's stage history.
type StageEvent struct {
	Stage   int            `json:"stage"`
	Kind    EventKind      `json:"kind"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
	At      time.Time      `json:"at"`
}

// PropertyRecord is one (material, property) unit of work carried through
// every pipeline stage. Stages mutate it in place; the record set itself
// is fixed after discovery.
type PropertyRecord struct {
	MaterialName      string           `json:"material_name"`
	Category          string           `json:"category"`
	PropertyName      string           `json:"property_name"`
	OriginalValue     any              `json:"original_value,omitempty"`
	StandardizedValue any              `json:"standardized_value,omitempty"`
	ResearchedValue   any              `json:"researched_value,omitempty"`
	ValidatedValue    any              `json:"validated_value,omitempty"`
	FinalValue        any              `json:"final_value,omitempty"`
	ConfidenceScore   float64          `json:"confidence_score"`
	Sources           []string         `json:"sources,omitempty"`
	ValidationStatus  ValidationStatus `json:"validation_status"`
	StageHistory      []StageEvent     `json:"stage_history,omitempty"`
}

// Key returns the record's identity within a run.
func (r *PropertyRecord) Key() string {
	return r.MaterialName + "/" + r.PropertyName
}

// AppendEvent records a stage transition. History never shrinks and each
// stage contributes at most one entry per record it touches.
func (r *PropertyRecord) AppendEvent(stage int, kind EventKind, action string, details map[string]any) {
	r.StageHistory = append(r.StageHistory, StageEvent{
		Stage:   stage,
		Kind:    kind,
		Action:  action,
		Details: details,
		At:      time.Now().UTC(),
	})
}

// RaiseConfidence merges a newly computed confidence via max, preserving
// the monotonicity invariant: a stage may raise confidence, never lower it.
func (r *PropertyRecord) RaiseConfidence(score float64) {
	if score > r.ConfidenceScore {
		r.ConfidenceScore = score
	}
}

// AddSources appends sources not already present, keeping order stable.
func (r *PropertyRecord) AddSources(sources ...string) {
	for _, s := range sources {
		seen := false
		for _, have := range r.Sources {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			r.Sources = append(r.Sources, s)
		}
	}
}
