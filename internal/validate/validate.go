// Package validate reconciles a record's value against its sources and
// the category rule ranges, assigning a validation status.
package validate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/matref/property-cli/internal/config"
	"github.com/matref/property-cli/internal/discovery"
	"github.com/matref/property-cli/internal/model"
)

// Verdict is the cross-validation outcome for one record.
type Verdict struct {
	ValidatedValue any                    `json:"validated_value"`
	Confidence     float64                `json:"confidence"`
	Status         model.ValidationStatus `json:"status"`
	Reason         string                 `json:"reason,omitempty"`
}

// Validator is the stage-4 collaborator contract.
type Validator interface {
	Validate(ctx context.Context, material, category, property string, value any, sources []string) (*Verdict, error)
}

// RuleValidator is the default in-process implementation: source-count
// corroboration plus category range bounds from the discovery rule set.
type RuleValidator struct {
	rules *discovery.RuleSet
	cfg   config.ValidationConfig
}

// New creates a rule validator. rules may be nil when no rule source
// exists; bounds checks are then skipped.
func New(rules *discovery.RuleSet, cfg config.ValidationConfig) *RuleValidator {
	if rules == nil {
		rules = &discovery.RuleSet{}
	}
	return &RuleValidator{rules: rules, cfg: cfg}
}

// Validate scores corroboration across sources and checks numeric values
// against the category range when one is defined.
func (v *RuleValidator) Validate(ctx context.Context, material, category, property string, value any, sources []string) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "validate: context")
	}
	if value == nil {
		return &Verdict{
			Status: model.StatusRejected,
			Reason: "no value to validate",
		}, nil
	}

	// Corroboration: each distinct source adds confidence.
	confidence := 0.5 + 0.1*float64(len(sources))
	if confidence > 0.98 {
		confidence = 0.98
	}

	inRange := true
	rangeChecked := false
	if num, ok := asFloat(value); ok {
		if rng, defined := v.rules.RangeFor(category, property); defined {
			rangeChecked = true
			inRange = num >= rng.Min && num <= rng.Max
		}
	}

	verdict := &Verdict{ValidatedValue: value, Confidence: confidence}
	switch {
	case rangeChecked && !inRange:
		verdict.Status = model.StatusRejected
		verdict.Reason = "value outside defined category range"
		verdict.Confidence = confidence * 0.5
	case len(sources) >= v.cfg.MinSources && confidence >= v.cfg.ConfidenceThreshold:
		if rangeChecked {
			// Range agreement is independent corroboration.
			verdict.Confidence = min(confidence+0.1, 0.99)
		}
		verdict.Status = model.StatusApproved
	default:
		verdict.Status = model.StatusNeedsReview
		verdict.Reason = "insufficient corroboration"
	}

	return verdict, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
