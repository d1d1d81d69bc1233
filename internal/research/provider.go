// Package research enriches low-confidence records from external
// knowledge providers. Providers are collaborator contracts; the default
// registry wires the in-process reference providers named in config.
package research

import "context"

// Finding is one provider's answer for a (material, category, property)
// lookup.
type Finding struct {
	Value      any      `json:"value"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Provider is the stage-3 collaborator contract. Lookup blocks on
// external calls and must honor ctx cancellation.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, material, category, property string) (*Finding, error)
}
