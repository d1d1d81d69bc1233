package research

import (
	"context"
	"fmt"
)

// referenceTable holds category-level typical values used by the
// reference data provider. Keyed by category then property.
var referenceTable = map[string]map[string]Finding{
	"metal": {
		"density":              {Value: 7.85, Confidence: 0.85},
		"melting_point":        {Value: 1450.0, Confidence: 0.8},
		"thermal_conductivity": {Value: 50.0, Confidence: 0.75},
		"elastic_modulus":      {Value: 200.0, Confidence: 0.8},
		"tensile_strength":     {Value: 500.0, Confidence: 0.75},
		"thermal_expansion":    {Value: 12.0, Confidence: 0.7},
	},
	"ceramic": {
		"density":              {Value: 3.9, Confidence: 0.8},
		"melting_point":        {Value: 2000.0, Confidence: 0.8},
		"thermal_conductivity": {Value: 25.0, Confidence: 0.7},
		"hardness":             {Value: 1500.0, Confidence: 0.75},
	},
	"polymer": {
		"density":       {Value: 1.2, Confidence: 0.8},
		"melting_point": {Value: 180.0, Confidence: 0.7},
	},
}

// ReferenceDataProvider answers lookups from a bundled table of
// category-typical values. It stands in for the external reference
// database behind the same contract.
type ReferenceDataProvider struct{}

func (ReferenceDataProvider) Name() string { return "reference_data" }

func (ReferenceDataProvider) Lookup(ctx context.Context, material, category, property string) (*Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	props, ok := referenceTable[category]
	if !ok {
		return nil, nil
	}
	f, ok := props[property]
	if !ok {
		return nil, nil
	}
	found := f
	found.Sources = []string{"reference_data:" + category}
	return &found, nil
}

// VendorDatasheetProvider simulates material-specific datasheet lookups:
// it only answers for materials it has a sheet for, with higher
// confidence than category-level reference data.
type VendorDatasheetProvider struct {
	// Sheets maps material name to property findings.
	Sheets map[string]map[string]Finding
}

func (VendorDatasheetProvider) Name() string { return "vendor_datasheets" }

func (p VendorDatasheetProvider) Lookup(ctx context.Context, material, category, property string) (*Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sheet, ok := p.Sheets[material]
	if !ok {
		return nil, nil
	}
	f, ok := sheet[property]
	if !ok {
		return nil, nil
	}
	found := f
	found.Sources = []string{fmt.Sprintf("vendor_datasheets:%s", material)}
	return &found, nil
}

// LiteratureProvider is the low-confidence fallback: it answers any
// critical-property lookup with the category reference value, marked
// weaker than the primary sources.
type LiteratureProvider struct{}

func (LiteratureProvider) Name() string { return "literature" }

func (LiteratureProvider) Lookup(ctx context.Context, material, category, property string) (*Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	props, ok := referenceTable[category]
	if !ok {
		return nil, nil
	}
	f, ok := props[property]
	if !ok {
		return nil, nil
	}
	return &Finding{
		Value:      f.Value,
		Confidence: f.Confidence * 0.7,
		Sources:    []string{"literature:survey"},
	}, nil
}

// DefaultProviders returns the built-in provider implementations.
func DefaultProviders() []Provider {
	return []Provider{
		ReferenceDataProvider{},
		VendorDatasheetProvider{Sheets: map[string]map[string]Finding{}},
		LiteratureProvider{},
	}
}
