package discovery

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Range is a category-specific numeric bound for a property.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// RuleSet is the parsed category/rule definition source: property names
// with formal descriptions, and per-category numeric ranges used for
// bounds checks.
type RuleSet struct {
	Properties map[string]PropertyDefinition `yaml:"properties"`
	Categories map[string]CategoryRules      `yaml:"categories"`
}

// PropertyDefinition is the formal description of a property.
type PropertyDefinition struct {
	Description string `yaml:"description"`
	Unit        string `yaml:"unit"`
}

// CategoryRules holds the per-property ranges defined for one category.
type CategoryRules struct {
	Ranges map[string]Range `yaml:"ranges"`
}

// LoadRules parses the YAML rule source. A missing rule file yields an
// empty rule set rather than an error: discovery still runs, every
// property just reports has_definition=false.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleSet{}, nil
		}
		return nil, eris.Wrapf(err, "discovery: read rules %s", path)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrapf(err, "discovery: parse rules %s", path)
	}
	return &rules, nil
}

// HasDefinition reports whether the property has a formal description.
func (r *RuleSet) HasDefinition(property string) bool {
	_, ok := r.Properties[property]
	return ok
}

// RangeFor returns the category-specific range for a property, if defined.
func (r *RuleSet) RangeFor(category, property string) (Range, bool) {
	cat, ok := r.Categories[category]
	if !ok {
		return Range{}, false
	}
	rng, ok := cat.Ranges[property]
	return rng, ok
}
