package discovery

// criticalBonus maps the fixed set of critical property names to their
// priority boost factor. Factors stay within [1.0, 1.5].
var criticalBonus = map[string]float64{
	"density":              1.5,
	"melting_point":        1.4,
	"tensile_strength":     1.4,
	"thermal_conductivity": 1.3,
	"hardness":             1.3,
	"elastic_modulus":      1.3,
	"thermal_expansion":    1.2,
}

// numericTypeBonus rewards properties with at least one numeric
// observation: they can be range-checked downstream.
const numericTypeBonus = 1.2

// IsCritical reports whether the property belongs to the fixed critical set.
func IsCritical(property string) bool {
	_, ok := criticalBonus[property]
	return ok
}

// PriorityScore computes the deterministic priority for a property:
// a weighted blend of usage and coverage, boosted for critical properties
// and for numeric value types.
func PriorityScore(usageCount, materialCoverage, categoryCoverage int, property string, hasNumeric bool) float64 {
	score := 0.30*float64(usageCount) + 0.25*float64(materialCoverage) + 0.25*float64(categoryCoverage)
	if bonus, ok := criticalBonus[property]; ok {
		score *= bonus
	}
	if hasNumeric {
		score *= numericTypeBonus
	}
	return score
}
