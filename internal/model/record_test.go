package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseConfidence_Monotonic(t *testing.T) {
	r := PropertyRecord{ConfidenceScore: 0.6}

	r.RaiseConfidence(0.8)
	assert.Equal(t, 0.8, r.ConfidenceScore)

	// A lower score never lowers the existing confidence.
	r.RaiseConfidence(0.3)
	assert.Equal(t, 0.8, r.ConfidenceScore)
}

func TestAddSources_Deduplicates(t *testing.T) {
	r := PropertyRecord{Sources: []string{"matweb"}}

	r.AddSources("matweb", "vendor_datasheets", "matweb")

	assert.Equal(t, []string{"matweb", "vendor_datasheets"}, r.Sources)
}

func TestAppendEvent_GrowsHistory(t *testing.T) {
	r := PropertyRecord{}

	r.AppendEvent(2, EventStandardize, "standardized", map[string]any{"unit": "GPa"})
	r.AppendEvent(3, EventError, "provider timeout", nil)

	require.Len(t, r.StageHistory, 2)
	assert.Equal(t, 2, r.StageHistory[0].Stage)
	assert.Equal(t, EventStandardize, r.StageHistory[0].Kind)
	assert.Equal(t, EventError, r.StageHistory[1].Kind)
	assert.False(t, r.StageHistory[0].At.IsZero())
}

func TestPropertyRecord_JSONRoundTrip(t *testing.T) {
	orig := PropertyRecord{
		MaterialName:      "aluminum_6061",
		Category:          "metal",
		PropertyName:      "density",
		OriginalValue:     "2.70 g/cm3",
		StandardizedValue: 2.70,
		ConfidenceScore:   0.92,
		Sources:           []string{"export", "reference_data"},
		ValidationStatus:  StatusApproved,
	}
	orig.AppendEvent(2, EventStandardize, "standardized", nil)

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back PropertyRecord
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, orig.MaterialName, back.MaterialName)
	assert.Equal(t, orig.ConfidenceScore, back.ConfidenceScore)
	assert.Equal(t, orig.Sources, back.Sources)
	assert.Equal(t, orig.ValidationStatus, back.ValidationStatus)
	require.Len(t, back.StageHistory, 1)
	assert.Equal(t, EventStandardize, back.StageHistory[0].Kind)
}
