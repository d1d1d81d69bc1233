package research

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matref/property-cli/internal/config"
	"github.com/matref/property-cli/internal/resilience"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Lookup(ctx context.Context, material, category, property string) (*Finding, error) {
	args := m.Called(ctx, material, category, property)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Finding), args.Error(1)
}

func researchConfig(providers ...string) config.ResearchConfig {
	return config.ResearchConfig{
		Providers:     providers,
		RatePerSecond: 1000,
		MaxAttempts:   1,
	}
}

func TestResearch_BestConfidenceWins(t *testing.T) {
	weak := &mockProvider{name: "weak"}
	weak.On("Lookup", mock.Anything, "steel", "metal", "density").
		Return(&Finding{Value: 7.8, Confidence: 0.6, Sources: []string{"weak"}}, nil)

	strong := &mockProvider{name: "strong"}
	strong.On("Lookup", mock.Anything, "steel", "metal", "density").
		Return(&Finding{Value: 7.85, Confidence: 0.85, Sources: []string{"strong"}}, nil)

	r := NewRegistry(researchConfig("weak", "strong"), weak, strong)

	finding, err := r.Research(context.Background(), "steel", "metal", "density")
	require.NoError(t, err)
	assert.Equal(t, 7.85, finding.Value)
	assert.Equal(t, 0.85, finding.Confidence)
}

func TestResearch_StopsEarlyOnStrongFinding(t *testing.T) {
	first := &mockProvider{name: "first"}
	first.On("Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&Finding{Value: 2.7, Confidence: 0.97, Sources: []string{"first"}}, nil)

	second := &mockProvider{name: "second"}

	r := NewRegistry(researchConfig("first", "second"), first, second)

	finding, err := r.Research(context.Background(), "al", "metal", "density")
	require.NoError(t, err)
	assert.Equal(t, 0.97, finding.Confidence)
	second.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResearch_ProviderFailureIsSkipped(t *testing.T) {
	flaky := &mockProvider{name: "flaky"}
	flaky.On("Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, eris.New("boom"))

	backup := &mockProvider{name: "backup"}
	backup.On("Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&Finding{Value: 1.0, Confidence: 0.7, Sources: []string{"backup"}}, nil)

	r := NewRegistry(researchConfig("flaky", "backup"), flaky, backup)

	finding, err := r.Research(context.Background(), "m", "metal", "density")
	require.NoError(t, err)
	assert.Equal(t, []string{"backup"}, finding.Sources)
}

func TestResearch_NotFound(t *testing.T) {
	empty := &mockProvider{name: "empty"}
	empty.On("Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	r := NewRegistry(researchConfig("empty"), empty)

	_, err := r.Research(context.Background(), "m", "metal", "unknown_prop")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResearch_RetriesTransientFailures(t *testing.T) {
	flaky := &mockProvider{name: "flaky"}
	flaky.On("Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(eris.New("rate limited"))).Once()
	flaky.On("Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&Finding{Value: 9.0, Confidence: 0.8, Sources: []string{"flaky"}}, nil).Once()

	cfg := researchConfig("flaky")
	cfg.MaxAttempts = 2
	r := NewRegistry(cfg, flaky)
	r.retry.InitialBackoff = 1 // keep the test fast

	finding, err := r.Research(context.Background(), "m", "metal", "density")
	require.NoError(t, err)
	assert.Equal(t, 9.0, finding.Value)
	flaky.AssertExpectations(t)
}

func TestNewRegistry_UnknownProviderSkipped(t *testing.T) {
	known := &mockProvider{name: "known"}
	r := NewRegistry(researchConfig("known", "missing"), known)
	assert.Equal(t, []string{"known"}, r.Providers())
}

func TestReferenceDataProvider(t *testing.T) {
	p := ReferenceDataProvider{}

	f, err := p.Lookup(context.Background(), "steel_1045", "metal", "density")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 7.85, f.Value)
	assert.Equal(t, []string{"reference_data:metal"}, f.Sources)

	f, err = p.Lookup(context.Background(), "steel_1045", "metal", "no_such_property")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestLiteratureProvider_WeakerThanReference(t *testing.T) {
	ref := ReferenceDataProvider{}
	lit := LiteratureProvider{}

	rf, err := ref.Lookup(context.Background(), "x", "ceramic", "hardness")
	require.NoError(t, err)
	lf, err := lit.Lookup(context.Background(), "x", "ceramic", "hardness")
	require.NoError(t, err)

	assert.Less(t, lf.Confidence, rf.Confidence)
}
