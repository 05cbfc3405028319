package abtest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

func activeExperiment(mlPct int) domain.ExperimentConfig {
	return domain.ExperimentConfig{ExperimentID: "exp-1", MLTrafficPercentage: mlPct, Active: true}
}

func TestRouteReturnsInactiveWhenNoExperimentConfigured(t *testing.T) {
	store := NewStaticConfigStore()
	a := New(store, nil)

	_, _, active := a.Route(context.Background(), "prop-1", "user-1")

	assert.False(t, active)
}

func TestRouteReturnsInactiveOutsideTheExperimentWindow(t *testing.T) {
	store := NewStaticConfigStore()
	store.Set(activeExperiment(50), time.Now().Add(24*time.Hour), time.Now().Add(48*time.Hour))
	a := New(store, nil)

	_, _, active := a.Route(context.Background(), "prop-1", "user-1")

	assert.False(t, active, "experiment starting in the future should not route traffic yet")
}

func TestRouteReturnsInactiveForMisconfiguredTrafficPercentage(t *testing.T) {
	store := NewStaticConfigStore()
	store.Set(domain.ExperimentConfig{ExperimentID: "exp-1", MLTrafficPercentage: 150, Active: true},
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	a := New(store, nil)

	_, _, active := a.Route(context.Background(), "prop-1", "user-1")

	assert.False(t, active, "an out-of-range traffic percentage should degrade to no experiment active")
}

func TestRouteAssignsDeterministically(t *testing.T) {
	store := NewStaticConfigStore()
	store.Set(activeExperiment(50), time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	a := New(store, nil)

	variant1, experimentID1, active1 := a.Route(context.Background(), "prop-1", "user-42")
	variant2, experimentID2, active2 := a.Route(context.Background(), "prop-1", "user-42")

	require.True(t, active1)
	require.True(t, active2)
	assert.Equal(t, variant1, variant2, "the same experiment+user should always resolve to the same variant")
	assert.Equal(t, experimentID1, experimentID2)
	assert.Contains(t, []string{"ml", "rule_based"}, variant1)
}

func TestAssignVariantSplitsByTrafficPercentage(t *testing.T) {
	a := New(NewStaticConfigStore(), nil)

	mlCount := 0
	const n = 2000
	for i := 0; i < n; i++ {
		key := "user-" + strconv.Itoa(i)
		if a.AssignVariant("exp-1", key, 30) == "ml" {
			mlCount++
		}
	}

	fraction := float64(mlCount) / float64(n)
	assert.InDelta(t, 0.30, fraction, 0.05, "roughly 30%% of traffic should route to ml")
}

func TestAssignVariantZeroPercentNeverRoutesToML(t *testing.T) {
	a := New(NewStaticConfigStore(), nil)
	for i := 0; i < 100; i++ {
		key := "user-" + strconv.Itoa(i)
		assert.Equal(t, "rule_based", a.AssignVariant("exp-1", key, 0))
	}
}

func TestVariantStatsDerivedMetrics(t *testing.T) {
	stats := VariantStats{N: 100, Conversions: 20, Revenues: []float64{100, 150, 120, 130}}

	assert.InDelta(t, 0.2, stats.ConversionRate(), 1e-9)
	assert.InDelta(t, 25, stats.ADR(), 1e-9)
	assert.InDelta(t, 5.0, stats.RevPAR(), 1e-9)
}

func TestVariantStatsZeroNProducesZeroRates(t *testing.T) {
	stats := VariantStats{}
	assert.Zero(t, stats.ConversionRate())
	assert.Zero(t, stats.ADR())
	assert.Zero(t, stats.RevPAR())
}

func TestCompareFindsSignificantLiftForClearlySeparatedSamples(t *testing.T) {
	ml := VariantStats{
		N:           200,
		Conversions: 200,
		Revenues:    repeatedSeries(200, 150, 5),
	}
	rule := VariantStats{
		N:           200,
		Conversions: 200,
		Revenues:    repeatedSeries(200, 100, 5),
	}

	result := Compare(ml, rule)

	assert.Greater(t, result.Lift, 0.0)
	assert.Less(t, result.PValue, 0.05)
	assert.True(t, result.Significant)
}

func TestCompareFindsNoSignificanceForIdenticalSamples(t *testing.T) {
	series := repeatedSeries(100, 100, 10)
	result := Compare(VariantStats{N: 100, Conversions: 100, Revenues: series}, VariantStats{N: 100, Conversions: 100, Revenues: series})

	assert.InDelta(t, 1.0, result.PValue, 1e-6)
	assert.False(t, result.Significant)
}

// repeatedSeries builds a deterministic pseudo-random-looking series
// centered at mean with the given spread, avoiding any dependency on
// math/rand so the t-test assertions stay exact across runs.
func repeatedSeries(n int, mean, spread float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		offset := float64(i%7) - 3
		values[i] = mean + offset*spread/3
	}
	return values
}
