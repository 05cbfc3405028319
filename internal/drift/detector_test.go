package drift

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MinSamples:             30,
		KSPValueThreshold:      0.05,
		PSIThreshold:           0.2,
		PSIBuckets:             10,
		DriftedFractionTrigger: 0.3,
	}
}

func identicalDistribution(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = r.NormFloat64()
	}
	return values
}

func shiftedDistribution(n int, seed int64, shift float64) []float64 {
	values := identicalDistribution(n, seed)
	for i := range values {
		values[i] += shift
	}
	return values
}

func TestDetectFindsNoDriftForSimilarDistributions(t *testing.T) {
	cfg := testConfig()
	reference := map[string][]float64{"price": identicalDistribution(500, 1)}
	current := map[string][]float64{"price": identicalDistribution(500, 2)}

	result := Detect(cfg, reference, current, []string{"price"})

	require.Contains(t, result.PerFeature, "price")
	assert.False(t, result.PerFeature["price"].Drift)
	assert.Equal(t, 0, result.Summary.Drifted)
	assert.False(t, result.Summary.TriggerRetrain)
}

func TestDetectFindsDriftForShiftedDistribution(t *testing.T) {
	cfg := testConfig()
	reference := map[string][]float64{"price": identicalDistribution(500, 1)}
	current := map[string][]float64{"price": shiftedDistribution(500, 2, 5.0)}

	result := Detect(cfg, reference, current, []string{"price"})

	assert.True(t, result.PerFeature["price"].Drift)
	assert.Equal(t, 1, result.Summary.Drifted)
	assert.Contains(t, result.Summary.DriftedList, "price")
}

func TestDetectSkipsFeaturesBelowMinSamples(t *testing.T) {
	cfg := testConfig()
	reference := map[string][]float64{"price": {1, 2, 3}}
	current := map[string][]float64{"price": {1, 2, 3}}

	result := Detect(cfg, reference, current, []string{"price"})

	assert.True(t, result.PerFeature["price"].Skipped)
	assert.Equal(t, 0, result.Summary.Total, "skipped features should not count toward the drifted fraction")
}

func TestDetectTriggersRetrainAboveDriftedFractionThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.DriftedFractionTrigger = 0.3
	reference := map[string][]float64{
		"a": identicalDistribution(500, 1),
		"b": identicalDistribution(500, 3),
	}
	current := map[string][]float64{
		"a": shiftedDistribution(500, 2, 5.0),
		"b": shiftedDistribution(500, 4, 5.0),
	}

	result := Detect(cfg, reference, current, []string{"a", "b"})

	assert.Equal(t, 2, result.Summary.Drifted)
	assert.InDelta(t, 1.0, result.Summary.Percent, 1e-9)
	assert.True(t, result.Summary.TriggerRetrain)
}

func TestDetectFlagsADriftedPriceDistributionAndTriggersRetrain(t *testing.T) {
	cfg := testConfig()
	cfg.DriftedFractionTrigger = 0.25

	normal := func(n int, seed int64, mean, stddev float64) []float64 {
		r := rand.New(rand.NewSource(seed))
		values := make([]float64, n)
		for i := range values {
			values[i] = mean + stddev*r.NormFloat64()
		}
		return values
	}

	reference := map[string][]float64{"quoted_price": normal(100, 1, 150, 20)}
	current := map[string][]float64{"quoted_price": normal(100, 2, 190, 20)}

	result := Detect(cfg, reference, current, []string{"quoted_price"})

	feature := result.PerFeature["quoted_price"]
	assert.True(t, feature.Drift)
	assert.Less(t, feature.KSP, 0.05)
	assert.Greater(t, feature.PSI, 0.2)
	assert.True(t, result.Summary.TriggerRetrain, "a single monitored feature drifting exceeds a 25%% trigger threshold")
}

func TestPopulationStabilityIndexZeroForIdenticalSamples(t *testing.T) {
	values := identicalDistribution(200, 42)
	psi := populationStabilityIndex(values, values, 10)
	assert.InDelta(t, 0, psi, 1e-9)
}

func TestTwoSampleKSIdenticalSamplesHaveZeroStatistic(t *testing.T) {
	values := identicalDistribution(100, 7)
	stat, pValue := twoSampleKS(values, values)
	assert.InDelta(t, 0, stat, 1e-9)
	assert.InDelta(t, 1.0, pValue, 1e-9)
}
