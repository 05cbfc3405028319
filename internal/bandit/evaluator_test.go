package bandit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleHistory() []HistoricalRecord {
	return []HistoricalRecord{
		{Season: "Summer", HistoricPrice: 100, Booked: true, Revenue: 100},
		{Season: "Summer", HistoricPrice: 120, Booked: false, Revenue: 0},
		{Season: "Winter", HistoricPrice: 80, Booked: true, Revenue: 80},
		{Season: "Winter", HistoricPrice: 90, Booked: true, Revenue: 90},
	}
}

func identityShuffler(history []HistoricalRecord) []HistoricalRecord {
	return history
}

func TestEvaluateDefaultsRunsWhenNonPositive(t *testing.T) {
	result := Evaluate(testConfig(), sampleHistory(), 0, identityShuffler)

	assert.Contains(t, result.ArmDistribution, 0.0)
}

func TestEvaluateConfidenceIntervalBracketsMeanReward(t *testing.T) {
	result := Evaluate(testConfig(), sampleHistory(), 5, identityShuffler)

	assert.True(t, result.CILower <= result.MeanReward)
	assert.True(t, result.CIUpper >= result.MeanReward)
}

func TestEvaluateEmptyHistoryProducesZeroedResult(t *testing.T) {
	result := Evaluate(testConfig(), nil, 10, identityShuffler)

	assert.Equal(t, 0.0, result.MeanReward)
	assert.Equal(t, 0.0, result.UpliftVsBaseline)
}

func TestConfidenceIntervalCollapsesToMeanForSingleSample(t *testing.T) {
	lower, upper := confidenceInterval95([]float64{42}, 42)

	assert.Equal(t, 42.0, lower)
	assert.Equal(t, 42.0, upper)
}

func TestMeanHistoricalRevenueOnlyCountsBookedStays(t *testing.T) {
	assert.Equal(t, 67.5, meanHistoricalRevenue(sampleHistory()))
}
