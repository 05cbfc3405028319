package driftsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/drift"
)

type fakeOutcomeQuerier struct {
	byCall [][]domain.Outcome
	call   int
	err    error
}

func (f *fakeOutcomeQuerier) Query(context.Context, string, *time.Time, *time.Time, int) ([]domain.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	records := f.byCall[f.call]
	f.call++
	return records, nil
}

func testConfig() drift.Config {
	return drift.Config{
		MinSamples:             5,
		KSPValueThreshold:      0.05,
		PSIThreshold:           0.2,
		PSIBuckets:             10,
		DriftedFractionTrigger: 0.3,
	}
}

func pricedOutcomes(prices ...float64) []domain.Outcome {
	out := make([]domain.Outcome, len(prices))
	for i, p := range prices {
		out[i] = domain.Outcome{PropertyID: "prop-1", QuotedPrice: decimal.NewFromFloat(p)}
	}
	return out
}

func TestCheckDriftComparesReferenceAgainstCurrentWindow(t *testing.T) {
	stable := []float64{100, 101, 99, 100, 102, 98, 101, 100}
	querier := &fakeOutcomeQuerier{byCall: [][]domain.Outcome{pricedOutcomes(stable...), pricedOutcomes(stable...)}}
	svc := New(querier, testConfig(), 7*24*time.Hour, 24*time.Hour)

	result, err := svc.CheckDrift(context.Background(), "prop-1")

	require.NoError(t, err)
	assert.False(t, result.Summary.TriggerRetrain)
}

func TestCheckDriftDetectsShiftedPriceDistribution(t *testing.T) {
	reference := []float64{100, 101, 99, 100, 102, 98, 101, 100}
	shifted := []float64{160, 158, 162, 159, 161, 157, 163, 160}
	querier := &fakeOutcomeQuerier{byCall: [][]domain.Outcome{pricedOutcomes(reference...), pricedOutcomes(shifted...)}}
	svc := New(querier, testConfig(), 7*24*time.Hour, 24*time.Hour)

	result, err := svc.CheckDrift(context.Background(), "prop-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Drifted)
	assert.Contains(t, result.PerFeature, "quoted_price")
}

func TestCheckDriftPropagatesReferenceWindowQueryFailure(t *testing.T) {
	querier := &fakeOutcomeQuerier{err: errors.New("store unavailable")}
	svc := New(querier, testConfig(), 7*24*time.Hour, 24*time.Hour)

	_, err := svc.CheckDrift(context.Background(), "prop-1")

	require.Error(t, err)
}
