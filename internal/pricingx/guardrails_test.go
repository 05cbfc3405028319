package pricingx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengu-tech/pricing-service/internal/config"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestApplyClampsToAbsoluteBounds(t *testing.T) {
	cfg := config.Default().Guardrails

	below := Apply(cfg, GuardrailInput{Price: dec(5)})
	assert.True(t, below.Price.Equal(cfg.AbsoluteMin))
	assert.Contains(t, below.Reasons, "Clamped to absolute minimum price")

	above := Apply(cfg, GuardrailInput{Price: dec(10000)})
	assert.True(t, above.Price.Equal(cfg.AbsoluteMax))
	assert.Contains(t, above.Reasons, "Clamped to absolute maximum price")
}

func TestApplyCompetitiveCap(t *testing.T) {
	cfg := config.Default().Guardrails
	compP50 := dec(100)

	result := Apply(cfg, GuardrailInput{Price: dec(200), CompetitorP50: &compP50})

	assert.True(t, result.Price.Equal(dec(150)), "expected 1.5x competitor P50 cap, got %s", result.Price)
	assert.Contains(t, result.Reasons, "Premium positioning capped at 1.5x competitor P50")
}

func TestApplyCompetitiveCapNotTriggeredWhenUnderCap(t *testing.T) {
	cfg := config.Default().Guardrails
	compP50 := dec(100)

	result := Apply(cfg, GuardrailInput{Price: dec(120), CompetitorP50: &compP50})

	assert.True(t, result.Price.Equal(dec(120)))
	assert.Empty(t, result.Reasons)
}

func TestApplyConservativeFloorOnHoliday(t *testing.T) {
	cfg := config.Default().Guardrails

	result := Apply(cfg, GuardrailInput{
		Price:        dec(50),
		BasePrice:    dec(100),
		Conservative: true,
		IsHoliday:    true,
	})

	assert.True(t, result.Price.Equal(dec(80)), "expected 0.8x base price floor, got %s", result.Price)
	assert.Contains(t, result.Reasons, "Conservative-mode event floor applied")
}

func TestApplyConservativeFloorOnHighOccupancy(t *testing.T) {
	cfg := config.Default().Guardrails

	result := Apply(cfg, GuardrailInput{
		Price:         dec(50),
		BasePrice:     dec(100),
		Conservative:  true,
		OccupancyRate: 0.95,
	})

	assert.True(t, result.Price.Equal(dec(80)))
}

func TestApplyConservativeFloorSkippedWithoutEventTrigger(t *testing.T) {
	cfg := config.Default().Guardrails

	result := Apply(cfg, GuardrailInput{
		Price:         dec(50),
		BasePrice:     dec(100),
		Conservative:  true,
		OccupancyRate: 0.5,
	})

	assert.True(t, result.Price.Equal(dec(50)), "floor should not apply without holiday or >90%% occupancy")
}

func TestSnapPicksNearestGridValue(t *testing.T) {
	grid := []decimal.Decimal{dec(90), dec(100), dec(110)}

	assert.True(t, Snap(dec(94), grid).Equal(dec(90)))
	assert.True(t, Snap(dec(96), grid).Equal(dec(100)))
}

func TestSnapTiesBreakLow(t *testing.T) {
	grid := []decimal.Decimal{dec(90), dec(110)}

	assert.True(t, Snap(dec(100), grid).Equal(dec(90)), "equidistant candidates should resolve to the lower price")
}

func TestSnapNoGridReturnsPriceUnchanged(t *testing.T) {
	price := dec(123.45)
	assert.True(t, Snap(price, nil).Equal(price))
}

func TestConfidenceBandWidensForLongLeadTimes(t *testing.T) {
	cfg := *config.Default()
	price := dec(100)

	near := ConfidenceBand(cfg, price, 10, GuardrailInput{Price: price, BasePrice: price})
	far := ConfidenceBand(cfg, price, 200, GuardrailInput{Price: price, BasePrice: price})

	nearWidth := near.Upper.Sub(near.Lower)
	farWidth := far.Upper.Sub(far.Lower)
	assert.True(t, farWidth.GreaterThan(nearWidth), "band beyond the wide-lead threshold should be wider")
}

func TestGridBuildsFiveIndependentlyClampedRungs(t *testing.T) {
	cfg := config.Default()
	rungs := Grid(cfg.Guardrails, dec(100), cfg.GridOffsetsPct, GuardrailInput{Price: dec(100), BasePrice: dec(100)})

	require.Len(t, rungs, 5)
	assert.True(t, rungs[2].Price.Equal(dec(100)), "the zero-offset rung should equal the center price")
	for i, offset := range cfg.GridOffsetsPct {
		assert.Equal(t, offset, rungs[i].OffsetPercent)
	}
}

func TestParseGridRejectsNonPositiveValues(t *testing.T) {
	_, err := ParseGrid([]float64{100, 0, 90})
	assert.Error(t, err)

	_, err = ParseGrid([]float64{-5})
	assert.Error(t, err)

	grid, err := ParseGrid([]float64{80, 90, 100})
	require.NoError(t, err)
	assert.Len(t, grid, 3)
}
