// Package pricingx applies the hard constraints the scored price must
// satisfy before it can be quoted: absolute bounds, competitive cap,
// conservative-mode event floor, then grid snap. Grounded on the teacher's
// RulesEngine.ApplyPricingBounds two-sided clamp pattern, generalized from
// a single [min,max] fare bound to the ordered chain spec.md requires.
package pricingx

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/domain"
)

// GuardrailInput bundles everything Apply needs to clamp one price.
type GuardrailInput struct {
	Price          decimal.Decimal
	BasePrice      decimal.Decimal
	CompetitorP50  *decimal.Decimal
	Conservative   bool
	IsHoliday      bool
	OccupancyRate  float64
}

// GuardrailResult is the clamped price plus any reasons the clamp added.
type GuardrailResult struct {
	Price   decimal.Decimal
	Reasons []string
}

// Apply clamps in.Price in order: absolute bounds, competitive cap, event
// clamp. It does not grid-snap — call Snap separately, since the pre-snap
// price is needed to build the price grid.
func Apply(cfg config.GuardrailConfig, in GuardrailInput) GuardrailResult {
	price := in.Price
	var reasons []string

	if price.LessThan(cfg.AbsoluteMin) {
		price = cfg.AbsoluteMin
		reasons = append(reasons, "Clamped to absolute minimum price")
	}
	if price.GreaterThan(cfg.AbsoluteMax) {
		price = cfg.AbsoluteMax
		reasons = append(reasons, "Clamped to absolute maximum price")
	}

	if in.CompetitorP50 != nil {
		cap := in.CompetitorP50.Mul(cfg.CompetitiveCapFactor)
		if price.GreaterThan(cap) {
			price = cap
			reasons = append(reasons, "Premium positioning capped at 1.5x competitor P50")
		}
	}

	if in.Conservative && (in.IsHoliday || in.OccupancyRate > 0.9) {
		floor := in.BasePrice.Mul(cfg.ConservativeFloorFactor)
		if price.LessThan(floor) {
			price = floor
			reasons = append(reasons, "Conservative-mode event floor applied")
		}
	}

	return GuardrailResult{Price: price, Reasons: reasons}
}

// Snap projects price onto the nearest value in grid. Ties break low (the
// lower of two equidistant candidates wins), per spec.
func Snap(price decimal.Decimal, grid []decimal.Decimal) decimal.Decimal {
	if len(grid) == 0 {
		return price
	}
	best := grid[0]
	bestDist := price.Sub(best).Abs()
	for _, candidate := range grid[1:] {
		dist := price.Sub(candidate).Abs()
		switch {
		case dist.LessThan(bestDist):
			best = candidate
			bestDist = dist
		case dist.Equal(bestDist) && candidate.LessThan(best):
			best = candidate
		}
	}
	return best
}

// ConfidenceBand computes the +/-10% band, widened to +/-15% for leads
// beyond wideLeadDays, then independently clamps each edge through Apply.
func ConfidenceBand(cfg config.Config, price decimal.Decimal, leadDays int, in GuardrailInput) domain.ConfidenceBand {
	pct := cfg.ConfidenceBandPct
	if leadDays > cfg.ConfidenceBandWideLeadDays {
		pct = cfg.ConfidenceBandWidePct
	}
	lowerRaw := price.Mul(decimal.NewFromFloat(1 - pct))
	upperRaw := price.Mul(decimal.NewFromFloat(1 + pct))

	lowerIn := in
	lowerIn.Price = lowerRaw
	upperIn := in
	upperIn.Price = upperRaw

	lower := Apply(cfg.Guardrails, lowerIn).Price
	upper := Apply(cfg.Guardrails, upperIn).Price

	return domain.ConfidenceBand{Lower: lower, Upper: upper}
}

// Grid builds the five-rung price grid at -10%, -5%, 0, +5%, +10% around
// center, each independently clamped. This is the *pre-snap* grid, kept in
// the quote for UI transparency even after the final price snaps.
func Grid(cfg config.GuardrailConfig, center decimal.Decimal, offsetsPct []float64, in GuardrailInput) []domain.PriceGridRung {
	rungs := make([]domain.PriceGridRung, 0, len(offsetsPct))
	for _, offsetPct := range offsetsPct {
		raw := center.Mul(decimal.NewFromFloat(1 + offsetPct/100))
		rungIn := in
		rungIn.Price = raw
		clamped := Apply(cfg, rungIn).Price
		rungs = append(rungs, domain.PriceGridRung{OffsetPercent: offsetPct, Price: clamped})
	}
	return rungs
}

// ParseGrid converts caller-supplied allowed-price-grid floats into
// decimals, rejecting non-positive values as an input error by returning
// an error the caller (C4) treats as a validation failure.
func ParseGrid(values []float64) ([]decimal.Decimal, error) {
	grid := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			return nil, fmt.Errorf("allowed_price_grid values must be strictly positive, got %v", v)
		}
		grid = append(grid, decimal.NewFromFloat(v))
	}
	return grid, nil
}
