package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// MLQuote is the ML path's pre-guardrail price plus its conversion
// probability and accumulated reasons.
type MLQuote struct {
	Price          decimal.Decimal
	Base           decimal.Decimal
	ConversionProb float64
	Reasons        []string
}

// ScoreElasticity computes the ML-elasticity price from a predicted
// conversion probability, following the same occupancy/lead-time/seasonal
// /day-of-week/LOS cascade as the rule path, scaled first by the
// elasticity factor derived from conversionProb.
func ScoreElasticity(req domain.PricingRequest, band domain.MarketBand, conversionProb float64) MLQuote {
	base := resolveBase(req, band)
	in := fromRequest(req)

	price := base.Mul(elasticityFactor(conversionProb))
	price = baseCascade(price, in, req.Toggles.ApplySeasonality)

	reasons := []string{"ML elasticity"}
	if band.Available {
		reasons = append(reasons, "Competitive positioning against market P50")
	}
	if in.occupancyRate > 0.8 {
		reasons = append(reasons, "High occupancy demand signal")
	} else if in.occupancyRate < 0.3 {
		reasons = append(reasons, "Low demand")
	}
	if in.leadDays < 7 {
		reasons = append(reasons, "Last-minute lead-time signal")
	} else if in.leadDays > 90 {
		reasons = append(reasons, "Early-booking lead-time signal")
	}
	if req.Toggles.ApplySeasonality {
		reasons = append(reasons, "Seasonal signal applied: "+in.season)
	}
	if in.dayOfWeek == 5 || in.dayOfWeek == 6 {
		reasons = append(reasons, "Weekend premium")
	}
	if in.los >= 3 {
		reasons = append(reasons, "Length-of-stay discount")
	}

	return MLQuote{Price: price, Base: base, ConversionProb: conversionProb, Reasons: reasons}
}
