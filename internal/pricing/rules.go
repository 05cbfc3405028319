package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// RuleBasedPricer is a pure function of a PricingRequest and market band:
// the same multiplier cascade the ML path uses, minus the elasticity
// factor, plus refundability premium and strategy-toggle multipliers.
// Acts as both the fallback when ML is unavailable and the exploration
// baseline the bandit perturbs.
type RuleBasedPricer struct{}

// NewRuleBasedPricer constructs a RuleBasedPricer.
func NewRuleBasedPricer() *RuleBasedPricer {
	return &RuleBasedPricer{}
}

// RuleQuote is the rule path's pre-guardrail price plus the reasons it
// accumulated along the way.
type RuleQuote struct {
	Price   decimal.Decimal
	Base    decimal.Decimal
	Reasons []string
}

// Price computes the rule-based price for req given a (possibly
// unavailable) market band.
func (p *RuleBasedPricer) Price(req domain.PricingRequest, band domain.MarketBand) RuleQuote {
	base := resolveBase(req, band)
	in := fromRequest(req)

	price := baseCascade(base, in, req.Toggles.ApplySeasonality)

	var reasons []string
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

	if req.Product.Refundable {
		price = price.Mul(decimal.NewFromFloat(1.05))
		reasons = append(reasons, "Refundability premium")
	}
	if req.Toggles.Aggressive {
		price = price.Mul(decimal.NewFromFloat(1.15))
		reasons = append(reasons, "Aggressive pricing strategy active")
	}
	if req.Toggles.Conservative {
		price = price.Mul(decimal.NewFromFloat(0.90))
		reasons = append(reasons, "Conservative pricing strategy active")
	}

	return RuleQuote{Price: price, Base: base, Reasons: reasons}
}
