// Package pricing implements the scoring pipeline (C4) and the
// rule-based pricer (C5). Grounded on the teacher's RulesEngine.go
// multiplicative cascade (occupancy/seasonal/market condition multipliers
// chained onto a base fare), retargeted from airline fare classes to
// hospitality nightly rates.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// seasonalFactor returns the fixed seasonal multiplier for season.
func seasonalFactor(season string) decimal.Decimal {
	switch season {
	case "Spring":
		return decimal.NewFromFloat(1.1)
	case "Summer":
		return decimal.NewFromFloat(1.3)
	case "Fall":
		return decimal.NewFromFloat(1.0)
	case "Winter":
		return decimal.NewFromFloat(0.9)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

// dayOfWeekFactor returns the fixed day-of-week multiplier, peaking Saturday.
// dayOfWeek follows the domain.Context convention: 0=Monday .. 6=Sunday.
func dayOfWeekFactor(dayOfWeek int) decimal.Decimal {
	switch dayOfWeek {
	case 0: // Monday
		return decimal.NewFromFloat(0.95)
	case 1: // Tuesday
		return decimal.NewFromFloat(0.95)
	case 2: // Wednesday
		return decimal.NewFromFloat(1.0)
	case 3: // Thursday
		return decimal.NewFromFloat(1.05)
	case 4: // Friday
		return decimal.NewFromFloat(1.15)
	case 5: // Saturday
		return decimal.NewFromFloat(1.25)
	case 6: // Sunday
		return decimal.NewFromFloat(1.1)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

func elasticityFactor(conversionProb float64) decimal.Decimal {
	switch {
	case conversionProb > 0.7:
		return decimal.NewFromFloat(1.20)
	case conversionProb > 0.5:
		return decimal.NewFromFloat(1.10)
	case conversionProb > 0.3:
		return decimal.NewFromFloat(1.00)
	default:
		return decimal.NewFromFloat(0.90)
	}
}

func occupancyPressure(occupancyRate float64) decimal.Decimal {
	switch {
	case occupancyRate > 0.8:
		return decimal.NewFromFloat(1.1)
	case occupancyRate < 0.3:
		return decimal.NewFromFloat(0.95)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

func leadTimePressure(leadDays int) decimal.Decimal {
	switch {
	case leadDays < 7:
		return decimal.NewFromFloat(1.15)
	case leadDays > 90:
		return decimal.NewFromFloat(0.95)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

func losDiscount(los int) decimal.Decimal {
	switch {
	case los >= 7:
		return decimal.NewFromFloat(0.85)
	case los >= 3:
		return decimal.NewFromFloat(0.95)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

// cascadeInputs bundles the signals every cascade multiplier reads from,
// independent of whether the caller is the ML path or the rule path.
type cascadeInputs struct {
	occupancyRate float64
	leadDays      int
	season        string
	dayOfWeek     int
	los           int
}

func fromRequest(req domain.PricingRequest) cascadeInputs {
	return cascadeInputs{
		occupancyRate: req.Inventory.OccupancyRate(),
		leadDays:      req.LeadDays(),
		season:        req.Context.Season,
		dayOfWeek:     req.Context.DayOfWeek,
		los:           req.Product.LengthOfStayDays,
	}
}

// baseCascade applies the multipliers common to both the ML path and the
// rule path: occupancy, lead-time, season (if toggled), day-of-week, LOS.
func baseCascade(base decimal.Decimal, in cascadeInputs, applySeasonality bool) decimal.Decimal {
	price := base
	price = price.Mul(occupancyPressure(in.occupancyRate))
	price = price.Mul(leadTimePressure(in.leadDays))
	if applySeasonality {
		price = price.Mul(seasonalFactor(in.season))
	}
	price = price.Mul(dayOfWeekFactor(in.dayOfWeek))
	price = price.Mul(losDiscount(in.los))
	return price
}

// resolveBase picks the base price for the cascade: competitor P50 if
// present, else the request's configured base price.
func resolveBase(req domain.PricingRequest, band domain.MarketBand) decimal.Decimal {
	if band.Available {
		return band.P50
	}
	return req.BasePrice
}
