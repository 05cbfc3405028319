// Package features turns a PricingRequest plus a resolved market band into
// the fixed-schema domain.FeatureRecord that both the scoring model and the
// retrain pipeline consume. Grounded on the feature schema used by
// original_source/pricing-service's training feature builder (temporal
// derivatives, one-hot season, interaction terms).
package features

import (
	"time"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

const lastMinuteLeadDaysThreshold = 3

// Assemble builds a FeatureRecord from a request and its resolved market
// band. If the band is unavailable, competitor fields are zeroed — callers
// are expected to treat that degraded signal the same way the rule-based
// pricer does when it has no competitor read.
func Assemble(req domain.PricingRequest, band domain.MarketBand) domain.FeatureRecord {
	leadDays := float64(req.LeadDays())
	isWeekend := 0.0
	if req.Context.DayOfWeek == 5 || req.Context.DayOfWeek == 6 {
		isWeekend = 1.0
	}
	isLastMinute := 0.0
	if req.LeadDays() <= lastMinuteLeadDaysThreshold {
		isLastMinute = 1.0
	}
	isRefundable := 0.0
	if req.Product.Refundable {
		isRefundable = 1.0
	}
	isHoliday := 0.0
	if req.Context.IsHoliday {
		isHoliday = 1.0
	}

	occupancy := req.Inventory.OccupancyRate()

	f := domain.FeatureRecord{
		DayOfWeek:       float64(req.Context.DayOfWeek),
		Month:           float64(monthOf(req.StayDate)),
		IsWeekend:       isWeekend,
		TemperatureC:    req.Context.Weather.TemperatureC,
		PrecipitationMM: req.Context.Weather.PrecipitationMM,
		IsHoliday:       isHoliday,
		OccupancyRate:   occupancy,
		LeadTimeDays:    leadDays,
		LengthOfStay:    float64(req.Product.LengthOfStayDays),
		IsRefundable:    isRefundable,
		IsLastMinute:    isLastMinute,
	}

	switch req.Context.Season {
	case "Spring":
		f.SeasonSpring = 1.0
	case "Summer":
		f.SeasonSummer = 1.0
	case "Fall":
		f.SeasonFall = 1.0
	case "Winter":
		f.SeasonWinter = 1.0
	}

	if band.Available {
		f.CompP10, _ = band.P10.Float64()
		f.CompP50, _ = band.P50.Float64()
		f.CompP90, _ = band.P90.Float64()
	}

	f.OccupancyWeekendInteraction = occupancy * isWeekend
	f.LeadTimeLastMinuteInteraction = leadDays * isLastMinute

	return f
}

func monthOf(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(t.Month())
}
