// Package domain holds the typed request/response shapes shared across the
// pricing pipeline. Everything here is a concrete struct, never a
// map[string]interface{} — features, requests, and quotes all have a fixed
// schema that the compiler enforces.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product describes what is being booked.
type Product struct {
	Type             string `json:"type"`
	Refundable       bool   `json:"refundable"`
	LengthOfStayDays int    `json:"length_of_stay_days"`
}

// Inventory describes remaining capacity for the stay date.
type Inventory struct {
	Capacity       int `json:"capacity"`
	Remaining      int `json:"remaining"`
	OverbookLimit  int `json:"overbook_limit"`
}

// OccupancyRate returns the fraction of capacity currently booked.
func (i Inventory) OccupancyRate() float64 {
	if i.Capacity <= 0 {
		return 0
	}
	booked := i.Capacity - i.Remaining
	if booked < 0 {
		booked = 0
	}
	return float64(booked) / float64(i.Capacity)
}

// Weather carries the two weather signals the feature assembler consumes.
type Weather struct {
	TemperatureC  float64 `json:"temperature_c"`
	PrecipitationMM float64 `json:"precipitation_mm"`
}

// Context carries calendar and environment signals for a stay date.
type Context struct {
	Season     string  `json:"season"` // Spring, Summer, Fall, Winter
	DayOfWeek  int     `json:"day_of_week"` // 0=Monday .. 6=Sunday (Python datetime.weekday() convention)
	Weather    Weather `json:"weather"`
	IsHoliday  bool    `json:"is_holiday"`
}

// Toggles are caller-supplied routing hints for a single quote request.
type Toggles struct {
	Aggressive      bool `json:"aggressive"`
	Conservative    bool `json:"conservative"`
	UseML           bool `json:"use_ml"`
	UseCompetitors  bool `json:"use_competitors"`
	ApplySeasonality bool `json:"apply_seasonality"`
}

// PricingRequest is the input to the pricing pipeline for one property/date.
type PricingRequest struct {
	PropertyID string    `json:"property_id"`
	UserID     string    `json:"user_id"`
	StayDate   time.Time `json:"stay_date"`
	QuoteTime  time.Time `json:"quote_time"`
	Product    Product   `json:"product"`
	Inventory  Inventory `json:"inventory"`
	Context    Context   `json:"context"`
	Toggles    Toggles   `json:"toggles"`
	BasePrice  decimal.Decimal `json:"base_price"`
	AllowedPriceGrid []decimal.Decimal `json:"allowed_price_grid,omitempty"`
}

// LeadDays is the number of days between quote time and stay date.
func (r PricingRequest) LeadDays() int {
	d := r.StayDate.Sub(r.QuoteTime)
	days := int(d.Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// MarketBand is the competitor price band for a property/date, from C1.
type MarketBand struct {
	P10              decimal.Decimal
	P50              decimal.Decimal
	P90              decimal.Decimal
	CompetitorCount  int
	Source           string
	Available        bool
}

// FeatureRecord is the fixed feature schema built by the feature assembler
// and consumed by both the scoring model and the retrain pipeline. The two
// must always agree on this shape.
type FeatureRecord struct {
	DayOfWeek       float64
	Month           float64
	IsWeekend       float64
	SeasonSpring    float64
	SeasonSummer    float64
	SeasonFall      float64
	SeasonWinter    float64
	TemperatureC    float64
	PrecipitationMM float64
	IsHoliday       float64
	CompP10         float64
	CompP50         float64
	CompP90         float64
	OccupancyRate   float64
	LeadTimeDays    float64
	LengthOfStay    float64
	IsRefundable    float64
	IsLastMinute    float64
	// Interaction terms.
	OccupancyWeekendInteraction float64
	LeadTimeLastMinuteInteraction float64
}

// Names returns the feature names in the same order Values does, used by
// the model registry to align a FeatureRecord with a model's expected
// input vector.
func (f FeatureRecord) Names() []string {
	return []string{
		"day_of_week", "month", "is_weekend",
		"season_spring", "season_summer", "season_fall", "season_winter",
		"temperature_c", "precipitation_mm", "is_holiday",
		"comp_p10", "comp_p50", "comp_p90",
		"occupancy_rate", "lead_time_days", "length_of_stay",
		"is_refundable", "is_last_minute",
		"occupancy_weekend_interaction", "lead_time_last_minute_interaction",
	}
}

// Values returns the feature vector in Names() order.
func (f FeatureRecord) Values() []float64 {
	return []float64{
		f.DayOfWeek, f.Month, f.IsWeekend,
		f.SeasonSpring, f.SeasonSummer, f.SeasonFall, f.SeasonWinter,
		f.TemperatureC, f.PrecipitationMM, f.IsHoliday,
		f.CompP10, f.CompP50, f.CompP90,
		f.OccupancyRate, f.LeadTimeDays, f.LengthOfStay,
		f.IsRefundable, f.IsLastMinute,
		f.OccupancyWeekendInteraction, f.LeadTimeLastMinuteInteraction,
	}
}

// ModelType enumerates the model families the registry can hold.
type ModelType string

const (
	ModelConversion ModelType = "conversion"
	ModelADR        ModelType = "adr"
	ModelRevPAR     ModelType = "revpar"
)

// ModelMetrics holds the evaluation metrics recorded at training time.
type ModelMetrics struct {
	AUC  float64 `json:"auc,omitempty"`
	RMSE float64 `json:"rmse,omitempty"`
}

// ModelArtifact is a trained, versioned model plus its metadata.
type ModelArtifact struct {
	PropertyID      string
	ModelType       ModelType
	Version         string
	FeatureNames    []string
	Metrics         ModelMetrics
	Checksum        string
	TrainedAt       time.Time
	Payload         []byte // opaque serialized booster
}

// PriceGridRung is one of the five price points offered alongside the
// recommended price.
type PriceGridRung struct {
	OffsetPercent float64         `json:"offset_percent"`
	Price         decimal.Decimal `json:"price"`
}

// ConfidenceBand is the +/- interval around the recommended price.
type ConfidenceBand struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// ExpectedOccupancy is the pipeline's estimate of booking likelihood.
type ExpectedOccupancy struct {
	Probability float64 `json:"probability"`
	Source      string  `json:"source"` // "rule" or "ml"
}

// PriceQuote is the tagged-variant result of the pricing pipeline: a
// Quote, or a DegradedQuote carrying a reason. There is no error return for
// a priceable request — only a malformed request reaches the Input-error
// path at the HTTP layer.
type PriceQuote struct {
	PropertyID        string            `json:"property_id"`
	Price             decimal.Decimal   `json:"price"`
	PriceGrid         []PriceGridRung   `json:"price_grid"`
	ConfidenceBand    ConfidenceBand    `json:"confidence_band"`
	Expected          ExpectedOccupancy `json:"expected"`
	Reasons           []string          `json:"reasons"`
	BanditArmDelta    *float64          `json:"bandit_arm_delta,omitempty"`
	ExperimentVariant string            `json:"experiment_variant,omitempty"`
	ActionID          string            `json:"action_id,omitempty"`
	Degraded          *string           `json:"degraded,omitempty"`
	QuotedAt          time.Time         `json:"quoted_at"`
	SafetyInfo        map[string]interface{} `json:"safety,omitempty"`
}

// IsDegraded reports whether this quote fell back to a degraded path.
func (q PriceQuote) IsDegraded() bool { return q.Degraded != nil }

// Safety returns the quote's safety/explainability metadata map, never nil.
func (q PriceQuote) Safety() map[string]interface{} {
	if q.SafetyInfo == nil {
		return map[string]interface{}{}
	}
	return q.SafetyInfo
}

// Outcome is a recorded booking decision for a previously issued quote.
type Outcome struct {
	PropertyID   string          `json:"property_id"`
	Timestamp    time.Time       `json:"timestamp"`
	QuotedPrice  decimal.Decimal `json:"quoted_price"`
	Accepted     bool            `json:"accepted"`
	FinalPrice   *decimal.Decimal `json:"final_price,omitempty"`
	CompP50      *decimal.Decimal `json:"comp_p50,omitempty"`
	ActionID     string          `json:"action_id,omitempty"`
	ContextJSON  string          `json:"context,omitempty"`
}

// ExperimentConfig defines an A/B experiment routing ML vs rule pricing.
type ExperimentConfig struct {
	ExperimentID        string
	MLTrafficPercentage int // 0..100
	Active              bool
}

// BanditArm is one of the seven fixed price-delta arms.
type BanditArm struct {
	DeltaPercent float64
	Successes    float64
	Failures     float64
	TotalReward  float64
	QValue       float64
	Pulls        int64
}

// BanditContext is the conditioning key bandit state is partitioned by.
type BanditContext struct {
	PropertyID string
	Season     string
}

// BanditAction records a single arm pull awaiting a reward.
type BanditAction struct {
	ActionID     string
	PropertyID   string
	ArmDelta     float64
	SelectedAt   time.Time
	Policy       string // "epsilon_greedy" or "thompson_sampling"
}

// BanditReward is posted back against a previously selected action.
type BanditReward struct {
	ActionID string
	Reward   float64 // revenue if booked, 0 if not booked
}
