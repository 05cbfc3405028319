package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/features"
	"github.com/jengu-tech/pricing-service/internal/perr"
	"github.com/jengu-tech/pricing-service/internal/pricingx"
)

// CompetitorSource resolves a market band for one property/date. Satisfied
// by internal/competitor.CachedGateway.
type CompetitorSource interface {
	FetchBand(ctx context.Context, propertyID string, stayDate time.Time) (domain.MarketBand, error)
}

// Scorer predicts a conversion probability from a feature record.
// Satisfied by internal/modelregistry.ConversionScorer.
type Scorer interface {
	PredictConversion(ctx context.Context, propertyID string, features domain.FeatureRecord) (float64, error)
}

// ExperimentRouter decides which pricing policy an (property, user) pair
// sees for an active experiment. Satisfied by internal/abtest.Assigner.
type ExperimentRouter interface {
	Route(ctx context.Context, propertyID, userID string) (variant, experimentID string, active bool)
}

// BanditRouter selects a price-delta arm for a property/context. Satisfied
// by internal/bandit.Bandit.
type BanditRouter interface {
	SelectArm(ctx context.Context, propertyID, season string, conservative bool) (domain.BanditAction, bool)
}

// QuoteLogger records a quote log entry for observability; see spec.md
// §4.4 step 14. Satisfied by obslog-backed loggers in cmd/pricing-api.
type QuoteLogger interface {
	LogQuote(entry QuoteLogEntry)
}

// QuoteLogEntry is one scoring decision, logged after every request.
type QuoteLogEntry struct {
	PropertyID   string
	UserID       string
	Price        decimal.Decimal
	PricingMethod string // MLScored | RuleScored | MLDegradedToRule | Fallback
	ExperimentID string
	ActionID     string
	Reasons      []string
	LatencyMS    float64
}

// Pipeline orchestrates one scoring request end to end (C4).
type Pipeline struct {
	competitors CompetitorSource
	scorer      Scorer
	experiments ExperimentRouter
	bandit      BanditRouter
	rulePricer  *RuleBasedPricer
	logger      *zap.Logger
	quoteLog    QuoteLogger
	cfg         *config.Config
}

// New constructs a Pipeline. experiments and bandit may be nil, meaning
// neither experimentation layer is wired for this deployment; routing
// then always falls through to the ML/rule toggle path.
func New(competitors CompetitorSource, scorer Scorer, experiments ExperimentRouter, bandit BanditRouter, logger *zap.Logger, quoteLog QuoteLogger, cfg *config.Config) *Pipeline {
	return &Pipeline{
		competitors: competitors,
		scorer:      scorer,
		experiments: experiments,
		bandit:      bandit,
		rulePricer:  NewRuleBasedPricer(),
		logger:      logger,
		quoteLog:    quoteLog,
		cfg:         cfg,
	}
}

// Score runs the full scoring algorithm for req. Only a malformed request
// returns an error; every other failure mode degrades to a safe-default
// quote, per spec.md's load-bearing "pricing never 5xxs" contract.
func (p *Pipeline) Score(ctx context.Context, req domain.PricingRequest) (domain.PriceQuote, error) {
	started := time.Now()

	// Step 1: validate.
	if err := validate(req); err != nil {
		return domain.PriceQuote{}, perr.New(perr.Input, "pricing.Score", err.Error(), err)
	}

	quote := p.scoreRecovered(ctx, req)
	quote.QuotedAt = time.Now()

	if p.quoteLog != nil {
		method := "RuleScored"
		switch {
		case quote.Degraded != nil:
			method = "Fallback"
		case quote.Safety()["pricing_method"] == "ml_elasticity":
			method = "MLScored"
		case quote.Safety()["pricing_method"] == "ml_degraded_to_rule":
			method = "MLDegradedToRule"
		}
		p.quoteLog.LogQuote(QuoteLogEntry{
			PropertyID:    req.PropertyID,
			UserID:        req.UserID,
			Price:         quote.Price,
			PricingMethod: method,
			ExperimentID:  quote.ExperimentVariant,
			ActionID:      quote.ActionID,
			Reasons:       quote.Reasons,
			LatencyMS:     float64(time.Since(started).Microseconds()) / 1000.0,
		})
	}

	return quote, nil
}

// scoreRecovered wraps scoreInner with panic recovery implementing the
// safe-default path: any internal exception escaping steps 2-13 becomes a
// fallback quote at the property's base price, never an error.
func (p *Pipeline) scoreRecovered(ctx context.Context, req domain.PricingRequest) (quote domain.PriceQuote) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pricing pipeline panic recovered, emitting safe default",
				zap.Any("panic", r), zap.String("property_id", req.PropertyID))
			quote = p.safeDefault(req, "Fallback pricing due to calculation error")
		}
	}()
	return p.scoreInner(ctx, req)
}

func (p *Pipeline) scoreInner(ctx context.Context, req domain.PricingRequest) domain.PriceQuote {
	occupancyRate := req.Inventory.OccupancyRate()
	leadDays := req.LeadDays()

	// Step 3: fetch competitor band; proceed regardless of outcome.
	var band domain.MarketBand
	if req.Toggles.UseCompetitors && p.competitors != nil {
		fetched, err := p.competitors.FetchBand(ctx, req.PropertyID, req.StayDate)
		if err != nil {
			p.logger.Info("competitor band unavailable, proceeding without cap",
				zap.String("property_id", req.PropertyID), zap.Error(err))
		} else {
			band = fetched
		}
	}

	// Step 4: routing decision.
	variant, experimentID := "", ""
	experimentRouted := false
	if p.experiments != nil {
		v, eid, active := p.experiments.Route(ctx, req.PropertyID, req.UserID)
		if active {
			variant, experimentID, experimentRouted = v, eid, true
		}
	}

	var action domain.BanditAction
	banditRouted := false
	if experimentRouted && variant == "rule_based" {
		// Experiment assigns rule_based: skip straight to step 7.
	} else if req.Toggles.UseML && p.bandit != nil {
		a, ok := p.bandit.SelectArm(ctx, req.PropertyID, req.Context.Season, req.Toggles.Conservative)
		if ok {
			action, banditRouted = a, true
		}
	}

	var (
		price          decimal.Decimal
		conversionProb float64
		mlScored       bool
		mlDegraded     bool
		reasons        []string
	)

	useML := req.Toggles.UseML && !(experimentRouted && variant == "rule_based") && p.scorer != nil

	if useML {
		feats := features.Assemble(req, band)
		prob, err := p.scorer.PredictConversion(ctx, req.PropertyID, feats)
		if err != nil {
			p.logger.Info("ML scoring unavailable, degrading to rule-based",
				zap.String("property_id", req.PropertyID), zap.Error(err))
			mlDegraded = true
		} else {
			mlQuote := ScoreElasticity(req, band, prob)
			price, conversionProb = mlQuote.Price, prob
			reasons = mlQuote.Reasons
			mlScored = true
		}
	}

	if !mlScored {
		ruleQuote := p.rulePricer.Price(req, band)
		price = ruleQuote.Price
		reasons = ruleQuote.Reasons
	}

	// Step 8: bandit adjustment.
	var armDelta *float64
	var actionID string
	if banditRouted {
		delta := action.ArmDelta
		armDelta = &delta
		actionID = action.ActionID
		price = price.Mul(decimal.NewFromFloat(1 + delta/100))
		reasons = append(reasons, fmt.Sprintf("Bandit arm delta applied: %+.0f%%", delta))
	}

	// Step 9: guardrails.
	var compP50 *decimal.Decimal
	if band.Available {
		p50 := band.P50
		compP50 = &p50
	}
	guardIn := pricingx.GuardrailInput{
		Price:         price,
		BasePrice:     req.BasePrice,
		CompetitorP50: compP50,
		Conservative:  req.Toggles.Conservative,
		IsHoliday:     req.Context.IsHoliday,
		OccupancyRate: occupancyRate,
	}
	guardResult := pricingx.Apply(p.cfg.Guardrails, guardIn)
	price = guardResult.Price
	reasons = append(reasons, guardResult.Reasons...)

	// Step 10: price grid, independently clamped, built from the pre-snap
	// price so it stays meaningful for UI display even after snapping.
	grid := pricingx.Grid(p.cfg.Guardrails, price, p.cfg.GridOffsetsPct, guardIn)

	// Step 11: grid snap, only if the caller supplied an allowed grid; the
	// price_grid field above stays the pre-snap rungs for UI display.
	if len(req.AllowedPriceGrid) > 0 {
		price = pricingx.Snap(price, req.AllowedPriceGrid)
	}

	// Step 12: confidence band, centered on the final (post-snap) price so
	// price always falls within [lower, upper].
	confBand := pricingx.ConfidenceBand(*p.cfg, price, leadDays, guardIn)

	// Step 13: expected outcomes.
	demandSignal := p.cfg.RuleExpectedOccupancySignal
	source := "rule"
	if mlScored {
		demandSignal = p.cfg.MLExpectedOccupancyFactor * conversionProb
		source = "ml"
	}
	occEnd := occupancyRate + demandSignal
	if occEnd > 1.0 {
		occEnd = 1.0
	}

	if mlDegraded {
		reasons = append(reasons, "Model unavailable, degraded to rule-based pricing")
	}

	quote := domain.PriceQuote{
		PropertyID:     req.PropertyID,
		Price:          price,
		PriceGrid:      grid,
		ConfidenceBand: confBand,
		Expected: domain.ExpectedOccupancy{
			Probability: occEnd,
			Source:      source,
		},
		Reasons:        reasons,
		BanditArmDelta: armDelta,
		ActionID:       actionID,
	}
	if experimentRouted {
		quote.ExperimentVariant = experimentID
	}

	quote = withSafety(quote, pricingMethodOf(mlScored, mlDegraded), conversionProb, occupancyRate, leadDays, req, band)
	return quote
}

// withSafety attaches the safety/explainability metadata block described
// in spec.md §6's GetPriceQuote output.
func withSafety(quote domain.PriceQuote, method string, conversionProb float64, occupancyRate float64, leadDays int, req domain.PricingRequest, band domain.MarketBand) domain.PriceQuote {
	safety := map[string]interface{}{
		"pricing_method": method,
		"occupancy_rate": occupancyRate,
		"lead_days":      leadDays,
		"season":         req.Context.Season,
		"day_of_week":    req.Context.DayOfWeek,
	}
	if method == "ml_elasticity" {
		safety["ml_conversion_prob"] = conversionProb
	}
	if band.Available {
		safety["competitor_data"] = map[string]interface{}{
			"p10": band.P10, "p50": band.P50, "p90": band.P90, "count": band.CompetitorCount,
		}
	}
	quote.SafetyInfo = safety
	return quote
}

func pricingMethodOf(mlScored, mlDegraded bool) string {
	switch {
	case mlScored:
		return "ml_elasticity"
	case mlDegraded:
		return "ml_degraded_to_rule"
	default:
		return "rule_based"
	}
}

// safeDefault is the named safe-default branch: property base price, a
// wide confidence band, and a single explanatory reason. Never an error.
func (p *Pipeline) safeDefault(req domain.PricingRequest, reason string) domain.PriceQuote {
	price := req.BasePrice
	if price.IsZero() {
		price = p.cfg.Guardrails.AbsoluteMin
	}
	lower := price.Mul(decimal.NewFromFloat(0.85))
	upper := price.Mul(decimal.NewFromFloat(1.15))
	degraded := reason

	return domain.PriceQuote{
		PropertyID: req.PropertyID,
		Price:      price,
		PriceGrid: []domain.PriceGridRung{
			{OffsetPercent: 0, Price: price},
		},
		ConfidenceBand: domain.ConfidenceBand{Lower: lower, Upper: upper},
		Expected:       domain.ExpectedOccupancy{Probability: req.Inventory.OccupancyRate(), Source: "rule"},
		Reasons:        []string{reason},
		Degraded:       &degraded,
		QuotedAt:       time.Now(),
		SafetyInfo: map[string]interface{}{
			"pricing_method": "fallback",
			"occupancy_rate": req.Inventory.OccupancyRate(),
		},
	}
}

func validate(req domain.PricingRequest) error {
	if req.PropertyID == "" {
		return fmt.Errorf("property_id is required")
	}
	if req.StayDate.Before(req.QuoteTime) {
		return fmt.Errorf("stay_date must not be before quote_time")
	}
	if req.Product.LengthOfStayDays < 1 {
		return fmt.Errorf("length_of_stay_days must be >= 1")
	}
	if req.Inventory.Capacity <= 0 {
		return fmt.Errorf("inventory.capacity must be > 0")
	}
	if req.Inventory.Remaining < 0 || req.Inventory.Remaining > req.Inventory.Capacity {
		return fmt.Errorf("inventory.remaining must be within [0, capacity]")
	}
	switch req.Context.Season {
	case "Spring", "Summer", "Fall", "Winter":
	default:
		return fmt.Errorf("context.season must be one of Spring, Summer, Fall, Winter")
	}
	if req.Context.DayOfWeek < 0 || req.Context.DayOfWeek > 6 {
		return fmt.Errorf("context.day_of_week must be within 0..6")
	}
	return nil
}
