// Package httpapi exposes the pricing service's RPC surface over HTTP,
// grounded on the teacher's PricingController: gorilla/mux routing, a
// request-ID header, JSON request/response bodies, security headers
// grounded on api_gateway/src/middleware.SecurityHeaders, and Prometheus
// instrumentation in the quote, outcome-submission and drift handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/drift"
	"github.com/jengu-tech/pricing-service/internal/metrics"
	"github.com/jengu-tech/pricing-service/internal/obslog"
	"github.com/jengu-tech/pricing-service/internal/outcomes"
	"github.com/jengu-tech/pricing-service/internal/perr"
	"github.com/jengu-tech/pricing-service/internal/pricingx"
)

// Pricer is the narrow pipeline dependency the router needs.
type Pricer interface {
	Score(ctx context.Context, req domain.PricingRequest) (domain.PriceQuote, error)
}

// OutcomeSubmitter is the narrow outcomes-store dependency the outcomes
// endpoints need.
type OutcomeSubmitter interface {
	Append(ctx context.Context, propertyID string, batch []domain.Outcome) (outcomes.AppendResult, error)
	Stats(ctx context.Context, propertyID string) (outcomes.Stats, error)
}

// ModelInfoProvider reports the currently loaded model version for a
// property, for GetModelInfo.
type ModelInfoProvider interface {
	LatestVersion(ctx context.Context, propertyID string, modelType domain.ModelType) (string, error)
}

// DriftChecker runs an on-demand C8 drift check for one property.
type DriftChecker interface {
	CheckDrift(ctx context.Context, propertyID string) (drift.Result, error)
}

// Server wires the pricing HTTP surface.
type Server struct {
	pricer    Pricer
	outcomes  OutcomeSubmitter
	models    ModelInfoProvider
	drift     DriftChecker
	logger    *obslog.Logger
	metrics   *metrics.Metrics
	startedAt time.Time
	version   string
}

// New constructs a Server. drift may be nil, meaning the on-demand drift
// endpoint is disabled for this deployment.
func New(pricer Pricer, outcomes OutcomeSubmitter, models ModelInfoProvider, driftChecker DriftChecker, logger *obslog.Logger, m *metrics.Metrics, version string) *Server {
	return &Server{pricer: pricer, outcomes: outcomes, models: models, drift: driftChecker, logger: logger, metrics: m, startedAt: time.Now(), version: version}
}

// Router builds the gorilla/mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(securityHeadersMiddleware)
	r.HandleFunc("/v1/properties/{property_id}/quote", s.handleGetPriceQuote).Methods(http.MethodPost)
	r.HandleFunc("/v1/properties/{property_id}/outcomes", s.handleSubmitOutcomes).Methods(http.MethodPost)
	r.HandleFunc("/v1/properties/{property_id}/outcomes/stats", s.handleOutcomeStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/properties/{property_id}/drift", s.handleDriftCheck).Methods(http.MethodGet)
	r.HandleFunc("/v1/properties/{property_id}/models/{model_type}", s.handleGetModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthCheck).Methods(http.MethodGet)
	return r
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := obslog.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

type priceQuoteRequestBody struct {
	UserID    string  `json:"user_id"`
	StayDate  string  `json:"stay_date"`
	QuoteTime string  `json:"quote_time"`
	BasePrice float64 `json:"base_price"`
	Product   struct {
		Type             string `json:"type"`
		Refundable       bool   `json:"refundable"`
		LengthOfStayDays int    `json:"length_of_stay_days"`
	} `json:"product"`
	Inventory struct {
		Capacity      int `json:"capacity"`
		Remaining     int `json:"remaining"`
		OverbookLimit int `json:"overbook_limit"`
	} `json:"inventory"`
	Context struct {
		Season    string `json:"season"`
		DayOfWeek int    `json:"day_of_week"`
		IsHoliday bool   `json:"is_holiday"`
		Weather   struct {
			Temperature   float64 `json:"temperature"`
			Precipitation float64 `json:"precipitation"`
		} `json:"weather"`
	} `json:"context"`
	Toggles struct {
		Aggressive       bool `json:"aggressive"`
		Conservative     bool `json:"conservative"`
		UseML            bool `json:"use_ml"`
		UseCompetitors   bool `json:"use_competitors"`
		ApplySeasonality bool `json:"apply_seasonality"`
	} `json:"toggles"`
	AllowedPriceGrid []float64 `json:"allowed_price_grid,omitempty"`
}

func (s *Server) handleGetPriceQuote(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	logger := s.logger.WithContext(r.Context())
	propertyID := mux.Vars(r)["property_id"]

	var body priceQuoteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, perr.New(perr.Input, "httpapi.GetPriceQuote", "malformed JSON body", err))
		return
	}

	req, err := toPricingRequest(propertyID, body)
	if err != nil {
		writeError(w, perr.New(perr.Input, "httpapi.GetPriceQuote", err.Error(), err))
		return
	}

	quote, err := s.pricer.Score(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		method, _ := quote.Safety()["pricing_method"].(string)
		s.metrics.QuotesTotal.WithLabelValues(method).Inc()
		s.metrics.ObserveLatency(time.Since(started))
		if quote.IsDegraded() {
			s.metrics.DegradedQuotesTotal.WithLabelValues(*quote.Degraded).Inc()
		}
	}

	logger.Info("price quote issued", zap.String("property_id", propertyID), zap.String("price", quote.Price.String()))
	writeJSON(w, http.StatusOK, quote)
}

func toPricingRequest(propertyID string, body priceQuoteRequestBody) (domain.PricingRequest, error) {
	stayDate, err := time.Parse(time.RFC3339, body.StayDate)
	if err != nil {
		return domain.PricingRequest{}, err
	}
	quoteTime, err := time.Parse(time.RFC3339, body.QuoteTime)
	if err != nil {
		return domain.PricingRequest{}, err
	}

	grid, err := pricingx.ParseGrid(body.AllowedPriceGrid)
	if err != nil {
		return domain.PricingRequest{}, err
	}

	req := domain.PricingRequest{
		PropertyID: propertyID,
		UserID:     body.UserID,
		StayDate:   stayDate,
		QuoteTime:  quoteTime,
		BasePrice:  decimalFromFloat(body.BasePrice),
		Product: domain.Product{
			Type:             body.Product.Type,
			Refundable:       body.Product.Refundable,
			LengthOfStayDays: body.Product.LengthOfStayDays,
		},
		Inventory: domain.Inventory{
			Capacity:      body.Inventory.Capacity,
			Remaining:     body.Inventory.Remaining,
			OverbookLimit: body.Inventory.OverbookLimit,
		},
		Context: domain.Context{
			Season:    body.Context.Season,
			DayOfWeek: body.Context.DayOfWeek,
			IsHoliday: body.Context.IsHoliday,
			Weather: domain.Weather{
				TemperatureC:    body.Context.Weather.Temperature,
				PrecipitationMM: body.Context.Weather.Precipitation,
			},
		},
		Toggles: domain.Toggles{
			Aggressive:       body.Toggles.Aggressive,
			Conservative:     body.Toggles.Conservative,
			UseML:            body.Toggles.UseML,
			UseCompetitors:   body.Toggles.UseCompetitors,
			ApplySeasonality: body.Toggles.ApplySeasonality,
		},
		AllowedPriceGrid: grid,
	}
	return req, nil
}

type submitOutcomesRequestBody struct {
	Outcomes []struct {
		Timestamp   string   `json:"timestamp"`
		QuotedPrice float64  `json:"quoted_price"`
		Booked      bool     `json:"booked"`
		FinalPrice  *float64 `json:"final_price,omitempty"`
		ActionID    string   `json:"action_id,omitempty"`
	} `json:"outcomes"`
}

func (s *Server) handleSubmitOutcomes(w http.ResponseWriter, r *http.Request) {
	propertyID := mux.Vars(r)["property_id"]

	var body submitOutcomesRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, perr.New(perr.Input, "httpapi.SubmitOutcomes", "malformed JSON body", err))
		return
	}

	batch := make([]domain.Outcome, 0, len(body.Outcomes))
	for _, o := range body.Outcomes {
		ts, err := time.Parse(time.RFC3339, o.Timestamp)
		if err != nil {
			continue
		}
		outcome := domain.Outcome{
			PropertyID:  propertyID,
			Timestamp:   ts,
			QuotedPrice: decimalFromFloat(o.QuotedPrice),
			Accepted:    o.Booked,
			ActionID:    o.ActionID,
		}
		if o.FinalPrice != nil {
			fp := decimalFromFloat(*o.FinalPrice)
			outcome.FinalPrice = &fp
		}
		batch = append(batch, outcome)
	}

	result, err := s.outcomes.Append(r.Context(), propertyID, batch)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.OutcomesStoredTotal.Add(float64(result.Stored))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"processed":  len(body.Outcomes),
		"stored":     result.Stored,
		"invalid":    result.Invalid,
		"duplicates": result.Duplicates,
	})
}

func (s *Server) handleOutcomeStats(w http.ResponseWriter, r *http.Request) {
	propertyID := mux.Vars(r)["property_id"]
	stats, err := s.outcomes.Stats(r.Context(), propertyID)
	if err != nil {
		writeError(w, perr.New(perr.OutcomesStoreError, "httpapi.OutcomeStats", "failed to load outcome stats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDriftCheck(w http.ResponseWriter, r *http.Request) {
	if s.drift == nil {
		writeError(w, perr.New(perr.ScoringInternal, "httpapi.DriftCheck", "drift checking not configured", nil))
		return
	}
	propertyID := mux.Vars(r)["property_id"]
	result, err := s.drift.CheckDrift(r.Context(), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.metrics != nil {
		verdict := "stable"
		if result.Summary.TriggerRetrain {
			verdict = "drifted"
		}
		s.metrics.DriftChecksTotal.WithLabelValues(verdict).Inc()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetModelInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	propertyID := vars["property_id"]
	modelType := domain.ModelType(vars["model_type"])

	version, err := s.models.LatestVersion(r.Context(), propertyID, modelType)
	if err != nil {
		writeError(w, perr.New(perr.ModelUnavailable, "httpapi.GetModelInfo", "no model loaded for property", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"property_id": propertyID,
		"model_type":  modelType,
		"version":     version,
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"version":        s.version,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func writeError(w http.ResponseWriter, err error) {
	pe, ok := err.(*perr.Error)
	if !ok {
		pe = perr.New(perr.ScoringInternal, "httpapi", "internal error", err)
	}
	writeJSON(w, pe.Kind.HTTPStatus(), map[string]interface{}{
		"error":      pe.Message,
		"error_id":   pe.ID,
		"error_kind": pe.Kind,
	})
}
