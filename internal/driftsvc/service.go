// Package driftsvc wires C8's reference/current window comparison to a
// concrete feature source, for the on-demand drift endpoint. Grounded on
// original_source/monitoring/drift_detector.py's check_feature_drift,
// which compares stored request logs across the same two windows.
package driftsvc

import (
	"context"
	"time"

	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/drift"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

// OutcomeQuerier is the narrow internal/outcomes.Store dependency this
// service needs.
type OutcomeQuerier interface {
	Query(ctx context.Context, propertyID string, start, end *time.Time, limit int) ([]domain.Outcome, error)
}

// Service implements httpapi.DriftChecker by comparing a property's most
// recent outcomes against the window immediately preceding it. The
// quoted-price series stands in for the model's feature vector, since no
// separate serving-time feature log is persisted — a deliberate narrowing
// of the original's full feature-by-feature comparison, noted in the
// design ledger.
type Service struct {
	outcomes      OutcomeQuerier
	cfg           drift.Config
	referenceSpan time.Duration
	currentSpan   time.Duration
}

// New constructs a Service. referenceSpan/currentSpan size the two
// comparison windows, ending now and referenceSpan+currentSpan ago
// respectively.
func New(outcomesStore OutcomeQuerier, cfg drift.Config, referenceSpan, currentSpan time.Duration) *Service {
	return &Service{outcomes: outcomesStore, cfg: cfg, referenceSpan: referenceSpan, currentSpan: currentSpan}
}

// CheckDrift implements httpapi.DriftChecker.
func (s *Service) CheckDrift(ctx context.Context, propertyID string) (drift.Result, error) {
	now := time.Now()
	currentStart := now.Add(-s.currentSpan)
	referenceStart := currentStart.Add(-s.referenceSpan)

	reference, err := s.outcomes.Query(ctx, propertyID, &referenceStart, &currentStart, 0)
	if err != nil {
		return drift.Result{}, perr.New(perr.ScoringInternal, "driftsvc.CheckDrift", "failed to load reference window", err)
	}
	current, err := s.outcomes.Query(ctx, propertyID, &currentStart, &now, 0)
	if err != nil {
		return drift.Result{}, perr.New(perr.ScoringInternal, "driftsvc.CheckDrift", "failed to load current window", err)
	}

	referenceFeatures := map[string][]float64{"quoted_price": pricesOf(reference)}
	currentFeatures := map[string][]float64{"quoted_price": pricesOf(current)}

	return drift.Detect(s.cfg, referenceFeatures, currentFeatures, []string{"quoted_price"}), nil
}

func pricesOf(outcomeRecords []domain.Outcome) []float64 {
	prices := make([]float64, 0, len(outcomeRecords))
	for _, o := range outcomeRecords {
		v, _ := o.QuotedPrice.Float64()
		prices = append(prices, v)
	}
	return prices
}
