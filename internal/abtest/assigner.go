// Package abtest assigns pricing policy variants deterministically via a
// hash of the experiment id and randomization key, and evaluates
// experiment results with a two-sample t-test. Grounded on the teacher's
// preference for explicit, deterministic routing (RulesEngine's
// CompetitorAnalyzer-style condition tables) generalized to a hash-bucket
// assignment scheme per spec.md §4.10.
package abtest

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// ConfigStore resolves the active experiment configuration for a property.
// Backed by Postgres in production; a static in-memory map suffices for
// single-experiment deployments.
type ConfigStore interface {
	ActiveExperiment(ctx context.Context, propertyID string) (domain.ExperimentConfig, time.Time, time.Time, bool)
}

// StaticConfigStore serves a single fixed experiment for every property,
// useful for tests and simple deployments.
type StaticConfigStore struct {
	mu     sync.RWMutex
	config domain.ExperimentConfig
	start  time.Time
	end    time.Time
	ok     bool
}

// NewStaticConfigStore constructs a StaticConfigStore with no experiment
// configured; call Set to activate one.
func NewStaticConfigStore() *StaticConfigStore {
	return &StaticConfigStore{}
}

// Set installs the experiment every property will see.
func (s *StaticConfigStore) Set(cfg domain.ExperimentConfig, start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config, s.start, s.end, s.ok = cfg, start, end, true
}

// ActiveExperiment implements ConfigStore.
func (s *StaticConfigStore) ActiveExperiment(_ context.Context, _ string) (domain.ExperimentConfig, time.Time, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.start, s.end, s.ok
}

// ResultLogger records per-decision outcomes for later comparison.
type ResultLogger interface {
	LogResult(ctx context.Context, experimentID, variant string, price float64, booked bool, revenue float64, leadDays, los int, occupancy float64)
}

// Assigner implements C10: deterministic variant assignment plus
// experiment misconfiguration handling (treated as "no experiment active").
type Assigner struct {
	store  ConfigStore
	clock  func() time.Time
	result ResultLogger
}

// New constructs an Assigner. result may be nil if result logging is
// handled elsewhere (e.g. folded into the outcomes store).
func New(store ConfigStore, result ResultLogger) *Assigner {
	return &Assigner{store: store, clock: time.Now, result: result}
}

// Route implements pricing.ExperimentRouter: resolves the active
// experiment for propertyID (if any) and assigns userID a variant.
// Returns active=false when no experiment is configured, the clock is
// outside [start, end], or the experiment is inactive — experiment
// misconfiguration degrades to "no experiment active", never an error.
func (a *Assigner) Route(ctx context.Context, propertyID, userID string) (variant, experimentID string, active bool) {
	cfg, start, end, ok := a.store.ActiveExperiment(ctx, propertyID)
	if !ok || !cfg.Active {
		return "", "", false
	}
	now := a.clock()
	if now.Before(start) || now.After(end) {
		return "", "", false
	}
	if cfg.MLTrafficPercentage < 0 || cfg.MLTrafficPercentage > 100 {
		return "", "", false
	}

	v := a.AssignVariant(cfg.ExperimentID, userID, cfg.MLTrafficPercentage)
	return v, cfg.ExperimentID, true
}

// AssignVariant deterministically buckets key into [0,100) via
// md5(experimentID||key) and routes to "ml" if the bucket falls within
// mlTrafficPercentage, else "rule_based". Same experimentID+key always
// produces the same variant.
func (a *Assigner) AssignVariant(experimentID, key string, mlTrafficPercentage int) string {
	bucket := bucketOf(experimentID, key)
	if bucket < mlTrafficPercentage {
		return "ml"
	}
	return "rule_based"
}

func bucketOf(experimentID, key string) int {
	sum := md5.Sum([]byte(experimentID + "|" + key))
	n := binary.BigEndian.Uint32(sum[:4])
	return int(n % 100)
}

// LogResult forwards a per-decision result to the configured ResultLogger,
// if any.
func (a *Assigner) LogResult(ctx context.Context, experimentID, variant string, price float64, booked bool, revenue float64, leadDays, los int, occupancy float64) {
	if a.result == nil {
		return
	}
	a.result.LogResult(ctx, experimentID, variant, price, booked, revenue, leadDays, los, occupancy)
}

// VariantStats aggregates one variant's metrics for comparison.
type VariantStats struct {
	Variant     string
	N           int
	Conversions int
	Revenues    []float64 // per-decision revenue, used for ADR/RevPAR and the t-test
}

// ConversionRate returns Conversions/N, or 0 if N is 0.
func (v VariantStats) ConversionRate() float64 {
	if v.N == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.N)
}

// ADR returns mean revenue per converted booking.
func (v VariantStats) ADR() float64 {
	if v.Conversions == 0 {
		return 0
	}
	return sum(v.Revenues) / float64(v.Conversions)
}

// RevPAR returns total revenue divided by total quote opportunities (N).
func (v VariantStats) RevPAR() float64 {
	if v.N == 0 {
		return 0
	}
	return sum(v.Revenues) / float64(v.N)
}

// ComparisonResult is the outcome of comparing an ML variant against a
// rule-based control.
type ComparisonResult struct {
	MLConversionRate   float64
	RuleConversionRate float64
	Lift               float64 // (ml - rule) / rule
	TStatistic         float64
	PValue             float64
	Significant        bool // p < 0.05
}

// Compare runs a two-sample (Welch's) t-test on per-decision revenue
// between the ml and rule_based variants, fixed at alpha=0.05 per
// spec.md's explicit resolution of the two competing significance tests
// found in the original implementation.
func Compare(ml, rule VariantStats) ComparisonResult {
	t, p := welchTTest(ml.Revenues, rule.Revenues)
	lift := 0.0
	if rule.ConversionRate() > 0 {
		lift = (ml.ConversionRate() - rule.ConversionRate()) / rule.ConversionRate()
	}
	return ComparisonResult{
		MLConversionRate:   ml.ConversionRate(),
		RuleConversionRate: rule.ConversionRate(),
		Lift:               lift,
		TStatistic:         t,
		PValue:             p,
		Significant:        p < 0.05,
	}
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

func variance(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}

// welchTTest computes Welch's t-statistic and a two-tailed p-value via the
// Welch-Satterthwaite degrees-of-freedom approximation and the Student's t
// distribution for the p-value (see studentTCDF). No example repo in the corpus imports a Go
// statistics library, so this and the KS/PSI implementations in
// internal/drift are hand-rolled against math, documented in DESIGN.md.
func welchTTest(a, b []float64) (tStat, pValue float64) {
	if len(a) < 2 || len(b) < 2 {
		return 0, 1
	}
	ma, mb := mean(a), mean(b)
	va, vb := variance(a, ma), variance(b, mb)
	na, nb := float64(len(a)), float64(len(b))

	se := math.Sqrt(va/na + vb/nb)
	if se == 0 {
		return 0, 1
	}
	t := (ma - mb) / se

	dfNumerator := (va/na + vb/nb) * (va/na + vb/nb)
	dfDenominator := (va*va)/(na*na*(na-1)) + (vb*vb)/(nb*nb*(nb-1))
	df := dfNumerator / dfDenominator
	if df <= 0 || math.IsNaN(df) {
		df = na + nb - 2
	}

	p := 2 * (1 - studentTCDF(math.Abs(t), df))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return t, p
}

// studentTCDF evaluates the Student's t CDF through the regularized
// incomplete beta function: for t >= 0 it is 1 - I_x(df/2, 1/2)/2 with
// x = df/(t*t + df).
func studentTCDF(t, df float64) float64 {
	x := df / (t*t + df)
	ib := incompleteBeta(df/2, 0.5, x)
	if t >= 0 {
		return 1 - 0.5*ib
	}
	return 0.5 * ib
}

// incompleteBeta computes the regularized incomplete beta function via a
// continued-fraction expansion (Lentz's algorithm), the standard numerical
// recipe for this computation absent a stats library in the dependency
// graph.
func incompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	// The continued fraction converges fast only below (a+1)/(a+b+2); use
	// the symmetry I_x(a, b) = 1 - I_{1-x}(b, a) above it.
	if x > (a+1)/(a+b+2) {
		return 1 - incompleteBeta(b, a, 1-x)
	}
	lnBeta := lgamma(a+b) - lgamma(a) - lgamma(b) + a*math.Log(x) + b*math.Log(1-x)
	front := math.Exp(lnBeta) / a

	const maxIter = 200
	const eps = 1e-12

	f, c, d := 1.0, 1.0, 0.0
	for i := 0; i <= maxIter; i++ {
		m := float64(i / 2)
		var numerator float64
		if i == 0 {
			numerator = 1.0
		} else if i%2 == 0 {
			numerator = (m * (b - m) * x) / ((a + 2*m - 1) * (a + 2*m))
		} else {
			numerator = -((a + m) * (a + b + m) * x) / ((a + 2*m) * (a + 2*m + 1))
		}

		d = 1 + numerator*d
		if math.Abs(d) < eps {
			d = eps
		}
		d = 1 / d

		c = 1 + numerator/c
		if math.Abs(c) < eps {
			c = eps
		}

		f *= d * c
		if math.Abs(1-d*c) < eps {
			break
		}
	}

	return front * (f - 1)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
