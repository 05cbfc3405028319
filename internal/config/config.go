// Package config centralizes every tunable the pricing pipeline needs into
// one typed struct, the way the teacher's common/constants/
// pricing_constants.go centralizes fare constants into PricingConstants.
// Values load from YAML (gopkg.in/yaml.v3) with environment overrides for
// secrets, instead of the teacher's hardcoded GetDefaultPricingConstants().
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ElasticityBand is one row of the ML elasticity_factor table.
type ElasticityBand struct {
	MinProbability float64         `yaml:"min_probability"`
	Factor         decimal.Decimal `yaml:"factor"`
}

// GuardrailConfig bounds the final price before grid snapping.
type GuardrailConfig struct {
	AbsoluteMin            decimal.Decimal `yaml:"absolute_min"`
	AbsoluteMax            decimal.Decimal `yaml:"absolute_max"`
	CompetitiveCapFactor   decimal.Decimal `yaml:"competitive_cap_factor"`   // 1.5
	ConservativeFloorFactor decimal.Decimal `yaml:"conservative_floor_factor"` // 0.8
}

// RuleCascadeConfig holds cascade multipliers loadable from YAML. Neither
// pricing path reads it: internal/pricing applies the fixed multiplier
// tables in cascade.go and rules.go.
type RuleCascadeConfig struct {
	OccupancyHighThreshold   float64         `yaml:"occupancy_high_threshold"`
	OccupancyHighMultiplier  decimal.Decimal `yaml:"occupancy_high_multiplier"`
	OccupancyLowThreshold    float64         `yaml:"occupancy_low_threshold"`
	OccupancyLowMultiplier   decimal.Decimal `yaml:"occupancy_low_multiplier"`
	LastMinuteMultiplier     decimal.Decimal `yaml:"last_minute_multiplier"`
	EarlyBirdLeadDays        int             `yaml:"early_bird_lead_days"`
	EarlyBirdMultiplier      decimal.Decimal `yaml:"early_bird_multiplier"`
	SeasonalFactors          map[string]decimal.Decimal `yaml:"seasonal_factors"`
	WeekendMultiplier        decimal.Decimal `yaml:"weekend_multiplier"`
	LengthOfStayDiscountPerNight decimal.Decimal `yaml:"length_of_stay_discount_per_night"`
	RefundableMultiplier     decimal.Decimal `yaml:"refundable_multiplier"`
	AggressiveMultiplier     decimal.Decimal `yaml:"aggressive_multiplier"`
	ConservativeMultiplier   decimal.Decimal `yaml:"conservative_multiplier"`
}

// DriftConfig holds C8's thresholds.
type DriftConfig struct {
	KSPValueThreshold float64 `yaml:"ks_pvalue_threshold"` // 0.05
	PSIThreshold      float64 `yaml:"psi_threshold"`       // 0.2
	MinSamples        int     `yaml:"min_samples"`         // 100
	PSIBuckets        int     `yaml:"psi_buckets"`         // 10
	DriftedFractionTrigger float64 `yaml:"drifted_fraction_trigger"` // 0.25
}

// RetrainConfig holds C9's gating thresholds.
type RetrainConfig struct {
	MinTotalOutcomes   int           `yaml:"min_total_outcomes"`   // 1000
	MinNewOutcomes7d   int           `yaml:"min_new_outcomes_7d"`  // 100
	ConversionAUCTolerance decimal.Decimal `yaml:"conversion_auc_tolerance"` // 0.01
	RegressionRMSETolerance decimal.Decimal `yaml:"regression_rmse_tolerance"` // 0.01
	RunInterval        time.Duration `yaml:"run_interval"`
}

// ABTestConfig holds C10's defaults.
type ABTestConfig struct {
	SignificanceLevel float64 `yaml:"significance_level"` // 0.05
}

// BanditConfig holds C11's hyperparameters.
type BanditConfig struct {
	Arms                []float64 `yaml:"arms"` // percent deltas
	Policy              string    `yaml:"policy"` // epsilon_greedy | thompson_sampling
	Epsilon             float64   `yaml:"epsilon"`
	ConservativeEpsilonFactor float64 `yaml:"conservative_epsilon_factor"`
	LearningRate        float64   `yaml:"learning_rate"` // alpha for the ema update
	UpdateMode          string    `yaml:"update_mode"` // "ema" | "averaging"
	PriorAlpha          float64   `yaml:"prior_alpha"`
	PriorBeta           float64   `yaml:"prior_beta"`
	ClampBase           string    `yaml:"clamp_base"` // "base_price" | "pre_bandit_price"
	StateDir            string    `yaml:"state_dir"`
}

// CompetitorGatewayConfig holds C1's client/circuit-breaker/cache settings.
type CompetitorGatewayConfig struct {
	BaseURL            string        `yaml:"base_url"`
	APIKeyEnvVar       string        `yaml:"api_key_env_var"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryBaseInterval  time.Duration `yaml:"retry_base_interval"`
	CircuitBreakerName string        `yaml:"circuit_breaker_name"`
	MaxConsecutiveFailures uint32    `yaml:"max_consecutive_failures"`
	OpenTimeout        time.Duration `yaml:"open_timeout"`
	MaxConcurrentFetches int         `yaml:"max_concurrent_fetches"` // 32 per spec
	CacheTTLNearTerm   time.Duration `yaml:"cache_ttl_near_term"`
	CacheTTLFarTerm    time.Duration `yaml:"cache_ttl_far_term"`
	NearTermLeadDays   int           `yaml:"near_term_lead_days"`
}

// StorageConfig holds database/cache DSNs. Secrets come from environment
// variables, never the YAML file itself, the way the teacher pulls secrets
// out-of-band instead of hardcoding them.
type StorageConfig struct {
	PostgresDSNEnvVar string `yaml:"postgres_dsn_env_var"`
	RedisAddrEnvVar   string `yaml:"redis_addr_env_var"`
}

// Config is the root configuration object for the pricing service.
type Config struct {
	ServiceName    string                  `yaml:"service_name"`
	Environment    string                  `yaml:"environment"`
	LogLevel       string                  `yaml:"log_level"`
	Elasticity     []ElasticityBand        `yaml:"elasticity"`
	Guardrails     GuardrailConfig         `yaml:"guardrails"`
	RuleCascade    RuleCascadeConfig       `yaml:"rule_cascade"`
	GridOffsetsPct []float64               `yaml:"grid_offsets_pct"` // -10,-5,0,5,10
	ConfidenceBandPct       float64        `yaml:"confidence_band_pct"` // 0.10
	ConfidenceBandWidePct   float64        `yaml:"confidence_band_wide_pct"` // 0.15
	ConfidenceBandWideLeadDays int         `yaml:"confidence_band_wide_lead_days"` // 180
	RuleExpectedOccupancySignal float64    `yaml:"rule_expected_occupancy_signal"` // 0.2
	MLExpectedOccupancyFactor   float64    `yaml:"ml_expected_occupancy_factor"`   // 0.3
	Drift          DriftConfig             `yaml:"drift"`
	Retrain        RetrainConfig           `yaml:"retrain"`
	ABTest         ABTestConfig            `yaml:"ab_test"`
	Bandit         BanditConfig            `yaml:"bandit"`
	CompetitorGateway CompetitorGatewayConfig `yaml:"competitor_gateway"`
	Storage        StorageConfig           `yaml:"storage"`
}

// Default returns production-ready configuration, the way
// GetDefaultPricingConstants() does for the teacher's airline fares. Its
// Elasticity and RuleCascade blocks are not read by internal/pricing, whose
// fixed tables differ from the RuleCascade values here.
func Default() *Config {
	return &Config{
		ServiceName: "pricing-service",
		Environment: "development",
		LogLevel:    "info",
		Elasticity: []ElasticityBand{
			{MinProbability: 0.7, Factor: decimal.NewFromFloat(1.20)},
			{MinProbability: 0.5, Factor: decimal.NewFromFloat(1.10)},
			{MinProbability: 0.3, Factor: decimal.NewFromFloat(1.00)},
			{MinProbability: 0.0, Factor: decimal.NewFromFloat(0.90)},
		},
		Guardrails: GuardrailConfig{
			AbsoluteMin:             decimal.NewFromFloat(20.0),
			AbsoluteMax:             decimal.NewFromFloat(5000.0),
			CompetitiveCapFactor:    decimal.NewFromFloat(1.5),
			ConservativeFloorFactor: decimal.NewFromFloat(0.8),
		},
		RuleCascade: RuleCascadeConfig{
			OccupancyHighThreshold:  0.8,
			OccupancyHighMultiplier: decimal.NewFromFloat(1.15),
			OccupancyLowThreshold:   0.3,
			OccupancyLowMultiplier:  decimal.NewFromFloat(0.90),
			LastMinuteMultiplier:    decimal.NewFromFloat(1.10),
			EarlyBirdLeadDays:       60,
			EarlyBirdMultiplier:     decimal.NewFromFloat(0.92),
			SeasonalFactors: map[string]decimal.Decimal{
				"Spring": decimal.NewFromFloat(0.95),
				"Summer": decimal.NewFromFloat(1.20),
				"Fall":   decimal.NewFromFloat(0.95),
				"Winter": decimal.NewFromFloat(1.10),
			},
			WeekendMultiplier:            decimal.NewFromFloat(1.08),
			LengthOfStayDiscountPerNight: decimal.NewFromFloat(0.01),
			RefundableMultiplier:         decimal.NewFromFloat(1.05),
			AggressiveMultiplier:         decimal.NewFromFloat(1.15),
			ConservativeMultiplier:       decimal.NewFromFloat(0.90),
		},
		GridOffsetsPct:             []float64{-10, -5, 0, 5, 10},
		ConfidenceBandPct:          0.10,
		ConfidenceBandWidePct:      0.15,
		ConfidenceBandWideLeadDays: 180,
		RuleExpectedOccupancySignal: 0.2,
		MLExpectedOccupancyFactor:   0.3,
		Drift: DriftConfig{
			KSPValueThreshold:      0.05,
			PSIThreshold:           0.2,
			MinSamples:             100,
			PSIBuckets:             10,
			DriftedFractionTrigger: 0.25,
		},
		Retrain: RetrainConfig{
			MinTotalOutcomes:        1000,
			MinNewOutcomes7d:        100,
			ConversionAUCTolerance:  decimal.NewFromFloat(0.01),
			RegressionRMSETolerance: decimal.NewFromFloat(0.01),
			RunInterval:             7 * 24 * time.Hour,
		},
		ABTest: ABTestConfig{SignificanceLevel: 0.05},
		Bandit: BanditConfig{
			Arms:                      []float64{-15, -10, -5, 0, 5, 10, 15},
			Policy:                    "epsilon_greedy",
			Epsilon:                   0.1,
			ConservativeEpsilonFactor: 0.5,
			LearningRate:              0.1,
			UpdateMode:                "ema",
			PriorAlpha:                1.0,
			PriorBeta:                 1.0,
			ClampBase:                 "base_price",
			StateDir:                  "data/bandit_state",
		},
		CompetitorGateway: CompetitorGatewayConfig{
			BaseURL:                "http://localhost:3001",
			APIKeyEnvVar:           "COMPETITOR_API_KEY",
			Timeout:                5 * time.Second,
			MaxRetries:             3,
			RetryBaseInterval:      time.Second,
			CircuitBreakerName:     "competitor-gateway",
			MaxConsecutiveFailures: 3,
			OpenTimeout:            30 * time.Second,
			MaxConcurrentFetches:   32,
			CacheTTLNearTerm:       2 * time.Minute,
			CacheTTLFarTerm:        30 * time.Minute,
			NearTermLeadDays:       3,
		},
		Storage: StorageConfig{
			PostgresDSNEnvVar: "PRICING_POSTGRES_DSN",
			RedisAddrEnvVar:   "PRICING_REDIS_ADDR",
		},
	}
}

// Load reads YAML configuration from path, overlaying it onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Secret reads a secret value out of the environment variable named by
// envVar, the way VaultClient.RotateSecrets pulls secrets out-of-band
// rather than from source or config files.
func Secret(envVar string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envVar))
	return v, v != ""
}
