package bandit

import (
	"math"

	"github.com/jengu-tech/pricing-service/internal/config"
	"github.com/jengu-tech/pricing-service/internal/domain"
)

// HistoricalRecord is one replayed historical quote/outcome pair fed to
// the offline evaluator.
type HistoricalRecord struct {
	Season        string
	HistoricPrice float64
	Booked        bool
	Revenue       float64
}

// EvalResult summarizes an Evaluate call across all of its Monte Carlo runs.
type EvalResult struct {
	MeanReward       float64
	CILower          float64
	CIUpper          float64
	ArmDistribution  map[float64]int
	UpliftVsBaseline float64
}

const evaluatorElasticity = -1.5

// Evaluate replays history through a fresh bandit runs times (Monte Carlo
// over shuffled history), scoring counterfactual booking probability via
// p_hist * exp(elasticity * (p_new/p_hist - 1)) per spec.md §4.11. Reports
// mean reward with a 95% CI and the uplift versus the historical baseline.
func Evaluate(cfg config.BanditConfig, history []HistoricalRecord, runs int, shuffler func([]HistoricalRecord) []HistoricalRecord) EvalResult {
	if runs <= 0 {
		runs = 100
	}
	baseline := meanHistoricalRevenue(history)

	rewards := make([]float64, 0, runs)
	armDist := make(map[float64]int)

	for run := 0; run < runs; run++ {
		shuffled := history
		if shuffler != nil {
			shuffled = shuffler(history)
		}
		bandit := New(cfg, nil)
		var totalReward float64

		for _, rec := range shuffled {
			action, ok := bandit.SelectArm(nil, "offline-eval", rec.Season, false)
			if !ok {
				continue
			}
			armDist[action.ArmDelta]++

			newPrice := rec.HistoricPrice * (1 + action.ArmDelta/100)
			pHist := 0.5
			if rec.Booked {
				pHist = 1.0
			}
			pNew := pHist * math.Exp(evaluatorElasticity*(newPrice/rec.HistoricPrice-1))
			if pNew > 1 {
				pNew = 1
			}
			if pNew < 0 {
				pNew = 0
			}

			reward := 0.0
			booked := pNew >= 0.5
			if booked {
				reward = newPrice
			}
			totalReward += reward

			_ = bandit.Update(domain.BanditReward{ActionID: action.ActionID, Reward: reward})
		}

		if len(shuffled) > 0 {
			rewards = append(rewards, totalReward/float64(len(shuffled)))
		}
	}

	m := mean(rewards)
	lower, upper := confidenceInterval95(rewards, m)
	uplift := 0.0
	if baseline != 0 {
		uplift = (m - baseline) / baseline
	}

	return EvalResult{
		MeanReward:       m,
		CILower:          lower,
		CIUpper:          upper,
		ArmDistribution:  armDist,
		UpliftVsBaseline: uplift,
	}
}

func meanHistoricalRevenue(history []HistoricalRecord) float64 {
	if len(history) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range history {
		if r.Booked {
			total += r.Revenue
		}
	}
	return total / float64(len(history))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

func confidenceInterval95(xs []float64, m float64) (lower, upper float64) {
	if len(xs) < 2 {
		return m, m
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	variance := ss / float64(len(xs)-1)
	stderr := math.Sqrt(variance / float64(len(xs)))
	margin := 1.96 * stderr
	return m - margin, m + margin
}
