// Package drift detects distributional drift between a reference and
// current window of feature values via the two-sample Kolmogorov-Smirnov
// test and the Population Stability Index. No example repo in the corpus
// imports a Go statistics library (no gonum anywhere in the pack), so
// both tests are hand-rolled against math, documented in DESIGN.md as the
// one stdlib-justified exception to the "use a pack library" rule.
package drift

import (
	"math"
	"sort"
)

// Config controls drift sensitivity.
type Config struct {
	MinSamples            int
	KSPValueThreshold     float64
	PSIThreshold          float64
	PSIBuckets            int
	DriftedFractionTrigger float64
}

// FeatureResult is one feature's drift verdict.
type FeatureResult struct {
	Feature   string
	KSStat    float64
	KSP       float64
	KSDrift   bool
	PSI       float64
	PSIDrift  bool
	Drift     bool
	Skipped   bool
}

// Summary aggregates drift across all monitored features.
type Summary struct {
	Total         int
	Drifted       int
	Percent       float64
	TriggerRetrain bool
	DriftedList   []string
}

// Result is the full output of Detect.
type Result struct {
	Summary    Summary
	PerFeature map[string]FeatureResult
}

// Detect compares reference[feature] against current[feature] for every
// feature named in features, skipping any with fewer than cfg.MinSamples
// non-null values in either window.
func Detect(cfg Config, reference, current map[string][]float64, featureNames []string) Result {
	perFeature := make(map[string]FeatureResult, len(featureNames))
	drifted := 0
	total := 0
	var driftedList []string

	for _, name := range featureNames {
		ref := reference[name]
		cur := current[name]
		if len(ref) < cfg.MinSamples || len(cur) < cfg.MinSamples {
			perFeature[name] = FeatureResult{Feature: name, Skipped: true}
			continue
		}

		ksStat, ksP := twoSampleKS(ref, cur)
		ksDrift := ksP < cfg.KSPValueThreshold

		psi := populationStabilityIndex(ref, cur, cfg.PSIBuckets)
		psiDrift := psi > cfg.PSIThreshold

		isDrift := ksDrift || psiDrift
		perFeature[name] = FeatureResult{
			Feature:  name,
			KSStat:   ksStat,
			KSP:      ksP,
			KSDrift:  ksDrift,
			PSI:      psi,
			PSIDrift: psiDrift,
			Drift:    isDrift,
		}

		total++
		if isDrift {
			drifted++
			driftedList = append(driftedList, name)
		}
	}

	percent := 0.0
	if total > 0 {
		percent = float64(drifted) / float64(total)
	}

	return Result{
		Summary: Summary{
			Total:          total,
			Drifted:        drifted,
			Percent:        percent,
			TriggerRetrain: percent > cfg.DriftedFractionTrigger,
			DriftedList:    driftedList,
		},
		PerFeature: perFeature,
	}
}

// twoSampleKS computes the two-sample KS statistic and an asymptotic
// p-value via the Kolmogorov distribution's complementary CDF.
func twoSampleKS(a, b []float64) (stat, pValue float64) {
	as := append([]float64(nil), a...)
	bs := append([]float64(nil), b...)
	sort.Float64s(as)
	sort.Float64s(bs)

	i, j := 0, 0
	var cdfA, cdfB float64
	na, nb := float64(len(as)), float64(len(bs))
	maxDiff := 0.0

	for i < len(as) && j < len(bs) {
		// Step past every copy of the next smallest value in both samples
		// before comparing, so tied values never open a spurious gap.
		v := math.Min(as[i], bs[j])
		for i < len(as) && as[i] <= v {
			i++
		}
		for j < len(bs) && bs[j] <= v {
			j++
		}
		cdfA = float64(i) / na
		cdfB = float64(j) / nb
		if d := math.Abs(cdfA - cdfB); d > maxDiff {
			maxDiff = d
		}
	}
	// Drain any remaining tail once one sample is exhausted.
	if i < len(as) {
		cdfA = 1.0
		if d := math.Abs(cdfA - cdfB); d > maxDiff {
			maxDiff = d
		}
	}
	if j < len(bs) {
		cdfB = 1.0
		if d := math.Abs(cdfA - cdfB); d > maxDiff {
			maxDiff = d
		}
	}

	ne := (na * nb) / (na + nb)
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * maxDiff
	return maxDiff, kolmogorovComplementaryCDF(lambda)
}

// kolmogorovComplementaryCDF evaluates Q(lambda), the asymptotic
// Kolmogorov distribution tail probability used as the KS test's p-value.
func kolmogorovComplementaryCDF(lambda float64) float64 {
	if lambda < 0.2 {
		return 1.0
	}
	sum := 0.0
	for k := 1; k <= 100; k++ {
		term := math.Pow(-1, float64(k-1)) * math.Exp(-2*float64(k)*float64(k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// populationStabilityIndex computes PSI over nBuckets quantile buckets
// derived from the reference distribution, flooring zero counts at 1e-4
// before the log per spec.md.
func populationStabilityIndex(reference, current []float64, nBuckets int) float64 {
	if nBuckets <= 0 {
		nBuckets = 10
	}
	ref := append([]float64(nil), reference...)
	sort.Float64s(ref)

	edges := quantileEdges(ref, nBuckets)

	refCounts := bucketCounts(ref, edges)
	curCounts := bucketCounts(current, edges)

	const floor = 1e-4
	psi := 0.0
	for i := range refCounts {
		refPct := float64(refCounts[i]) / float64(len(ref))
		curPct := float64(curCounts[i]) / float64(len(current))
		if refPct < floor {
			refPct = floor
		}
		if curPct < floor {
			curPct = floor
		}
		psi += (curPct - refPct) * math.Log(curPct/refPct)
	}
	return psi
}

// quantileEdges returns nBuckets-1 interior edges splitting sorted into
// roughly equal-sized buckets.
func quantileEdges(sorted []float64, nBuckets int) []float64 {
	if len(sorted) == 0 {
		return nil
	}
	edges := make([]float64, 0, nBuckets-1)
	for i := 1; i < nBuckets; i++ {
		idx := int(float64(len(sorted)) * float64(i) / float64(nBuckets))
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		edges = append(edges, sorted[idx])
	}
	return edges
}

func bucketCounts(values []float64, edges []float64) []int {
	counts := make([]int, len(edges)+1)
	for _, v := range values {
		bucket := sort.SearchFloat64s(edges, v)
		counts[bucket]++
	}
	return counts
}
