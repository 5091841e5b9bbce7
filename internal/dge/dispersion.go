package dge

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Dispersion floor. Raw method-of-moments estimates can go negative for
// under-dispersed genes; they are clamped here.
const minDispersion = 1e-8

// DispersionFit holds per-gene dispersion estimates for one contrast,
// together with the fitted mean-dispersion trend.
type DispersionFit struct {
	BaseMean []float64 // mean of size-factor-normalized counts per gene
	Raw      []float64 // method-of-moments estimate per gene
	Shrunk   []float64 // empirical-Bayes estimate used by the GLM
	Outlier  []bool    // genes left at their raw estimate

	// Trend coefficients: trend(mu) = A1/mu + A0.
	A0, A1 float64
}

// Trend evaluates the fitted mean-dispersion curve at a normalized mean.
func (d *DispersionFit) Trend(mu float64) float64 {
	t := d.A1/mu + d.A0
	if t < minDispersion {
		t = minDispersion
	}
	return t
}

// EstimateDispersions estimates per-gene overdispersion from the raw counts
// and size factors of one contrast, fits a parametric trend over the
// normalized means, and shrinks the per-gene estimates toward the trend.
// Genes far above the trend are flagged as outliers and keep their raw
// estimate. designP is the number of GLM coefficients (2 for a two-group
// comparison); it enters the sampling-variance approximation.
func EstimateDispersions(counts [][]float64, sizeFactors []float64, designP int) (*DispersionFit, error) {
	nGenes := len(counts)
	nSamples := len(sizeFactors)
	if nGenes == 0 {
		return nil, errors.New("dispersion: no genes")
	}
	if nSamples <= designP {
		return nil, errors.New("dispersion: no residual degrees of freedom")
	}

	// Mean of reciprocal size factors, the bias term separating Poisson
	// noise from true overdispersion in normalized counts.
	sBarInv := 0.0
	for _, s := range sizeFactors {
		sBarInv += 1 / s
	}
	sBarInv /= float64(nSamples)

	fit := &DispersionFit{
		BaseMean: make([]float64, nGenes),
		Raw:      make([]float64, nGenes),
		Shrunk:   make([]float64, nGenes),
		Outlier:  make([]bool, nGenes),
	}

	for i, row := range counts {
		mu, v := normalizedMeanVar(row, sizeFactors)
		fit.BaseMean[i] = mu
		if mu <= 0 {
			fit.Raw[i] = minDispersion
			continue
		}
		alpha := (v - mu*sBarInv) / (mu * mu)
		if alpha < minDispersion {
			alpha = minDispersion
		}
		fit.Raw[i] = alpha
	}

	fit.A0, fit.A1 = fitTrend(fit.BaseMean, fit.Raw)

	// Empirical-Bayes shrinkage in log space. The sampling variance of a
	// log dispersion estimate is approximated by trigamma((m-p)/2); the
	// prior variance is what remains of the spread of log residuals.
	varLog := trigamma(float64(nSamples-designP) / 2)
	residuals := make([]float64, 0, nGenes)
	for i := range counts {
		if fit.BaseMean[i] > 0 && fit.Raw[i] > minDispersion {
			residuals = append(residuals, math.Log(fit.Raw[i])-math.Log(fit.Trend(fit.BaseMean[i])))
		}
	}
	totalVar := madVariance(residuals)
	priorVar := totalVar - varLog
	if priorVar < 0.25 {
		priorVar = 0.25
	}
	outlierSD := 2 * math.Sqrt(totalVar)
	if outlierSD < 2*math.Sqrt(0.25) {
		outlierSD = 2 * math.Sqrt(0.25)
	}

	for i := range counts {
		if fit.BaseMean[i] <= 0 {
			fit.Shrunk[i] = fit.Raw[i]
			continue
		}
		logRaw := math.Log(fit.Raw[i])
		logTrend := math.Log(fit.Trend(fit.BaseMean[i]))
		if logRaw-logTrend > outlierSD {
			// Truly dispersed gene: shrinking it toward the trend would
			// understate its variance, so keep the raw estimate.
			fit.Shrunk[i] = fit.Raw[i]
			fit.Outlier[i] = true
			continue
		}
		post := (logRaw/varLog + logTrend/priorVar) / (1/varLog + 1/priorVar)
		fit.Shrunk[i] = math.Exp(post)
	}

	return fit, nil
}

// normalizedMeanVar returns the mean and unbiased variance of a gene's
// size-factor-normalized counts.
func normalizedMeanVar(row, sizeFactors []float64) (mu, v float64) {
	n := float64(len(row))
	q := make([]float64, len(row))
	for j, c := range row {
		q[j] = c / sizeFactors[j]
		mu += q[j]
	}
	mu /= n
	if len(row) < 2 {
		return mu, 0
	}
	for _, x := range q {
		v += (x - mu) * (x - mu)
	}
	v /= n - 1
	return mu, v
}

// fitTrend fits alpha = a1/mu + a0 by least squares on genes with an
// informative raw estimate, iterating with exclusion of points far from the
// current curve. Falls back to a flat trend at the median raw dispersion
// when too few points remain.
func fitTrend(baseMean, raw []float64) (a0, a1 float64) {
	var xs, ys []float64
	for i := range raw {
		if baseMean[i] > 0 && raw[i] > 10*minDispersion {
			xs = append(xs, 1/baseMean[i])
			ys = append(ys, raw[i])
		}
	}

	fallback := func() (float64, float64) {
		all := append([]float64(nil), raw...)
		med, err := stats.Median(all)
		if err != nil || med < minDispersion {
			med = minDispersion
		}
		return med, 0
	}
	if len(xs) < 3 {
		return fallback()
	}

	keptX := append([]float64(nil), xs...)
	keptY := append([]float64(nil), ys...)
	for iter := 0; iter < 10; iter++ {
		alpha, beta := stat.LinearRegression(keptX, keptY, nil, false)
		if math.IsNaN(alpha) || math.IsNaN(beta) {
			return fallback()
		}
		a0, a1 = alpha, beta
		if a0 < minDispersion {
			a0 = minDispersion
		}
		if a1 < 0 {
			a1 = 0
		}

		// Drop genes whose raw estimate sits far off the current curve
		// and refit; stop once the kept set is stable.
		nextX := keptX[:0:0]
		nextY := keptY[:0:0]
		for k := range keptX {
			pred := a1*keptX[k] + a0
			ratio := keptY[k] / pred
			if ratio > 1e-4 && ratio < 15 {
				nextX = append(nextX, keptX[k])
				nextY = append(nextY, keptY[k])
			}
		}
		if len(nextX) < 3 {
			break
		}
		if len(nextX) == len(keptX) {
			break
		}
		keptX, keptY = nextX, nextY
	}
	return a0, a1
}

// madVariance estimates variance robustly from the median absolute
// deviation, scaled for consistency with the normal distribution.
func madVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	med, err := stats.Median(append([]float64(nil), xs...))
	if err != nil {
		return 0
	}
	dev := make([]float64, len(xs))
	for i, x := range xs {
		dev[i] = math.Abs(x - med)
	}
	mad, err := stats.Median(dev)
	if err != nil {
		return 0
	}
	sd := 1.4826 * mad
	return sd * sd
}

// trigamma approximates the trigamma function for positive x via the
// recurrence and asymptotic expansion.
func trigamma(x float64) float64 {
	if x <= 0 {
		return math.Inf(1)
	}
	acc := 0.0
	for x < 6 {
		acc += 1 / (x * x)
		x++
	}
	inv := 1 / x
	inv2 := inv * inv
	// psi'(x) ~ 1/x + 1/(2x^2) + 1/(6x^3) - 1/(30x^5) + ...
	return acc + inv + inv2/2 + inv2*inv/6 - inv2*inv2*inv/30
}
