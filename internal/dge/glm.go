package dge

import (
	"math"
)

const (
	glmMaxIter = 100
	glmTol     = 1e-8
	// Cap on the linear predictor to keep exp() finite when a group has
	// all-zero counts and the MLE runs away.
	glmEtaCap = 30
)

// glmFit is the result of one per-gene negative-binomial GLM fit with a
// log link, design [intercept, indicator], fixed dispersion and log size
// factor offsets.
type glmFit struct {
	beta0, beta1 float64 // natural-log scale coefficients
	se1          float64 // standard error of beta1 from the Fisher information
	maxCooks     float64 // largest Cook's distance across samples
	converged    bool
}

// fitNBGLM fits the model by Fisher scoring. y holds raw counts, x the 0/1
// treatment indicator and offset the per-sample log size factors. alpha is
// the (known, shrunk) dispersion.
func fitNBGLM(y []float64, x []int, offset []float64, alpha float64) glmFit {
	n := len(y)

	// Moment initialization from group means of offset-corrected counts.
	var sum0, sum1 float64
	var n0, n1 int
	for j := 0; j < n; j++ {
		q := y[j] / math.Exp(offset[j])
		if x[j] == 0 {
			sum0 += q
			n0++
		} else {
			sum1 += q
			n1++
		}
	}
	mean0 := sum0 / float64(n0)
	mean1 := sum1 / float64(n1)
	beta0 := math.Log(mean0 + 0.5)
	beta1 := math.Log((mean1 + 0.5) / (mean0 + 0.5))

	mu := make([]float64, n)
	var s00, s01, s11, det float64
	converged := false

	for iter := 0; iter < glmMaxIter; iter++ {
		s00, s01, s11 = 0, 0, 0
		var u0, u1 float64
		for j := 0; j < n; j++ {
			eta := offset[j] + beta0 + beta1*float64(x[j])
			if eta > glmEtaCap {
				eta = glmEtaCap
			} else if eta < -glmEtaCap {
				eta = -glmEtaCap
			}
			mu[j] = math.Exp(eta)

			w := mu[j] / (1 + alpha*mu[j])
			r := (y[j] - mu[j]) / (1 + alpha*mu[j])

			s00 += w
			u0 += r
			if x[j] == 1 {
				s01 += w
				s11 += w
				u1 += r
			}
		}

		det = s00*s11 - s01*s01
		if det <= 0 || math.IsNaN(det) {
			return glmFit{beta0: beta0, beta1: beta1, se1: math.NaN()}
		}

		d0 := (s11*u0 - s01*u1) / det
		d1 := (s00*u1 - s01*u0) / det
		// Damp huge steps so early iterations cannot overshoot.
		if m := math.Max(math.Abs(d0), math.Abs(d1)); m > 5 {
			d0 *= 5 / m
			d1 *= 5 / m
		}
		beta0 += d0
		beta1 += d1

		if math.Abs(d0) < glmTol && math.Abs(d1) < glmTol {
			converged = true
			break
		}
	}

	se1 := math.Sqrt(s00 / det)

	// Cook's distance per sample from the final weights: squared Pearson
	// residual scaled by leverage, against p = 2 coefficients.
	inv00 := s11 / det
	inv01 := -s01 / det
	inv11 := s00 / det
	maxCooks := 0.0
	for j := 0; j < n; j++ {
		w := mu[j] / (1 + alpha*mu[j])
		xj := float64(x[j])
		h := w * (inv00 + 2*inv01*xj + inv11*xj*xj)
		if h >= 1 {
			continue
		}
		variance := mu[j] * (1 + alpha*mu[j])
		if variance <= 0 {
			continue
		}
		r := (y[j] - mu[j]) / math.Sqrt(variance)
		cook := r * r * h / (2 * (1 - h) * (1 - h))
		if cook > maxCooks {
			maxCooks = cook
		}
	}

	return glmFit{
		beta0:     beta0,
		beta1:     beta1,
		se1:       se1,
		maxCooks:  maxCooks,
		converged: converged,
	}
}

// constantCounts reports whether a gene's counts are identical across all
// samples of the contrast, which leaves the fold-change undefined.
func constantCounts(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}
