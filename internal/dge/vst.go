package dge

import (
	"math"
)

// vstValue applies the closed-form variance-stabilizing transform for the
// parametric dispersion trend alpha(mu) = a1/mu + a0 to one normalized
// count. Using the trend rather than per-gene estimates keeps the transform
// stable for genes with few reads.
func vstValue(q, a0, a1 float64) float64 {
	if a0 < minDispersion {
		// No asymptotic dispersion: the transform degenerates to a
		// shifted log.
		return math.Log2(q + 1)
	}
	num := 1 + a1 + 2*a0*q + 2*math.Sqrt(a0*q*(1+a1+a0*q))
	return math.Log2(num / (4 * a0))
}

// VSTransform maps a genes-by-samples matrix of size-factor-normalized
// counts to variance-stabilized values parameterized by the fitted trend.
func VSTransform(norm [][]float64, a0, a1 float64) [][]float64 {
	out := make([][]float64, len(norm))
	for i, row := range norm {
		v := make([]float64, len(row))
		for j, q := range row {
			v[j] = vstValue(q, a0, a1)
		}
		out[i] = v
	}
	return out
}
