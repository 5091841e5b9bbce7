package dge

import (
	"math"
	"sort"
)

// AdjustBH applies the Benjamini-Hochberg step-up procedure. NaN entries
// (undefined statistics, count outliers) are excluded from the correction
// denominator and stay NaN in the output. Adjusted values are monotone in
// the raw p-values and never smaller than them.
func AdjustBH(pvalues []float64) []float64 {
	adj := make([]float64, len(pvalues))
	idx := make([]int, 0, len(pvalues))
	for i, p := range pvalues {
		if math.IsNaN(p) {
			adj[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	n := len(idx)
	if n == 0 {
		return adj
	}

	sort.Slice(idx, func(a, b int) bool { return pvalues[idx[a]] < pvalues[idx[b]] })

	minAdj := 1.0
	for k := n - 1; k >= 0; k-- {
		i := idx[k]
		a := pvalues[i] * float64(n) / float64(k+1)
		if a > 1 {
			a = 1
		}
		if a < minAdj {
			minAdj = a
		} else {
			a = minAdj
		}
		adj[i] = a
	}

	return adj
}
