package enrich

import (
	"hash/fnv"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// chiSquaredP is the closed-form omnibus test: under no enrichment each
// dimension's standardized rank-sum statistic is approximately standard
// normal, so the sum of squares over the informative dimensions follows a
// chi-squared distribution with that many degrees of freedom.
func chiSquaredP(zs []float64) float64 {
	t := 0.0
	df := 0
	for _, z := range zs {
		if z != 0 {
			t += z * z
			df++
		}
	}
	if df == 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(df)}.Survival(t)
}

// permutationP estimates the omnibus p-value from set-size-matched random
// member draws. The generator is seeded from the run seed and the set name
// so results are reproducible regardless of scoring order.
func (e *Engine) permutationP(p *Profile, name string, size int, zs []float64) float64 {
	observed := 0.0
	for _, z := range zs {
		observed += z * z
	}

	h := fnv.New64a()
	h.Write([]byte(name))
	rng := rand.New(rand.NewSource(e.opts.Seed ^ int64(h.Sum64())))

	exceed := 0
	perm := make([]int, size)
	for b := 0; b < e.opts.Permutations; b++ {
		drawIndices(rng, p.NGenes(), perm)
		_, permZs := p.setStatistics(perm)
		t := 0.0
		for _, z := range permZs {
			t += z * z
		}
		if t >= observed {
			exceed++
		}
	}

	pv := float64(1+exceed) / float64(1+e.opts.Permutations)
	if pv > 1 {
		pv = 1
	}
	return pv
}

// drawIndices fills out with distinct indices from [0, n) by partial
// Fisher-Yates over a reservoir map, avoiding an O(n) shuffle per draw.
func drawIndices(rng *rand.Rand, n int, out []int) {
	swapped := make(map[int]int, len(out))
	for i := range out {
		j := i + rng.Intn(n-i)
		vi, ok := swapped[i]
		if !ok {
			vi = i
		}
		vj, ok := swapped[j]
		if !ok {
			vj = j
		}
		out[i] = vj
		swapped[j] = vi
	}
}
