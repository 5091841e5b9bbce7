// Package enrich scores gene sets against one or more differential
// expression contrasts with rank-based statistics, jointly across all
// supplied contrasts.
package enrich

import (
	"errors"
	"math"
	"sort"
)

// Profile is the read-only gene-by-contrast effect matrix the scoring
// functions run against. Genes unmeasured in a contrast hold NaN in that
// dimension and are excluded from that dimension's ranking.
type Profile struct {
	contrasts []string
	genes     []string
	index     map[string]int
	effects   [][]float64 // gene-major, one value per contrast

	dims []dimension // per-contrast rank tables, built once
}

// dimension holds the precomputed ranking of one contrast.
type dimension struct {
	n       int       // measured genes
	ranks   []float64 // aligned with profile genes, NaN when unmeasured
	tieTerm float64   // sum of t^3 - t over tie groups
}

// NewProfile builds an effect matrix from one gene-to-effect-size map per
// contrast. Contrast names must be unique and at least one contrast must
// be supplied.
func NewProfile(contrasts []string, effects []map[string]float64) (*Profile, error) {
	if len(contrasts) == 0 || len(contrasts) != len(effects) {
		return nil, errors.New("enrich: need one effect map per contrast")
	}
	seen := make(map[string]bool, len(contrasts))
	for _, c := range contrasts {
		if seen[c] {
			return nil, errors.New("enrich: duplicate contrast name " + c)
		}
		seen[c] = true
	}

	index := make(map[string]int)
	var genes []string
	for _, m := range effects {
		for g := range m {
			if _, ok := index[g]; !ok {
				index[g] = len(genes)
				genes = append(genes, g)
			}
		}
	}
	// Deterministic gene order regardless of map iteration.
	sort.Strings(genes)
	for i, g := range genes {
		index[g] = i
	}

	mat := make([][]float64, len(genes))
	for i, g := range genes {
		row := make([]float64, len(contrasts))
		for d, m := range effects {
			if v, ok := m[g]; ok {
				row[d] = v
			} else {
				row[d] = math.NaN()
			}
		}
		mat[i] = row
	}

	p := &Profile{
		contrasts: append([]string(nil), contrasts...),
		genes:     genes,
		index:     index,
		effects:   mat,
	}
	p.dims = make([]dimension, len(contrasts))
	for d := range contrasts {
		p.dims[d] = p.rankDimension(d)
	}
	return p, nil
}

// Contrasts returns the contrast names in dimension order.
func (p *Profile) Contrasts() []string { return append([]string(nil), p.contrasts...) }

// NGenes returns the number of genes measured in at least one contrast.
func (p *Profile) NGenes() int { return len(p.genes) }

// rankDimension assigns ascending average ranks to the genes measured in
// one contrast, so higher effect sizes get higher ranks.
func (p *Profile) rankDimension(d int) dimension {
	type entry struct {
		gi int
		v  float64
	}
	var measured []entry
	for gi, row := range p.effects {
		if !math.IsNaN(row[d]) {
			measured = append(measured, entry{gi, row[d]})
		}
	}
	sort.Slice(measured, func(a, b int) bool { return measured[a].v < measured[b].v })

	ranks := make([]float64, len(p.genes))
	for i := range ranks {
		ranks[i] = math.NaN()
	}

	tieTerm := 0.0
	i := 0
	for i < len(measured) {
		j := i
		for j < len(measured) && measured[j].v == measured[i].v {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[measured[k].gi] = avg
		}
		if t := float64(j - i); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}

	return dimension{n: len(measured), ranks: ranks, tieTerm: tieTerm}
}
