// Package overlap computes exclusive set-intersection cardinalities for
// up/down differential-expression calls, the numbers a Venn or UpSet
// renderer consumes. Pure combinatorics, no inference.
package overlap

import (
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
)

// LabeledSet is one named gene set, e.g. the significant up-calls of one
// contrast.
type LabeledSet struct {
	Label   string
	Members []string
}

// FromResult derives the up and down call sets of one contrast: genes with
// an adjusted p-value below the cutoff, split by fold-change sign.
func FromResult(r *dge.Result, padjCutoff float64) (up, down LabeledSet) {
	up = LabeledSet{Label: r.Contrast + "_up"}
	down = LabeledSet{Label: r.Contrast + "_dn"}
	for _, row := range r.Rows {
		if math.IsNaN(row.PAdj) || row.PAdj >= padjCutoff || math.IsNaN(row.Log2FoldChange) {
			continue
		}
		if row.Log2FoldChange > 0 {
			up.Members = append(up.Members, row.Gene)
		} else if row.Log2FoldChange < 0 {
			down.Members = append(down.Members, row.Gene)
		}
	}
	return up, down
}

// Regions computes the cardinality of every non-empty inclusion/exclusion
// combination over the labelled sets: for each combination of labels, the
// count of elements belonging to exactly those sets and no others. Keys are
// the included labels in their input order, joined by "∩". Combinations
// with zero members are omitted.
func Regions(sets []LabeledSet) map[string]int {
	membership := make(map[string]uint64)
	for bit, s := range sets {
		for _, g := range lo.Uniq(s.Members) {
			membership[g] |= 1 << uint(bit)
		}
	}

	counts := make(map[uint64]int)
	for _, mask := range membership {
		counts[mask]++
	}

	out := make(map[string]int, len(counts))
	for mask, n := range counts {
		labels := make([]string, 0, len(sets))
		for bit := range sets {
			if mask&(1<<uint(bit)) != 0 {
				labels = append(labels, sets[bit].Label)
			}
		}
		out[strings.Join(labels, "∩")] = n
	}
	return out
}

// Intersections computes the plain (non-exclusive) intersection size for
// every combination of two or more labels, keyed the same way as Regions.
func Intersections(sets []LabeledSet) map[string]int {
	members := make([]map[string]bool, len(sets))
	for i, s := range sets {
		members[i] = make(map[string]bool, len(s.Members))
		for _, g := range s.Members {
			members[i][g] = true
		}
	}

	out := make(map[string]int)
	total := 1 << uint(len(sets))
	for mask := 1; mask < total; mask++ {
		if popcount(mask) < 2 {
			continue
		}
		var labels []string
		n := 0
		for g := range members[firstBit(mask)] {
			inAll := true
			for bit := range sets {
				if mask&(1<<uint(bit)) != 0 && !members[bit][g] {
					inAll = false
					break
				}
			}
			if inAll {
				n++
			}
		}
		for bit := range sets {
			if mask&(1<<uint(bit)) != 0 {
				labels = append(labels, sets[bit].Label)
			}
		}
		out[strings.Join(labels, "∩")] = n
	}
	return out
}

// SortedKeys returns the combination keys ordered by label count then
// lexically, a stable order for emitted tables.
func SortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		na := strings.Count(keys[a], "∩")
		nb := strings.Count(keys[b], "∩")
		if na != nb {
			return na < nb
		}
		return keys[a] < keys[b]
	})
	return keys
}

func popcount(mask int) int {
	n := 0
	for mask != 0 {
		n += mask & 1
		mask >>= 1
	}
	return n
}

func firstBit(mask int) int {
	for bit := 0; ; bit++ {
		if mask&(1<<uint(bit)) != 0 {
			return bit
		}
	}
}
