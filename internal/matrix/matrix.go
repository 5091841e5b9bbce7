// Package matrix provides the immutable gene-by-sample count matrix and
// sample sheet types shared by every stage of the pipeline.
package matrix

import (
	"fmt"
)

// MalformedInputError reports invalid input data detected before any
// computation begins. It is fatal to the whole run.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

func malformedf(format string, args ...any) error {
	return &MalformedInputError{Reason: fmt.Sprintf(format, args...)}
}

// CountMatrix is a dense gene-by-sample matrix of non-negative integer
// counts. Row and column key sets are fixed at construction and the cell
// values are never mutated afterwards.
type CountMatrix struct {
	genes     []string
	samples   []string
	geneIdx   map[string]int
	sampleIdx map[string]int
	counts    []int64 // row-major, len = len(genes)*len(samples)
}

// NewCountMatrix builds a count matrix from row-major cell values.
// Gene and sample keys must be unique and every cell non-negative;
// violations yield a MalformedInputError.
func NewCountMatrix(genes, samples []string, counts []int64) (*CountMatrix, error) {
	if len(counts) != len(genes)*len(samples) {
		return nil, malformedf("count matrix has %d cells, want %d (%d genes x %d samples)",
			len(counts), len(genes)*len(samples), len(genes), len(samples))
	}

	geneIdx := make(map[string]int, len(genes))
	for i, g := range genes {
		if g == "" {
			return nil, malformedf("empty gene identifier at row %d", i)
		}
		if _, dup := geneIdx[g]; dup {
			return nil, malformedf("duplicate gene identifier %q", g)
		}
		geneIdx[g] = i
	}

	sampleIdx := make(map[string]int, len(samples))
	for j, s := range samples {
		if s == "" {
			return nil, malformedf("empty sample identifier at column %d", j)
		}
		if _, dup := sampleIdx[s]; dup {
			return nil, malformedf("duplicate sample identifier %q", s)
		}
		sampleIdx[s] = j
	}

	for k, v := range counts {
		if v < 0 {
			return nil, malformedf("negative count %d for gene %q sample %q",
				v, genes[k/len(samples)], samples[k%len(samples)])
		}
	}

	m := &CountMatrix{
		genes:     append([]string(nil), genes...),
		samples:   append([]string(nil), samples...),
		geneIdx:   geneIdx,
		sampleIdx: sampleIdx,
		counts:    append([]int64(nil), counts...),
	}
	return m, nil
}

// NGenes returns the number of rows.
func (m *CountMatrix) NGenes() int { return len(m.genes) }

// NSamples returns the number of columns.
func (m *CountMatrix) NSamples() int { return len(m.samples) }

// Genes returns a copy of the row keys in matrix order.
func (m *CountMatrix) Genes() []string { return append([]string(nil), m.genes...) }

// Samples returns a copy of the column keys in matrix order.
func (m *CountMatrix) Samples() []string { return append([]string(nil), m.samples...) }

// Gene returns the row key at index i.
func (m *CountMatrix) Gene(i int) string { return m.genes[i] }

// Sample returns the column key at index j.
func (m *CountMatrix) Sample(j int) string { return m.samples[j] }

// GeneIndex returns the row index for a gene key.
func (m *CountMatrix) GeneIndex(gene string) (int, bool) {
	i, ok := m.geneIdx[gene]
	return i, ok
}

// SampleIndex returns the column index for a sample key.
func (m *CountMatrix) SampleIndex(sample string) (int, bool) {
	j, ok := m.sampleIdx[sample]
	return j, ok
}

// Count returns the cell value at row i, column j.
func (m *CountMatrix) Count(i, j int) int64 {
	return m.counts[i*len(m.samples)+j]
}

// SubColumns extracts the counts for the given sample column indices as
// float64 rows, one slice per gene in matrix row order. The result is a
// fresh copy; the matrix itself is never aliased.
func (m *CountMatrix) SubColumns(cols []int) [][]float64 {
	sub := make([][]float64, len(m.genes))
	for i := range m.genes {
		row := make([]float64, len(cols))
		for k, j := range cols {
			row[k] = float64(m.Count(i, j))
		}
		sub[i] = row
	}
	return sub
}
