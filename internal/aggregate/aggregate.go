// Package aggregate collapses transcript-level abundance estimates into a
// gene-level integer count matrix.
package aggregate

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/matrix"
)

// TranscriptCount is one (accession, estimated count) pair for a sample.
type TranscriptCount struct {
	Accession string
	Count     float64
}

// SampleCounts holds all transcript abundances for one sample.
type SampleCounts struct {
	Sample      string
	Transcripts []TranscriptCount
}

// Aggregator groups transcripts by gene and sums their values per sample.
type Aggregator struct {
	logger *zap.Logger
}

// New creates an aggregator.
func New() *Aggregator {
	return &Aggregator{logger: zap.NewNop()}
}

// SetLogger sets the logger for unmapped-transcript warnings.
func (a *Aggregator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Aggregate sums transcript counts per gene per sample and rounds to the
// nearest integer. Gene keys come from the tx2gene map by exact string
// match; transcripts without a mapping are dropped with a warning. The
// output matrix is dense: a gene seen in any sample gets a 0 cell, never a
// missing one, in samples that contributed no transcripts for it. Gene rows
// are emitted in sorted key order so output is independent of input order.
func (a *Aggregator) Aggregate(samples []SampleCounts, tx2gene map[string]string) (*matrix.CountMatrix, error) {
	sums := make(map[string][]float64)
	sampleNames := make([]string, len(samples))

	unmapped := 0
	for j, s := range samples {
		sampleNames[j] = s.Sample
		for _, t := range s.Transcripts {
			gene, ok := tx2gene[t.Accession]
			if !ok {
				unmapped++
				continue
			}
			row, ok := sums[gene]
			if !ok {
				row = make([]float64, len(samples))
				sums[gene] = row
			}
			row[j] += t.Count
		}
	}
	if unmapped > 0 {
		a.logger.Warn("transcripts without gene mapping dropped", zap.Int("n", unmapped))
	}

	genes := make([]string, 0, len(sums))
	for g := range sums {
		genes = append(genes, g)
	}
	sort.Strings(genes)

	counts := make([]int64, 0, len(genes)*len(samples))
	for _, g := range genes {
		for _, v := range sums[g] {
			counts = append(counts, int64(math.Round(v)))
		}
	}

	return matrix.NewCountMatrix(genes, sampleNames, counts)
}
