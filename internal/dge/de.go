// Package dge fits per-gene negative-binomial models for one
// control-vs-treatment contrast: size factors, dispersion shrinkage, Wald
// tests with BH correction and a variance-stabilized matrix for plotting.
package dge

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/markziemann/maryam-rnaseq/internal/matrix"
)

// Options control a contrast fit.
type Options struct {
	// MinMeanCount is the detectability filter: genes whose mean raw count
	// across the contrast's samples does not exceed it are dropped.
	MinMeanCount float64
	// CooksQuantile is the F-distribution quantile above which a gene's
	// maximum Cook's distance marks it as a count outlier.
	CooksQuantile float64
	// Workers bounds the per-gene fit pool; 0 means NumCPU.
	Workers int
}

// DefaultOptions returns the standard filter and outlier settings.
func DefaultOptions() Options {
	return Options{
		MinMeanCount:  10,
		CooksQuantile: 0.99,
	}
}

// DEResult is the per-gene output of one contrast.
type DEResult struct {
	Gene           string
	BaseMean       float64
	Log2FoldChange float64
	LfcSE          float64
	Stat           float64
	PValue         float64
	PAdj           float64 // NaN for outliers and undefined statistics
	Outlier        bool    // count outlier, excluded from BH
}

// Result is the complete output of one contrast: the canonical unordered
// gene table plus the fitted nuisance parameters and the VST matrix.
// Immutable once produced.
type Result struct {
	Contrast    string
	Samples     []string
	SizeFactors []float64
	Dispersions *DispersionFit
	Rows        []DEResult  // aligned with the filtered gene order
	VST         [][]float64 // filtered genes x contrast samples
}

// SortedRows returns the rows ordered by ascending raw p-value, NaNs last,
// which is the order emitted tables use.
func (r *Result) SortedRows() []DEResult {
	rows := append([]DEResult(nil), r.Rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		pa, pb := rows[a].PValue, rows[b].PValue
		if math.IsNaN(pa) {
			return false
		}
		if math.IsNaN(pb) {
			return true
		}
		return pa < pb
	})
	return rows
}

// EffectSizes returns a gene-to-log2-fold-change map over genes with a
// defined effect, the form the enrichment engine consumes.
func (r *Result) EffectSizes() map[string]float64 {
	out := make(map[string]float64, len(r.Rows))
	for _, row := range r.Rows {
		if !math.IsNaN(row.Log2FoldChange) {
			out[row.Gene] = row.Log2FoldChange
		}
	}
	return out
}

// Analysis fits contrasts against a shared count matrix.
type Analysis struct {
	opts   Options
	logger *zap.Logger
}

// New creates an analysis with the given options.
func New(opts Options) *Analysis {
	if opts.MinMeanCount == 0 {
		opts.MinMeanCount = 10
	}
	if opts.CooksQuantile == 0 {
		opts.CooksQuantile = 0.99
	}
	return &Analysis{opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger for per-gene warnings.
func (a *Analysis) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Run fits one contrast, estimating size factors from the contrast's own
// sample subset.
func (a *Analysis) Run(m *matrix.CountMatrix, c matrix.Contrast) (*Result, error) {
	return a.run(m, c, nil)
}

// RunWithSizeFactors fits one contrast using externally supplied size
// factors (one per contrast sample), skipping median-of-ratios estimation.
func (a *Analysis) RunWithSizeFactors(m *matrix.CountMatrix, c matrix.Contrast, sizeFactors []float64) (*Result, error) {
	if len(sizeFactors) != len(c.Samples) {
		return nil, fmt.Errorf("contrast %q: %d size factors for %d samples", c.Name, len(sizeFactors), len(c.Samples))
	}
	return a.run(m, c, sizeFactors)
}

func (a *Analysis) run(m *matrix.CountMatrix, c matrix.Contrast, sizeFactors []float64) (*Result, error) {
	if len(c.Samples) < minSamples {
		return nil, &InsufficientSamplesError{Contrast: c.Name, Samples: len(c.Samples)}
	}
	n0, n1 := c.Levels()
	if n0 == 0 || n1 == 0 {
		return nil, fmt.Errorf("contrast %q: indicator has a single level (%d vs %d)", c.Name, n0, n1)
	}

	cols, err := c.ColumnIndices(m)
	if err != nil {
		return nil, err
	}

	// Detectability filter over this contrast's samples only. The kept
	// gene set is an index view; the shared matrix is never copied whole.
	all := m.SubColumns(cols)
	var kept []int
	for i, row := range all {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum/float64(len(row)) > a.opts.MinMeanCount {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("contrast %q: no genes pass the mean count filter (> %g)", c.Name, a.opts.MinMeanCount)
	}

	counts := make([][]float64, len(kept))
	genes := make([]string, len(kept))
	for k, gi := range kept {
		counts[k] = all[gi]
		genes[k] = m.Gene(gi)
	}

	if sizeFactors == nil {
		sizeFactors, err = EstimateSizeFactors(counts)
		if err != nil {
			return nil, fmt.Errorf("contrast %q: %w", c.Name, err)
		}
	}

	const designP = 2
	disp, err := EstimateDispersions(counts, sizeFactors, designP)
	if err != nil {
		return nil, fmt.Errorf("contrast %q: %w", c.Name, err)
	}

	offsets := make([]float64, len(sizeFactors))
	for j, s := range sizeFactors {
		offsets[j] = math.Log(s)
	}

	cooksCutoff := math.Inf(1)
	if df := len(c.Samples) - designP; df >= 2 {
		cooksCutoff = distuv.F{D1: designP, D2: float64(df)}.Quantile(a.opts.CooksQuantile)
	}

	rows := a.fitGenes(genes, counts, c.Indicator, offsets, disp, cooksCutoff)

	// BH over genes with a defined p-value that were not flagged as count
	// outliers; everything else keeps a NaN adjusted value.
	pvals := make([]float64, len(rows))
	for i, r := range rows {
		if r.Outlier {
			pvals[i] = math.NaN()
		} else {
			pvals[i] = r.PValue
		}
	}
	adj := AdjustBH(pvals)
	for i := range rows {
		rows[i].PAdj = adj[i]
	}

	norm := make([][]float64, len(counts))
	for i, row := range counts {
		q := make([]float64, len(row))
		for j, v := range row {
			q[j] = v / sizeFactors[j]
		}
		norm[i] = q
	}

	return &Result{
		Contrast:    c.Name,
		Samples:     append([]string(nil), c.Samples...),
		SizeFactors: sizeFactors,
		Dispersions: disp,
		Rows:        rows,
		VST:         VSTransform(norm, disp.A0, disp.A1),
	}, nil
}

// fitGenes runs the per-gene GLM fits on a worker pool. Each worker owns a
// disjoint slice of gene indices; results land in a preallocated slice, so
// no ordering or locking is needed.
func (a *Analysis) fitGenes(genes []string, counts [][]float64, indicator []int, offsets []float64, disp *DispersionFit, cooksCutoff float64) []DEResult {
	workers := a.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	rows := make([]DEResult, len(genes))
	jobs := make(chan int, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				rows[i] = a.fitGene(genes[i], counts[i], indicator, offsets, disp.Shrunk[i], disp.BaseMean[i], cooksCutoff)
			}
		}()
	}
	for i := range genes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return rows
}

func (a *Analysis) fitGene(gene string, y []float64, indicator []int, offsets []float64, alpha, baseMean, cooksCutoff float64) DEResult {
	if constantCounts(y) {
		a.logger.Warn("undefined statistic for zero-variance gene", zap.String("gene", gene))
		return DEResult{
			Gene:           gene,
			BaseMean:       baseMean,
			Log2FoldChange: math.NaN(),
			LfcSE:          math.NaN(),
			Stat:           math.NaN(),
			PValue:         math.NaN(),
			PAdj:           math.NaN(),
		}
	}

	fit := fitNBGLM(y, indicator, offsets, alpha)
	if math.IsNaN(fit.se1) || fit.se1 == 0 {
		return DEResult{
			Gene:           gene,
			BaseMean:       baseMean,
			Log2FoldChange: math.NaN(),
			LfcSE:          math.NaN(),
			Stat:           math.NaN(),
			PValue:         math.NaN(),
			PAdj:           math.NaN(),
		}
	}

	// Wald test on the natural-log coefficient; reported effect and SE are
	// rescaled to log2.
	z := fit.beta1 / fit.se1
	p := 2 * distuv.UnitNormal.CDF(-math.Abs(z))

	return DEResult{
		Gene:           gene,
		BaseMean:       baseMean,
		Log2FoldChange: fit.beta1 / math.Ln2,
		LfcSE:          fit.se1 / math.Ln2,
		Stat:           z,
		PValue:         p,
		PAdj:           math.NaN(),
		Outlier:        fit.maxCooks > cooksCutoff,
	}
}
