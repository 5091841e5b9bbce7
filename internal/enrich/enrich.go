package enrich

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
)

// NullModel selects how omnibus p-values are computed.
type NullModel string

const (
	// NullChiSquared is the closed-form default: the standardized rank-sum
	// statistic of each dimension is N(0,1) under no enrichment, so the
	// sum of squares follows a chi-squared distribution.
	NullChiSquared NullModel = "chisq"
	// NullPermutation draws set-size-matched random gene sets with a
	// deterministic seed and compares the observed statistic against them.
	NullPermutation NullModel = "permutation"
)

// Options control an enrichment run.
type Options struct {
	// MinSetSize drops sets whose overlap with measured genes is smaller.
	MinSetSize int
	// Null selects the omnibus null model.
	Null NullModel
	// Permutations is the draw count for NullPermutation.
	Permutations int
	// Seed makes permutation p-values reproducible.
	Seed int64
	// Workers bounds the per-set scoring pool; 0 means NumCPU.
	Workers int
}

// DefaultOptions returns the standard set-size filter and the closed-form
// null.
func DefaultOptions() Options {
	return Options{
		MinSetSize:   5,
		Null:         NullChiSquared,
		Permutations: 1000,
	}
}

// SetScore is the enrichment result for one gene set across all supplied
// contrasts.
type SetScore struct {
	Set  string
	Size int // member genes present in the effect matrix

	// Scores holds the per-dimension rank enrichment, each in [-1, 1],
	// positive when the set's members skew toward higher effect sizes.
	Scores []float64
	// EffectDist is the combined signed distance: the per-dimension score
	// for a single contrast, and for several contrasts the projection of
	// the score vector onto the concordance diagonal, so coordinated sets
	// keep their full magnitude while divergent sets cancel toward zero.
	EffectDist float64
	// ScoreSD is the spread of the per-dimension scores; it separates
	// divergent sets (large SD, small EffectDist) from unenriched ones.
	ScoreSD float64

	PValue float64
	PAdj   float64
}

// Engine scores gene sets against a profile.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an engine with the given options.
func NewEngine(opts Options) *Engine {
	if opts.MinSetSize == 0 {
		opts.MinSetSize = 5
	}
	if opts.Null == "" {
		opts.Null = NullChiSquared
	}
	if opts.Permutations == 0 {
		opts.Permutations = 1000
	}
	return &Engine{opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger for dropped-set diagnostics.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// ProfileFromResults builds the effect matrix for one or more contrasts
// from their DE tables, using the log2 fold-change as the effect size.
func ProfileFromResults(results ...*dge.Result) (*Profile, error) {
	names := make([]string, len(results))
	effects := make([]map[string]float64, len(results))
	for i, r := range results {
		names[i] = r.Contrast
		effects[i] = r.EffectSizes()
	}
	return NewProfile(names, effects)
}

// Score evaluates every gene set against the profile. Sets with no overlap
// with the measured genes are dropped silently; sets below the minimum
// overlap are skipped. Output is sorted by adjusted p-value ascending,
// ties broken by larger absolute effect distance.
func (e *Engine) Score(p *Profile, sets map[string][]string) []SetScore {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	scores := make([]*SetScore, len(names))

	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := make(chan int, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i] = e.scoreSet(p, names[i], sets[names[i]])
			}
		}()
	}
	for i := range names {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]SetScore, 0, len(names))
	pvals := make([]float64, 0, len(names))
	for _, s := range scores {
		if s == nil {
			continue
		}
		out = append(out, *s)
		pvals = append(pvals, s.PValue)
	}

	adj := dge.AdjustBH(pvals)
	for i := range out {
		out[i].PAdj = adj[i]
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].PAdj != out[b].PAdj {
			return out[a].PAdj < out[b].PAdj
		}
		da, db := math.Abs(out[a].EffectDist), math.Abs(out[b].EffectDist)
		if da != db {
			return da > db
		}
		return out[a].Set < out[b].Set
	})

	return out
}

// scoreSet evaluates one set; nil means the set was dropped.
func (e *Engine) scoreSet(p *Profile, name string, members []string) *SetScore {
	idx := memberIndices(p, members)
	if len(idx) == 0 {
		e.logger.Debug("gene set has no measured members", zap.String("set", name))
		return nil
	}
	if len(idx) < e.opts.MinSetSize {
		e.logger.Debug("gene set below minimum overlap",
			zap.String("set", name), zap.Int("overlap", len(idx)))
		return nil
	}

	scores, zs := p.setStatistics(idx)

	s := &SetScore{
		Set:        name,
		Size:       len(idx),
		Scores:     scores,
		EffectDist: combinedDistance(scores),
		ScoreSD:    scoreSD(scores),
	}

	switch e.opts.Null {
	case NullPermutation:
		s.PValue = e.permutationP(p, name, len(idx), zs)
	default:
		s.PValue = chiSquaredP(zs)
	}
	s.PAdj = math.NaN()
	return s
}

// memberIndices resolves unique member genes to profile indices.
func memberIndices(p *Profile, members []string) []int {
	seen := make(map[int]bool, len(members))
	idx := make([]int, 0, len(members))
	for _, g := range members {
		if gi, ok := p.index[g]; ok && !seen[gi] {
			seen[gi] = true
			idx = append(idx, gi)
		}
	}
	return idx
}

// setStatistics computes, per dimension, the [-1, 1] enrichment score and
// the standardized rank-sum z-statistic for the member genes.
func (p *Profile) setStatistics(idx []int) (scores, zs []float64) {
	scores = make([]float64, len(p.dims))
	zs = make([]float64, len(p.dims))

	for d, dim := range p.dims {
		var rankSum float64
		k := 0
		for _, gi := range idx {
			r := dim.ranks[gi]
			if !math.IsNaN(r) {
				rankSum += r
				k++
			}
		}
		n := float64(dim.n)
		kf := float64(k)
		if k == 0 || k == dim.n {
			continue
		}

		meanRank := rankSum / kf
		scores[d] = 2 * (meanRank - (n+1)/2) / n

		sigma := math.Sqrt(kf * (n - kf) / 12 * ((n + 1) - dim.tieTerm/(n*(n-1))))
		if sigma > 0 {
			zs[d] = (rankSum - kf*(n+1)/2) / sigma
		}
	}
	return scores, zs
}

// combinedDistance folds per-dimension scores into one signed scalar. For
// one contrast it is the score itself; for several it is the score
// vector's projection onto the all-dimensions-concordant diagonal, which
// keeps the Euclidean magnitude for coordinated sets and cancels for sets
// moving in opposite directions across contrasts.
func combinedDistance(scores []float64) float64 {
	if len(scores) == 1 {
		return scores[0]
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / math.Sqrt(float64(len(scores)))
}

func scoreSD(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	ss := 0.0
	for _, s := range scores {
		ss += (s - mean) * (s - mean)
	}
	return math.Sqrt(ss / float64(len(scores)-1))
}
