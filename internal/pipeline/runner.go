// Package pipeline runs a batch of contrasts against one count matrix and
// feeds the surviving results to enrichment and overlap reporting.
package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
	"github.com/markziemann/maryam-rnaseq/internal/enrich"
	"github.com/markziemann/maryam-rnaseq/internal/matrix"
	"github.com/markziemann/maryam-rnaseq/internal/overlap"
)

// ContrastSpec names one contrast to run: an indicator column from the
// sample sheet and the sample subset it applies to (nil means all sheet
// samples).
type ContrastSpec struct {
	Name      string
	Indicator string
	Samples   []string
}

// Outcome is the per-contrast result of a batch: either a complete table
// or a structured failure, never a partial one.
type Outcome struct {
	Spec   ContrastSpec
	Result *dge.Result
	Err    error
}

// Runner executes contrast batches.
type Runner struct {
	analysis *dge.Analysis
	logger   *zap.Logger
}

// NewRunner creates a runner around a configured analysis.
func NewRunner(a *dge.Analysis) *Runner {
	return &Runner{analysis: a, logger: zap.NewNop()}
}

// SetLogger sets the logger for per-contrast progress and failures.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// RunAll fits every contrast concurrently. A failing contrast surfaces as
// its outcome's Err and never blocks or corrupts the others; inputs are
// read-only so contrasts share no mutable state.
func (r *Runner) RunAll(ctx context.Context, m *matrix.CountMatrix, sheet *matrix.SampleSheet, specs []ContrastSpec) ([]Outcome, error) {
	if err := sheet.Validate(m); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(specs))
	g, ctx := errgroup.WithContext(ctx)

	for i, spec := range specs {
		i, spec := i, spec
		outcomes[i].Spec = spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			c, err := sheet.Contrast(spec.Name, spec.Indicator, spec.Samples)
			if err != nil {
				outcomes[i].Err = err
				r.logger.Warn("contrast skipped", zap.String("contrast", spec.Name), zap.Error(err))
				return nil
			}
			res, err := r.analysis.Run(m, c)
			if err != nil {
				outcomes[i].Err = err
				r.logger.Warn("contrast failed", zap.String("contrast", spec.Name), zap.Error(err))
				return nil
			}
			outcomes[i].Result = res
			r.logger.Info("contrast complete",
				zap.String("contrast", spec.Name),
				zap.Int("genes", len(res.Rows)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Succeeded filters a batch down to its completed results.
func Succeeded(outcomes []Outcome) []*dge.Result {
	var out []*dge.Result
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}

// EnrichmentProfile builds the joint effect matrix over the completed
// contrasts of a batch.
func EnrichmentProfile(outcomes []Outcome) (*enrich.Profile, error) {
	return enrich.ProfileFromResults(Succeeded(outcomes)...)
}

// UpDownSets derives the labelled up/down call sets of every completed
// contrast, in batch order, for overlap reporting.
func UpDownSets(outcomes []Outcome, padjCutoff float64) []overlap.LabeledSet {
	var sets []overlap.LabeledSet
	for _, res := range Succeeded(outcomes) {
		up, down := overlap.FromResult(res, padjCutoff)
		sets = append(sets, up, down)
	}
	return sets
}
