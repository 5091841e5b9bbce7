package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/aggregate"
	"github.com/markziemann/maryam-rnaseq/internal/output"
)

func newAggregateCmd() *cobra.Command {
	var (
		tx2genePath string
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "aggregate --tx2gene <map.tsv> <abundance.tsv>...",
		Short: "Collapse transcript abundances into a gene-level count matrix",
		Long: `Sums transcript-level estimated counts per gene per sample and rounds to
integers. Each abundance file is one sample; the sample name is the file's
parent directory (kallisto layout) or its base name. The gene key comes from
the tx2gene map by exact accession match.`,
		Example: `  dgepipe aggregate --tx2gene tx2gene.tsv ctrl1/abundance.tsv ctrl2/abundance.tsv
  dgepipe aggregate --tx2gene tx2gene.tsv -o counts.tsv samples/*/abundance.tsv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t2g, err := aggregate.ReadTx2Gene(tx2genePath)
			if err != nil {
				return err
			}

			samples := make([]aggregate.SampleCounts, 0, len(args))
			for _, path := range args {
				sc, err := aggregate.ReadAbundanceTSV(sampleName(path), path)
				if err != nil {
					return err
				}
				samples = append(samples, sc)
			}

			agg := aggregate.New()
			agg.SetLogger(logger)
			m, err := agg.Aggregate(samples, t2g)
			if err != nil {
				return err
			}
			logger.Info("aggregated counts",
				zap.Int("genes", m.NGenes()),
				zap.Int("samples", m.NSamples()))

			out, closeFn, err := createOutput(outPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return output.WriteCountMatrix(out, m)
		},
	}

	cmd.Flags().StringVar(&tx2genePath, "tx2gene", "", "transcript-to-gene map (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output count table (default: stdout)")
	cmd.MarkFlagRequired("tx2gene")

	return cmd
}

// sampleName derives a sample identifier from an abundance file path: the
// parent directory name when informative, otherwise the file base name.
func sampleName(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir != "." && dir != "/" && dir != "" {
		return dir
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".tsv")
}
