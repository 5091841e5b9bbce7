package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
	"github.com/markziemann/maryam-rnaseq/internal/enrich"
	"github.com/markziemann/maryam-rnaseq/internal/matrix"
	"github.com/markziemann/maryam-rnaseq/internal/output"
	"github.com/markziemann/maryam-rnaseq/internal/overlap"
	"github.com/markziemann/maryam-rnaseq/internal/pipeline"
	"github.com/markziemann/maryam-rnaseq/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		countsPath string
		sheetPath  string
		contrasts  []string
		gmtPath    string
		outDir     string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "run --counts <counts.tsv> --samplesheet <sheet> --contrast <spec>...",
		Short: "Run the full batch: DE per contrast, enrichment, overlaps",
		Long: `Fits every contrast concurrently, then scores gene sets per contrast and
jointly across all contrasts, and counts up/down call overlaps. A contrast
spec is name=indicator or name=indicator:sample1,sample2,... A contrast
that cannot be fit is reported and skipped; the others still complete.`,
		Example: `  dgepipe run --counts counts.tsv --samplesheet samples.tsv \
      --contrast ctrl_vs_A=drugA:c1,c2,c3,a1,a2,a3 \
      --contrast ctrl_vs_B=drugB:c1,c2,c3,b1,b2,b3 \
      --gmt reactome.gmt --outdir results/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := matrix.ReadCountMatrixTSV(countsPath)
			if err != nil {
				return err
			}
			sheet, err := matrix.ReadSampleSheet(sheetPath)
			if err != nil {
				return err
			}

			specs := make([]pipeline.ContrastSpec, 0, len(contrasts))
			for _, raw := range contrasts {
				spec, err := parseContrastSpec(raw)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}
			if len(specs) == 0 {
				return fmt.Errorf("at least one --contrast is required")
			}

			analysis := dge.New(dge.Options{
				MinMeanCount: viper.GetFloat64("filter.min_mean_count"),
				Workers:      viper.GetInt("workers"),
			})
			analysis.SetLogger(logger)

			runner := pipeline.NewRunner(analysis)
			runner.SetLogger(logger)

			outcomes, err := runner.RunAll(cmd.Context(), m, sheet, specs)
			if err != nil {
				return err
			}

			var db *store.Store
			if dbPath != "" {
				db, err = store.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
			}

			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
					continue
				}
				if err := writeContrastFiles(outDir, o.Result); err != nil {
					return err
				}
				if db != nil {
					if err := db.WriteDEResults(o.Result); err != nil {
						return err
					}
				}
			}
			succeeded := pipeline.Succeeded(outcomes)
			if len(succeeded) == 0 {
				return fmt.Errorf("all %d contrasts failed", failed)
			}

			if gmtPath != "" {
				if err := runEnrichment(succeeded, gmtPath, outDir, db); err != nil {
					return err
				}
			}

			if len(succeeded) >= 2 {
				padj := viper.GetFloat64("de.padj_cutoff")
				counts := overlap.Regions(pipeline.UpDownSets(outcomes, padj))
				if err := writeTable(filepath.Join(outDir, "overlap.tsv"), func(f *os.File) error {
					return output.WriteOverlapCounts(f, counts)
				}); err != nil {
					return err
				}
				if db != nil {
					if err := db.WriteOverlapCounts("batch", counts); err != nil {
						return err
					}
				}
			}

			logger.Info("batch complete",
				zap.Int("contrasts", len(specs)),
				zap.Int("failed", failed))
			if failed > 0 {
				for _, o := range outcomes {
					if o.Err != nil {
						fmt.Fprintf(os.Stderr, "contrast %s failed: %v\n", o.Spec.Name, o.Err)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&countsPath, "counts", "", "gene-by-sample count table (required)")
	cmd.Flags().StringVar(&sheetPath, "samplesheet", "", "sample sheet, .tsv or .xlsx (required)")
	cmd.Flags().StringArrayVar(&contrasts, "contrast", nil, "contrast spec name=indicator[:samples] (repeatable)")
	cmd.Flags().StringVar(&gmtPath, "gmt", "", "gene set file for enrichment (optional)")
	cmd.Flags().StringVar(&outDir, "outdir", "results", "output directory")
	cmd.Flags().StringVar(&dbPath, "db", "", "also persist results to this DuckDB file")
	cmd.MarkFlagRequired("counts")
	cmd.MarkFlagRequired("samplesheet")

	return cmd
}

func parseContrastSpec(raw string) (pipeline.ContrastSpec, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok || name == "" || rest == "" {
		return pipeline.ContrastSpec{}, fmt.Errorf("bad contrast spec %q, want name=indicator[:samples]", raw)
	}
	indicator, sampleList, hasSamples := strings.Cut(rest, ":")
	spec := pipeline.ContrastSpec{Name: name, Indicator: indicator}
	if hasSamples && sampleList != "" {
		spec.Samples = strings.Split(sampleList, ",")
	}
	return spec, nil
}

func writeContrastFiles(outDir string, res *dge.Result) error {
	if err := writeTable(filepath.Join(outDir, res.Contrast+"_de.tsv"), func(f *os.File) error {
		return output.WriteDETable(f, res)
	}); err != nil {
		return err
	}
	return writeTable(filepath.Join(outDir, res.Contrast+"_vst.tsv"), func(f *os.File) error {
		return output.WriteVSTMatrix(f, res)
	})
}

func runEnrichment(results []*dge.Result, gmtPath, outDir string, db *store.Store) error {
	minSize := viper.GetInt("enrich.min_set_size")
	sets, err := enrich.ReadGMT(gmtPath, minSize)
	if err != nil {
		return err
	}

	engine := enrich.NewEngine(enrich.Options{
		MinSetSize:   minSize,
		Null:         enrich.NullModel(viper.GetString("enrich.null")),
		Permutations: viper.GetInt("enrich.permutations"),
		Seed:         viper.GetInt64("enrich.seed"),
		Workers:      viper.GetInt("workers"),
	})
	engine.SetLogger(logger)

	// One run per contrast, plus a joint run when there are several.
	runs := make([][]*dge.Result, 0, len(results)+1)
	for _, r := range results {
		runs = append(runs, []*dge.Result{r})
	}
	if len(results) > 1 {
		runs = append(runs, results)
	}

	for _, group := range runs {
		profile, err := enrich.ProfileFromResults(group...)
		if err != nil {
			return err
		}
		scores := engine.Score(profile, sets)

		names := profile.Contrasts()
		label := strings.Join(names, "+")
		if err := writeTable(filepath.Join(outDir, "enrich_"+label+".tsv"), func(f *os.File) error {
			return output.WriteEnrichmentTable(f, names, scores)
		}); err != nil {
			return err
		}
		if db != nil {
			if err := db.WriteEnrichmentResults(label, scores); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeTable(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return write(f)
}
