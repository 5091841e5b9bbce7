package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
	"github.com/markziemann/maryam-rnaseq/internal/matrix"
	"github.com/markziemann/maryam-rnaseq/internal/output"
	"github.com/markziemann/maryam-rnaseq/internal/store"
)

func newDECmd() *cobra.Command {
	var (
		countsPath string
		sheetPath  string
		name       string
		indicator  string
		samples    string
		outPath    string
		vstPath    string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "de --counts <counts.tsv> --samplesheet <sheet> --indicator <column>",
		Short: "Fit one differential expression contrast",
		Long: `Fits a negative-binomial GLM per gene for one control-vs-treatment
contrast: median-of-ratios size factors, trend-shrunk dispersions, Wald
tests with Benjamini-Hochberg correction, and a variance-stabilized matrix.
The sample sheet may be tab-delimited or an .xlsx workbook.`,
		Example: `  dgepipe de --counts counts.tsv --samplesheet samples.tsv --indicator treated
  dgepipe de --counts counts.tsv --samplesheet samples.xlsx --indicator drugA \
      --samples ctrl1,ctrl2,ctrl3,drugA1,drugA2,drugA3 -o ctrl_vs_drugA.tsv`,
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
			if err := sheet.Validate(m); err != nil {
				return err
			}

			if name == "" {
				name = indicator
			}
			var subset []string
			if samples != "" {
				subset = strings.Split(samples, ",")
			}
			c, err := sheet.Contrast(name, indicator, subset)
			if err != nil {
				return err
			}

			analysis := dge.New(dge.Options{
				MinMeanCount: viper.GetFloat64("filter.min_mean_count"),
				Workers:      viper.GetInt("workers"),
			})
			analysis.SetLogger(logger)

			res, err := analysis.Run(m, c)
			if err != nil {
				return err
			}
			logger.Info("contrast fit",
				zap.String("contrast", res.Contrast),
				zap.Int("genes", len(res.Rows)))

			if dbPath != "" {
				db, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.WriteDEResults(res); err != nil {
					return err
				}
			}

			if vstPath != "" {
				vf, closeFn, err := createOutput(vstPath)
				if err != nil {
					return err
				}
				defer closeFn()
				if err := output.WriteVSTMatrix(vf, res); err != nil {
					return err
				}
			}

			out, closeFn, err := createOutput(outPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return output.WriteDETable(out, res)
		},
	}

	cmd.Flags().StringVar(&countsPath, "counts", "", "gene-by-sample count table (required)")
	cmd.Flags().StringVar(&sheetPath, "samplesheet", "", "sample sheet, .tsv or .xlsx (required)")
	cmd.Flags().StringVar(&indicator, "indicator", "", "binary indicator column defining the contrast (required)")
	cmd.Flags().StringVar(&name, "name", "", "contrast name (default: indicator column)")
	cmd.Flags().StringVar(&samples, "samples", "", "comma-separated sample subset (default: all sheet samples)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output DE table (default: stdout)")
	cmd.Flags().StringVar(&vstPath, "vst", "", "also write the variance-stabilized matrix here")
	cmd.Flags().StringVar(&dbPath, "db", "", "also persist results to this DuckDB file")
	cmd.MarkFlagRequired("counts")
	cmd.MarkFlagRequired("samplesheet")
	cmd.MarkFlagRequired("indicator")

	return cmd
}
