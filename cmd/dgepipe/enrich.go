package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/enrich"
	"github.com/markziemann/maryam-rnaseq/internal/output"
	"github.com/markziemann/maryam-rnaseq/internal/store"
)

func newEnrichCmd() *cobra.Command {
	var (
		gmtPath string
		outPath string
		dbPath  string
		run     string
	)

	cmd := &cobra.Command{
		Use:   "enrich --gmt <sets.gmt> <de-table.tsv>...",
		Short: "Score gene sets against one or more DE tables",
		Long: `Computes rank-based enrichment per gene set. With one DE table this is a
single-contrast score; with several, sets are scored jointly across all
contrasts and the combined effect distance separates coordinated from
divergent behavior. Contrast names come from the table file names.`,
		Example: `  dgepipe enrich --gmt reactome.gmt ctrl_vs_drugA.tsv
  dgepipe enrich --gmt reactome.gmt ctrl_vs_drugA.tsv ctrl_vs_drugB.tsv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minSize := viper.GetInt("enrich.min_set_size")
			sets, err := enrich.ReadGMT(gmtPath, minSize)
			if err != nil {
				return err
			}
			logger.Info("gene sets loaded", zap.Int("sets", len(sets)))

			names := make([]string, len(args))
			effects := make([]map[string]float64, len(args))
			for i, path := range args {
				name := tableName(path)
				t, err := output.ReadDETable(name, path)
				if err != nil {
					return err
				}
				names[i] = name
				effects[i] = t.Effects
			}

			profile, err := enrich.NewProfile(names, effects)
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

			scores := engine.Score(profile, sets)
			logger.Info("gene sets scored",
				zap.Int("evaluated", len(scores)),
				zap.Int("dimensions", len(names)))

			if dbPath != "" {
				db, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if run == "" {
					run = strings.Join(names, "+")
				}
				if err := db.WriteEnrichmentResults(run, scores); err != nil {
					return err
				}
			}

			out, closeFn, err := createOutput(outPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return output.WriteEnrichmentTable(out, names, scores)
		},
	}

	cmd.Flags().StringVar(&gmtPath, "gmt", "", "gene set file in GMT format (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output enrichment table (default: stdout)")
	cmd.Flags().StringVar(&dbPath, "db", "", "also persist results to this DuckDB file")
	cmd.Flags().StringVar(&run, "run", "", "run label for the DuckDB table (default: joined contrast names)")
	cmd.MarkFlagRequired("gmt")

	return cmd
}

// tableName derives a contrast name from a DE table path.
func tableName(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".gz", ".tsv", ".txt"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if base == "" {
		return fmt.Sprintf("contrast_%s", path)
	}
	return base
}
