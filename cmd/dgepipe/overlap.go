package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/markziemann/maryam-rnaseq/internal/output"
	"github.com/markziemann/maryam-rnaseq/internal/overlap"
	"github.com/markziemann/maryam-rnaseq/internal/store"
)

func newOverlapCmd() *cobra.Command {
	var (
		padjCutoff float64
		outPath    string
		dbPath     string
		run        string
	)

	cmd := &cobra.Command{
		Use:   "overlap <de-table.tsv>...",
		Short: "Count up/down call overlaps across contrasts",
		Long: `Derives up and down gene sets from each DE table (adjusted p-value below
the cutoff, split by fold-change sign) and counts every exclusive
inclusion/exclusion combination across the resulting labels.`,
		Example: `  dgepipe overlap ctrl_vs_drugA.tsv ctrl_vs_drugB.tsv
  dgepipe overlap --padj 0.01 ctrl_vs_drugA.tsv ctrl_vs_drugB.tsv`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("padj") {
				padjCutoff = viper.GetFloat64("de.padj_cutoff")
			}

			var sets []overlap.LabeledSet
			for _, path := range args {
				name := tableName(path)
				t, err := output.ReadDETable(name, path)
				if err != nil {
					return err
				}
				up, down := t.UpDown(padjCutoff)
				sets = append(sets,
					overlap.LabeledSet{Label: name + "_up", Members: up},
					overlap.LabeledSet{Label: name + "_dn", Members: down},
				)
			}

			counts := overlap.Regions(sets)
			logger.Info("overlap regions computed",
				zap.Int("labels", len(sets)),
				zap.Int("regions", len(counts)))

			if dbPath != "" {
				db, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if run == "" {
					run = "overlap"
				}
				if err := db.WriteOverlapCounts(run, counts); err != nil {
					return err
				}
			}

			out, closeFn, err := createOutput(outPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return output.WriteOverlapCounts(out, counts)
		},
	}

	cmd.Flags().Float64Var(&padjCutoff, "padj", 0.05, "adjusted p-value cutoff for up/down calls")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output overlap table (default: stdout)")
	cmd.Flags().StringVar(&dbPath, "db", "", "also persist results to this DuckDB file")
	cmd.Flags().StringVar(&run, "run", "", "run label for the DuckDB table")

	return cmd
}
