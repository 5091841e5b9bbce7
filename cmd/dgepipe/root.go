package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "dgepipe",
		Short: "Differential expression and pathway enrichment from count matrices",
		Long: `dgepipe turns a gene-by-sample count matrix into per-gene differential
expression calls and per-pathway enrichment scores across one or more
contrasts. Upstream quantification and downstream report rendering are
external; dgepipe consumes finalized counts and emits numeric tables.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			return initLogger(verbose)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.dgepipe.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newAggregateCmd())
	cmd.AddCommand(newDECmd())
	cmd.AddCommand(newEnrichCmd())
	cmd.AddCommand(newOverlapCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig(cfgFile string) error {
	viper.SetDefault("filter.min_mean_count", 10.0)
	viper.SetDefault("de.padj_cutoff", 0.05)
	viper.SetDefault("enrich.min_set_size", 5)
	viper.SetDefault("enrich.null", "chisq")
	viper.SetDefault("enrich.permutations", 1000)
	viper.SetDefault("enrich.seed", 42)
	viper.SetDefault("workers", 0)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil // no home, defaults only
		}
		viper.SetConfigFile(filepath.Join(home, ".dgepipe.yaml"))
	}

	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// A missing default config is fine; an unreadable explicit one is not.
		if cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func initLogger(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger = l
	return nil
}

// createOutput opens the output file, or stdout for "" and "-".
func createOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
