package cmd

import (
	"context"
	"errors"
	"fmt"

	"sql-cleanser/internal/engine"
	"sql-cleanser/internal/inference"
	"sql-cleanser/internal/report"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"go.uber.org/zap"
)

var (
	sourceDir  string
	targetDir  string
	compareOut string
	noOracle   bool
	dryRun     bool
	strict     bool
)

var errStrict = errors.New("strict mode: run finished with failures or anomalies")

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Diff two INSERT datasets and rewrite the differences",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"dialects.source": "from",
			"dialects.target": "to",
			"output.format":   "format",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadSettings()
		if err != nil {
			return err
		}
		if noOracle {
			cfg.Inference.Enabled = false
		}
		oracle := newOracle(cfg)

		ctx, stop := runContext()
		defer stop()

		fmt.Printf("🔍 Comparing %s (%s) with %s (%s)\n", sourceDir, cfg.Dialects.Source, targetDir, cfg.Dialects.Target)
		fs := afs.New()
		bar := newProgress("Comparing")
		run, err := engine.New(cfg, fs, oracle, Logger).Compare(ctx, sourceDir, targetDir, bar.options(dryRun))
		bar.stop()
		if err != nil {
			return err
		}

		// a cancelled run still publishes what it has
		publish := context.WithoutCancel(ctx)
		r := report.NewAssembler(oracle, inference.NewPolicy(cfg.Inference), Logger).Assemble(publish, run)
		written, writeErr := report.NewWriter(fs, cfg.Output.Format, Logger).Write(publish, compareOut, r)
		printSummary(run, written, compareOut)
		if writeErr != nil {
			return writeErr
		}
		if run.Incomplete {
			return fmt.Errorf("run %s interrupted; partial report written to %s", run.ID, compareOut)
		}
		if strict && (run.Err() != nil || len(r.Anomalies.Items) > 0) {
			Logger.Warn("strict mode failure", zap.String("run", run.ID), zap.Error(run.Err()), zap.Int("anomalies", len(r.Anomalies.Items)))
			return errStrict
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&sourceDir, "source", "", "Directory or URL of the source dataset")
	compareCmd.Flags().StringVar(&targetDir, "target", "", "Directory or URL of the target dataset")
	compareCmd.Flags().StringVar(&compareOut, "out", "report", "Directory or URL for the artifacts")
	compareCmd.Flags().String("from", "", "Source dialect (postgres, oracle, mysql, mssql)")
	compareCmd.Flags().String("to", "", "Target dialect (postgres, oracle, mysql, mssql)")
	compareCmd.Flags().String("format", "", "Structured output format (json or yaml)")
	compareCmd.Flags().BoolVar(&noOracle, "no-oracle", false, "Skip the inference service entirely")
	compareCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Diff and detect duplicates without rewriting")
	compareCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any table failed or any anomaly was recorded")
	_ = compareCmd.MarkFlagRequired("source")
	_ = compareCmd.MarkFlagRequired("target")
}
