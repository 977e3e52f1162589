package cmd

import (
	"context"
	"fmt"

	"sql-cleanser/internal/engine"
	"sql-cleanser/internal/inference"
	"sql-cleanser/internal/report"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

var (
	inputDir     string
	transformOut string
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Rewrite a whole dataset into another dialect, one script per table",
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

		fmt.Printf("🔁 Transforming %s from %s to %s\n", inputDir, cfg.Dialects.Source, cfg.Dialects.Target)
		fs := afs.New()
		bar := newProgress("Transforming")
		run, err := engine.New(cfg, fs, oracle, Logger).Transform(ctx, inputDir, bar.options(false))
		bar.stop()
		if err != nil {
			return err
		}

		publish := context.WithoutCancel(ctx)
		r := report.NewAssembler(oracle, inference.NewPolicy(cfg.Inference), Logger).Assemble(publish, run)
		written, err := report.NewWriter(fs, cfg.Output.Format, Logger).Write(publish, transformOut, r)
		printSummary(run, written, transformOut)
		if err != nil {
			return err
		}
		if run.Incomplete {
			return fmt.Errorf("run %s interrupted; partial scripts written to %s", run.ID, transformOut)
		}
		return run.Err()
	},
}

func init() {
	RootCmd.AddCommand(transformCmd)

	transformCmd.Flags().StringVar(&inputDir, "input", "", "Directory or URL of the dataset")
	transformCmd.Flags().StringVar(&transformOut, "out", "migrated", "Directory or URL for the scripts")
	transformCmd.Flags().String("from", "", "Source dialect (postgres, oracle, mysql, mssql)")
	transformCmd.Flags().String("to", "", "Target dialect (postgres, oracle, mysql, mssql)")
	transformCmd.Flags().String("format", "", "Structured output format (json or yaml)")
	transformCmd.Flags().BoolVar(&noOracle, "no-oracle", false, "Skip the inference service entirely")
	_ = transformCmd.MarkFlagRequired("input")
}
