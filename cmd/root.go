package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sql-cleanser/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
	Logger  = zap.NewNop()
)

var RootCmd = &cobra.Command{
	Use:   "sql-cleanser",
	Short: "Compare and migrate SQL INSERT datasets across dialects",
	Long: `
  ____   ___  _        ____ _     _____    _    _   _ ____  _____ ____
 / ___| / _ \| |      / ___| |   | ____|  / \  | \ | / ___|| ____|  _ \
 \___ \| | | | |     | |   | |   |  _|   / _ \ |  \| \___ \|  _| | |_) |
  ___) | |_| | |___  | |___| |___| |___ / ___ \| |\  |___) | |___|  _ <
 |____/ \__\_\_____|  \____|_____|_____/_/   \_\_| \_|____/|_____|_| \_\

SQL CLEANSER - Dataset Diff & Dialect Migration
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			Logger, err = zap.NewDevelopment()
		} else {
			Logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = Logger.Sync()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sql-cleanser.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Human readable debug logging")

	for key, value := range config.Default().Values() {
		viper.SetDefault(key, value)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("sql-cleanser")
		viper.SetConfigType("yaml")
	}

	// SQL_CLEANSER_INFERENCE_API_KEY -> inference.api_key
	viper.SetEnvPrefix("sql_cleanser")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
