package cmd

import (
	"fmt"

	"sql-cleanser/internal/config"
	"sql-cleanser/internal/inference"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// bindFlags points config keys at the flags of the running command. Several
// commands share keys, so binding happens per run instead of in init.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// LoadSettings returns the validated configuration (Flag > Env > Config > Default).
func LoadSettings() (config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newOracle returns nil when inference is disabled.
func newOracle(cfg config.Config) inference.Oracle {
	if !cfg.Inference.Enabled {
		return nil
	}
	return inference.NewChatOracle(cfg.Inference, Logger)
}
