package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wohnwert",
	Short: "Evaluation engine for Vienna apartment listings",
	Long:  "Scores real-estate listings against buyer profiles, computes affordability, deduplicates against the store, and delivers the top candidates per channel.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
