package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "realty-ai",
	Short: "LLM-backed property valuation and lead scoring",
	Long:  "Values properties and scores buyer leads through a tenant-configured LLM provider (OpenAI, Anthropic, Google or any OpenAI-compatible endpoint), with results cached and recorded per tenant.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}

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
