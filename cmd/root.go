package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/virtual-factory/paperline/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "paperline",
	Short: "Research paper ingestion and retrieval-backed QA",
	Long:  "Scrapes research-paper listings, extracts and chunks document text into Postgres, backfills embeddings, and answers battery questions from retrieved context.",
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
