package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/virtual-factory/paperline/internal/embedjob"
)

var embedBatchSize int

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings for stored chunks",
	Long:  "Fetches chunks whose embedding is still NULL in batches, embeds them through the OpenAI API, and writes the vectors back until none remain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !gatePasses(cfg.Embed.Run, "RUN_EMBED_GEN", "embedding generator", cmd.OutOrStdout()) {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if embedBatchSize > 0 {
			cfg.Embed.BatchSize = embedBatchSize
		}

		if err := cfg.Validate("embed"); err != nil {
			return err
		}
		table, err := cfg.Store.TableFor(cfg.Embed.Source)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx, table); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		counter, err := embedjob.NewTiktokenCounter()
		if err != nil {
			return err
		}

		backfiller := embedjob.New(st, initOpenAI(), counter, table, embedjob.Config{
			Model:     cfg.OpenAI.EmbedModel,
			BatchSize: cfg.Embed.BatchSize,
			Pace:      time.Duration(cfg.Embed.PaceMs) * time.Millisecond,
		})

		stats, err := backfiller.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "embedding backfill")
		}

		zap.L().Info("embed finished",
			zap.Int("batches", stats.Batches),
			zap.Int64("chunks", stats.Chunks),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	embedCmd.Flags().IntVar(&embedBatchSize, "batch-size", 0, "chunks per embedding batch (default from config)")
	rootCmd.AddCommand(embedCmd)
}
