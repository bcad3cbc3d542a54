package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Creates the vector extension, the run and failure logs, and a chunk table for every configured paper source.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		var tables []string
		if cfg.Store.ArxivTable != "" {
			tables = append(tables, cfg.Store.ArxivTable)
		}
		if cfg.Store.ScholarTable != "" {
			tables = append(tables, cfg.Store.ScholarTable)
		}
		if len(tables) == 0 {
			return eris.New("no paper tables configured (set ARXIV_TABLE and/or GSCHOLAR_TABLE)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx, tables...); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Schema applied for %d paper table(s).\n", len(tables))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
