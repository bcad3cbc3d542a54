package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/virtual-factory/paperline/internal/model"
)

var (
	failuresRun   string
	failuresLimit int
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List URLs that permanently failed during ingestion",
	Long:  "Lists pages and documents that still failed after retries, with their error class, so they can be re-run by hand.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		failures, err := st.ListFailures(ctx, failuresRun, failuresLimit)
		if err != nil {
			return eris.Wrap(err, "list failures")
		}

		if len(failures) == 0 {
			fmt.Fprintln(os.Stderr, "No failures found.")
			return nil
		}

		formatFailures(os.Stdout, failures)
		return nil
	},
}

func init() {
	failuresCmd.Flags().StringVar(&failuresRun, "run", "", "only failures from this run ID")
	failuresCmd.Flags().IntVar(&failuresLimit, "limit", 100, "max number of failures to display")
	rootCmd.AddCommand(failuresCmd)
}

// formatFailures writes a tabular failure list to w.
func formatFailures(out io.Writer, failures []model.FetchFailure) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tSTAGE\tTYPE\tURL\tERROR")
	_, _ = fmt.Fprintln(w, "---\t-----\t----\t---\t-----")

	for _, f := range failures {
		msg := f.Error
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(f.RunID),
			f.Stage,
			f.ErrorType,
			f.URL,
			msg,
		)
	}
	_ = w.Flush()
}
