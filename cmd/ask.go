package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from stored papers",
	Long:  "Embeds the question, retrieves the nearest paper chunks, and asks the completion provider with the retrieved context.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ask"); err != nil {
			return err
		}
		table, err := cfg.Store.TableFor(cfg.Ask.Source)
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

		answerer := initAnswerer(st, table)
		ans, err := answerer.Answer(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "answer question")
		}

		zap.L().Info("question answered",
			zap.String("model", ans.Model),
			zap.Int("documents", ans.Documents),
		)

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ans)
		}

		_, err = os.Stdout.WriteString(ans.Text + "\n")
		return err
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer record as JSON")
	rootCmd.AddCommand(askCmd)
}
