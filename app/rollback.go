package app

import (
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/history"
)

func init() { //nolint:gochecknoinits
	rollbackCmd.Flags().IntVar(&rollbackIndex, "index", 0, "History entry to reverse, 0 is the most recent")
	rollbackCmd.Flags().StringVar(&rollbackChangedBy, "changed-by", "", "Author recorded in the history ledger")

	rootCmd.AddCommand(rollbackCmd)
}

var (
	rollbackIndex     int
	rollbackChangedBy string

	rollbackCmd = &cobra.Command{
		Use:   "rollback <key>",
		Short: "Reverse a historical change of a key",
		Long: `Reverse the history entry selected by --index, restoring the key's
state from before that change. The restore is appended to the ledger as a
new entry; history is never rewritten. Fails if the live row has drifted
away from the selected entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			row, err := history.Rollback(cmd.Context(), db, args[0], rollbackIndex, changedByOrUser(rollbackChangedBy))
			if err != nil {
				return err
			}

			return printJSON(viewOf(row, true))
		},
	}
)
