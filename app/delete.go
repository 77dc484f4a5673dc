package app

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
)

func init() { //nolint:gochecknoinits
	deleteCmd.Flags().StringVar(&deleteExpect, "expect", "", "Expected row version (hex) of the key")
	deleteCmd.Flags().StringVar(&deleteChangedBy, "changed-by", "", "Author recorded in the history ledger")

	_ = deleteCmd.MarkFlagRequired("expect")

	rootCmd.AddCommand(deleteCmd)
}

var (
	deleteExpect    string
	deleteChangedBy string

	deleteCmd = &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a setting at an exact scope",
		Long: `Delete a setting at the scope given by --application and --instance.
--expect must carry the current row version; a stale value fails without
changing anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			row, err := setting.GetByKey(cmd.Context(), db, scopeApp, scopeInst, args[0])
			if err != nil {
				return err
			}

			stamp, err := rowversion.FromHex(deleteExpect)
			if err != nil {
				return errors.Wrap(err, "parsing --expect")
			}

			return setting.Delete(cmd.Context(), db, row.ID, changedByOrUser(deleteChangedBy), stamp)
		},
	}
)
