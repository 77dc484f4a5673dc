package app

import (
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
)

func init() { //nolint:gochecknoinits
	getCmd.Flags().BoolVar(&getShowSecrets, "show-secrets", false, "Print secret values unmasked")

	rootCmd.AddCommand(getCmd)
}

var (
	getShowSecrets bool

	getCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Show a setting at an exact scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			row, err := setting.GetByKey(cmd.Context(), db, scopeApp, scopeInst, args[0])
			if err != nil {
				return err
			}

			return printJSON(viewOf(row, getShowSecrets))
		},
	}
)
