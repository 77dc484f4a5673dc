package app

import (
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
)

func init() { //nolint:gochecknoinits
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "Only keys starting with this prefix")
	listCmd.Flags().BoolVar(&listSecretsOnly, "secrets-only", false, "Only secret settings")
	listCmd.Flags().BoolVar(&listShowSecrets, "show-secrets", false, "Print secret values unmasked")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip this many rows")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Return at most this many rows, 0 means all")

	rootCmd.AddCommand(listCmd)
}

var (
	listPrefix      string
	listSecretsOnly bool
	listShowSecrets bool
	listOffset      int
	listLimit       int

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List settings, optionally filtered by scope and key prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			q := setting.Query{
				ApplicationID: scopeApp,
				InstanceID:    scopeInst,
				KeyPrefix:     listPrefix,
				Offset:        listOffset,
				Limit:         listLimit,
			}

			if listSecretsOnly {
				secretsOnly := true
				q.IsSecret = &secretsOnly
			}

			rows, err := setting.List(cmd.Context(), db, q)
			if err != nil {
				return err
			}

			views := make([]settingView, 0, len(rows))
			for i := range rows {
				views = append(views, viewOf(&rows[i], listShowSecrets))
			}

			return printJSON(views)
		},
	}
)
