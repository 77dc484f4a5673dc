package app

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/export"
)

func init() { //nolint:gochecknoinits
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file, default stdout")
	exportCmd.Flags().StringVar(&exportPrefix, "prefix", "", "Only keys starting with this prefix")
	exportCmd.Flags().BoolVar(&exportIncludeSecrets, "include-secrets", false, "Emit secret values verbatim")

	rootCmd.AddCommand(exportCmd)
}

var (
	exportOut            string
	exportPrefix         string
	exportIncludeSecrets bool

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export settings as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout

			if exportOut != "" {
				f, err := os.Create(exportOut)
				if err != nil {
					return errors.Wrap(err, "creating output file")
				}
				defer f.Close() //nolint:errcheck

				w = f
			}

			return export.Export(cmd.Context(), db, w, export.ExportOptions{
				ApplicationID:  scopeApp,
				InstanceID:     scopeInst,
				KeyPrefix:      exportPrefix,
				IncludeSecrets: exportIncludeSecrets,
			})
		},
	}
)
