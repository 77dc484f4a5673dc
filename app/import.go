package app

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/export"
)

func init() { //nolint:gochecknoinits
	importCmd.Flags().StringVar(&importIn, "in", "", "Input file, default stdin")
	importCmd.Flags().BoolVar(&importApply, "apply", false, "Apply the changes, default is a dry run")
	importCmd.Flags().BoolVar(&importInsertOnly, "insert-only", false, "Skip keys that already exist")
	importCmd.Flags().BoolVar(&importAssumeSecret, "assume-secret", false, "Mark every imported entry as secret")
	importCmd.Flags().StringVar(&importChangedBy, "changed-by", "", "Author recorded in the history ledger")

	rootCmd.AddCommand(importCmd)
}

var (
	importIn           string
	importApply        bool
	importInsertOnly   bool
	importAssumeSecret bool
	importChangedBy    string

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import settings from a JSON document",
		Long: `Import settings from a JSON export. By default this is a dry run that
only reports what would change; pass --apply to perform the mutations.
Every applied entry goes through the regular mutation path and lands in
the history ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			var r io.Reader = os.Stdin

			if importIn != "" {
				f, err := os.Open(importIn)
				if err != nil {
					return errors.Wrap(err, "opening input file")
				}
				defer f.Close() //nolint:errcheck

				r = f
			}

			res, err := export.Import(cmd.Context(), db, r, export.ImportOptions{
				ChangedBy:    changedByOrUser(importChangedBy),
				Apply:        importApply,
				InsertOnly:   importInsertOnly,
				AssumeSecret: importAssumeSecret,
			})
			if err != nil {
				return err
			}

			return printJSON(res)
		},
	}
)
