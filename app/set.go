package app

import (
	"encoding/base64"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
)

func init() { //nolint:gochecknoinits
	setCmd.Flags().StringVar(&setValue, "value", "", "Text value to store")
	setCmd.Flags().StringVar(&setBinaryFile, "binary-file", "", "File whose bytes to store as binary value")
	setCmd.Flags().StringVar(&setBinaryB64, "binary-b64", "", "Base64 bytes to store as binary value")
	setCmd.Flags().BoolVar(&setSecret, "secret", false, "Mark the value as secret")
	setCmd.Flags().BoolVar(&setEncrypted, "encrypted", false, "Mark the stored value as encrypted")
	setCmd.Flags().StringVar(&setExpect, "expect", "", "Expected row version (hex) when updating an existing key")
	setCmd.Flags().StringVar(&setChangedBy, "changed-by", "", "Author recorded in the history ledger")
	setCmd.Flags().StringVar(&setComment, "comment", "", "Comment recorded on the row")
	setCmd.Flags().StringVar(&setNotes, "notes", "", "Notes recorded on the row")

	rootCmd.AddCommand(setCmd)
}

var (
	setValue      string
	setBinaryFile string
	setBinaryB64  string
	setSecret     bool
	setEncrypted  bool
	setExpect     string
	setChangedBy  string
	setComment    string
	setNotes      string

	setCmd = &cobra.Command{
		Use:   "set <key>",
		Short: "Create or update a setting",
		Long: `Create or update a setting at the scope given by --application and
--instance. Updating an existing key requires --expect with its current
row version; creating a new key requires no --expect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}

			req := setting.UpsertRequest{
				ApplicationID: scopeApp,
				InstanceID:    scopeInst,
				Key:           args[0],
				IsSecret:      setSecret,
				EncryptValue:  setEncrypted,
				ChangedBy:     changedByOrUser(setChangedBy),
				Comment:       setComment,
				Notes:         setNotes,
			}

			switch {
			case cmd.Flags().Changed("value"):
				req.Value = &setValue
			case setBinaryFile != "":
				data, err := os.ReadFile(setBinaryFile)
				if err != nil {
					return errors.Wrap(err, "reading binary file")
				}

				req.BinaryValue = data
			case setBinaryB64 != "":
				data, err := base64.StdEncoding.DecodeString(setBinaryB64)
				if err != nil {
					return errors.Wrap(err, "decoding --binary-b64")
				}

				req.BinaryValue = data
			}

			if setExpect != "" {
				stamp, err := rowversion.FromHex(setExpect)
				if err != nil {
					return errors.Wrap(err, "parsing --expect")
				}

				req.ExpectedRowVersion = stamp
			}

			row, err := setting.Upsert(cmd.Context(), db, req)
			if err != nil {
				return err
			}

			return printJSON(viewOf(row, true))
		},
	}
)
