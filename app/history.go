package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/history"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
)

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(historyCmd)
}

// historyView is the CLI JSON shape of one ledger entry. The index is the
// version selector accepted by the rollback command, 0 being most recent.
type historyView struct {
	Index            int       `json:"index"`
	ID               uint64    `json:"id"`
	SettingID        uint64    `json:"settingId"`
	ApplicationID    string    `json:"applicationId,omitempty"`
	InstanceID       string    `json:"instanceId,omitempty"`
	Key              string    `json:"key"`
	Operation        string    `json:"operation"`
	OldValue         *string   `json:"oldValue,omitempty"`
	NewValue         *string   `json:"newValue,omitempty"`
	OldBinaryValue   []byte    `json:"oldBinaryValue,omitempty"`
	NewBinaryValue   []byte    `json:"newBinaryValue,omitempty"`
	RowVersionBefore string    `json:"rowVersionBefore,omitempty"`
	RowVersionAfter  string    `json:"rowVersionAfter,omitempty"`
	ChangedBy        string    `json:"changedBy"`
	ChangedAt        time.Time `json:"changedAt"`
}

func historyViewOf(index int, e *models.SettingHistory) historyView {
	return historyView{
		Index:            index,
		ID:               e.ID,
		SettingID:        e.SettingID,
		ApplicationID:    e.ApplicationID,
		InstanceID:       e.InstanceID,
		Key:              e.Key,
		Operation:        string(e.Operation),
		OldValue:         e.OldValue,
		NewValue:         e.NewValue,
		OldBinaryValue:   e.OldBinaryValue,
		NewBinaryValue:   e.NewBinaryValue,
		RowVersionBefore: rowversion.ToHex(e.RowVersionBefore),
		RowVersionAfter:  rowversion.ToHex(e.RowVersionAfter),
		ChangedBy:        e.ChangedBy,
		ChangedAt:        e.ChangedAt,
	}
}

var historyCmd = &cobra.Command{
	Use:   "history <key>",
	Short: "Show the change ledger of a key, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}

		entries, err := history.ListByKey(cmd.Context(), db, args[0])
		if err != nil {
			return err
		}

		views := make([]historyView, 0, len(entries))
		for i := range entries {
			views = append(views, historyViewOf(i, &entries[i]))
		}

		return printJSON(views)
	},
}
