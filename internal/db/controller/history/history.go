// Package history implements the append-only change ledger: listing the
// entries of a setting and reversing a specific historical change. A
// rollback is itself recorded as a new forward entry; the ledger is never
// rewritten.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
)

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// List returns all history entries for a setting id, newest first. The
// ledger is append-only, so reading it needs no serialization against
// writers.
func List(ctx context.Context, db *gorm.DB, settingID uint64) ([]models.SettingHistory, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entries []models.SettingHistory

	err := db.WithContext(ctx).
		Where("setting_id = ?", settingID).
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return entries, nil
}

// ListByKey returns all history entries recorded under a key, newest first.
// History is addressed by key rather than setting id because the id may have
// been recycled by a delete and a later insert.
func ListByKey(ctx context.Context, db *gorm.DB, key string) ([]models.SettingHistory, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entries []models.SettingHistory

	err := db.WithContext(ctx).
		Where(map[string]any{"key": key}).
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return entries, nil
}

// Rollback reverses the history entry at versionIndex for key, where index 0
// is the most recent entry. The restored state is appended to the ledger as
// a new Rollback entry. If the live row drifted away from the targeted entry
// the call fails with a RollbackConflict and nothing is changed.
func Rollback(ctx context.Context, db *gorm.DB, key string, versionIndex int, changedBy string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if changedBy == "" {
		return nil, fault.InvalidArgument("changedBy must not be empty")
	}

	var restored *models.Setting

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []models.SettingHistory

		if err := tx.Where(map[string]any{"key": key}).Order("id DESC").Find(&entries).Error; err != nil {
			return err //nolint:wrapcheck
		}

		if versionIndex < 0 || versionIndex >= len(entries) {
			return fault.InvalidArgument(fmt.Sprintf(
				"version index %d out of range, key %q has %d history entries", versionIndex, key, len(entries)))
		}

		target := entries[versionIndex]

		current, err := findLive(tx, &target)
		if err != nil {
			return err
		}

		switch target.Operation {
		case models.OperationInsert, models.OperationUpdate, models.OperationRollback:
			restored, err = restoreRow(tx, &target, current, changedBy)

			return err
		case models.OperationDelete:
			restored, err = recreateRow(tx, &target, current, changedBy)

			return err
		default:
			// An unrecognized tag means the ledger itself is corrupt. This
			// is not a user-recoverable condition.
			log.Panic().
				Str("key", key).
				Str("operation", string(target.Operation)).
				Msg("unknown history operation tag")

			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return restored, nil
}

// restoreRow handles targets describing a row that should currently exist:
// the live row is reset to the entry's before-image.
func restoreRow(tx *gorm.DB, target *models.SettingHistory, current *models.Setting, changedBy string) (*models.Setting, error) {
	if current == nil {
		return nil, fault.RollbackConflict(
			target.Key, target.ApplicationID, target.InstanceID, target.RowVersionAfter, nil)
	}

	if len(target.RowVersionAfter) > 0 && !bytes.Equal(current.RowVersion, target.RowVersionAfter) {
		return nil, fault.RollbackConflict(
			target.Key, target.ApplicationID, target.InstanceID, target.RowVersionAfter, current.RowVersion)
	}

	if !target.OldPayloadValid() {
		return nil, fault.ValidationFailure(target.Key,
			"history entry is corrupt: before side violates the value-xor-binary rule")
	}

	var (
		now  = time.Now().UTC()
		prev = current.RowVersion
	)

	current.Value = target.OldValue
	current.BinaryValue = target.OldBinaryValue

	if target.OldIsSecret != nil {
		current.IsSecret = *target.OldIsSecret
	}

	if target.OldValueEncrypted != nil {
		current.ValueEncrypted = *target.OldValueEncrypted
	}

	current.ModifiedBy = changedBy
	current.ModifiedAt = now
	current.RowVersion = rowversion.Next()

	res := tx.Model(&models.Setting{}).
		Where("id = ? AND row_version = ?", current.ID, prev).
		Updates(map[string]any{
			"value":           current.Value,
			"binary_value":    current.BinaryValue,
			"is_secret":       current.IsSecret,
			"value_encrypted": current.ValueEncrypted,
			"modified_by":     current.ModifiedBy,
			"modified_at":     current.ModifiedAt,
			"row_version":     current.RowVersion,
		})
	if res.Error != nil {
		return nil, res.Error //nolint:wrapcheck
	}

	if res.RowsAffected == 0 {
		return nil, fault.RollbackConflict(
			target.Key, target.ApplicationID, target.InstanceID, prev, nil)
	}

	entry := models.SettingHistory{
		SettingID:         current.ID,
		ApplicationID:     current.ApplicationID,
		InstanceID:        current.InstanceID,
		Key:               current.Key,
		OldValue:          target.NewValue,
		OldBinaryValue:    target.NewBinaryValue,
		OldIsSecret:       target.NewIsSecret,
		OldValueEncrypted: target.NewValueEncrypted,
		NewValue:          current.Value,
		NewBinaryValue:    current.BinaryValue,
		NewIsSecret:       &current.IsSecret,
		NewValueEncrypted: &current.ValueEncrypted,
		RowVersionBefore:  prev,
		RowVersionAfter:   current.RowVersion,
		ChangedBy:         changedBy,
		ChangedAt:         now,
		Operation:         models.OperationRollback,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, err //nolint:wrapcheck
	}

	return current, nil
}

// recreateRow handles Delete targets: the row should currently be absent and
// is re-inserted from the entry's before-image.
func recreateRow(tx *gorm.DB, target *models.SettingHistory, current *models.Setting, changedBy string) (*models.Setting, error) {
	if current != nil {
		return nil, fault.RollbackConflict(
			target.Key, target.ApplicationID, target.InstanceID, nil, current.RowVersion)
	}

	if !target.OldPayloadValid() {
		return nil, fault.ValidationFailure(target.Key,
			"history entry is corrupt: before side violates the value-xor-binary rule")
	}

	now := time.Now().UTC()
	row := &models.Setting{
		ApplicationID:  target.ApplicationID,
		InstanceID:     target.InstanceID,
		Key:            target.Key,
		Value:          target.OldValue,
		BinaryValue:    target.OldBinaryValue,
		IsSecret:       boolValue(target.OldIsSecret),
		ValueEncrypted: boolValue(target.OldValueEncrypted),
		CreatedBy:      changedBy,
		CreatedAt:      now,
		ModifiedBy:     changedBy,
		ModifiedAt:     now,
		RowVersion:     rowversion.Next(),
	}

	if err := tx.Create(row).Error; err != nil {
		// A unique violation means another writer re-created the key after
		// our absence check.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fault.RollbackConflict(
				target.Key, target.ApplicationID, target.InstanceID, nil, nil)
		}

		return nil, err //nolint:wrapcheck
	}

	entry := models.SettingHistory{
		SettingID:         row.ID,
		ApplicationID:     row.ApplicationID,
		InstanceID:        row.InstanceID,
		Key:               row.Key,
		NewValue:          row.Value,
		NewBinaryValue:    row.BinaryValue,
		NewIsSecret:       &row.IsSecret,
		NewValueEncrypted: &row.ValueEncrypted,
		RowVersionAfter:   row.RowVersion,
		ChangedBy:         changedBy,
		ChangedAt:         now,
		Operation:         models.OperationRollback,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, err //nolint:wrapcheck
	}

	return row, nil
}

// findLive loads the live row for the target's captured scope+key, locking
// it on engines that support lock hints. Returns nil when absent.
func findLive(tx *gorm.DB, target *models.SettingHistory) (*models.Setting, error) {
	q := tx
	if lockingSupported(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row models.Setting

	err := q.Where(map[string]any{
		"application_id": target.ApplicationID,
		"instance_id":    target.InstanceID,
		"key":            target.Key,
	}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &row, nil
}

func lockingSupported(tx *gorm.DB) bool {
	name := tx.Dialector.Name()

	return name == "mysql" || name == "postgres"
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
