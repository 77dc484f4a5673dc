// Package setting implements the concurrency-safe mutation engine for
// settings rows: optimistic create/update/delete with a paired history
// entry written in the same transaction as every mutation.
package setting

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
)

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")

	validate = validator.New() //nolint:gochecknoglobals
)

// maxAttempts bounds the retry of a full mutation on transient store
// contention. Domain failures are never retried.
const maxAttempts = 2

// UpsertRequest describes a create-or-update of one setting row. Exactly
// one of Value and BinaryValue must be set.
type UpsertRequest struct {
	ApplicationID string `validate:"max=200"`
	InstanceID    string `validate:"max=200"`
	Key           string `validate:"required,max=255"`
	Value         *string
	BinaryValue   []byte
	IsSecret      bool
	// EncryptValue marks the stored value as encrypted. Encryption itself
	// happens at the edge, before the request is built.
	EncryptValue bool
	ChangedBy    string `validate:"required,max=50"`
	// ExpectedRowVersion must carry the current stamp when updating an
	// existing row, and must be nil when creating a new one.
	ExpectedRowVersion []byte
	Comment            string `validate:"max=4000"`
	Notes              string
}

// Upsert creates or updates the setting row for the request's scope+key.
//
// An existing row requires ExpectedRowVersion to match its current stamp; a
// missing row requires ExpectedRowVersion to be absent. The matching history
// entry (Insert or Update) is written in the same transaction, so the ledger
// never diverges from the live table.
func Upsert(ctx context.Context, db *gorm.DB, req UpsertRequest) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if err := validate.Struct(req); err != nil {
		return nil, fault.ValidationFailure(req.Key, err.Error())
	}

	if (req.Value == nil) == (req.BinaryValue == nil) {
		return nil, fault.ValidationFailure(req.Key, "exactly one of Value and BinaryValue must be provided")
	}

	var (
		row *models.Setting
		err error
	)

	for attempt := 1; ; attempt++ {
		row, err = upsertOnce(ctx, db, req)
		if err == nil || attempt >= maxAttempts || !retryable(err) {
			break
		}

		log.Warn().Err(err).Str("key", req.Key).Msg("retrying setting mutation after transient store error")
	}

	if err != nil {
		return nil, err
	}

	return row, nil
}

func upsertOnce(ctx context.Context, db *gorm.DB, req UpsertRequest) (*models.Setting, error) {
	var (
		strat = strategyFor(db)
		saved *models.Setting
	)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := strat.findByScopeKey(tx, req.ApplicationID, req.InstanceID, req.Key)
		if err != nil {
			return err
		}

		if existing != nil {
			saved, err = applyUpdate(tx, strat, existing, req)

			return err
		}

		saved, err = applyInsert(tx, req)

		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

func applyUpdate(tx *gorm.DB, strat strategy, row *models.Setting, req UpsertRequest) (*models.Setting, error) {
	if req.ExpectedRowVersion == nil {
		return nil, fault.MissingRowVersion(row.Key, row.ApplicationID, row.InstanceID)
	}

	if !bytes.Equal(row.RowVersion, req.ExpectedRowVersion) {
		conflictCounter.Inc()

		return nil, fault.ConcurrencyConflict(
			row.Key, row.ApplicationID, row.InstanceID, req.ExpectedRowVersion, row.RowVersion)
	}

	var (
		now  = time.Now().UTC()
		prev = row.RowVersion

		oldValue     = row.Value
		oldBinary    = row.BinaryValue
		oldSecret    = row.IsSecret
		oldEncrypted = row.ValueEncrypted
	)

	row.Value = req.Value
	row.BinaryValue = req.BinaryValue
	row.IsSecret = req.IsSecret
	row.ValueEncrypted = req.EncryptValue
	row.ModifiedBy = req.ChangedBy
	row.ModifiedAt = now
	row.Comment = req.Comment
	row.Notes = req.Notes
	row.RowVersion = rowversion.Next()

	if err := strat.update(tx, row, prev); err != nil {
		if errors.Is(err, errStale) {
			conflictCounter.Inc()

			return nil, fault.ConcurrencyConflict(
				row.Key, row.ApplicationID, row.InstanceID, prev, currentStamp(tx, row.ID))
		}

		return nil, err
	}

	entry := models.SettingHistory{
		SettingID:         row.ID,
		ApplicationID:     row.ApplicationID,
		InstanceID:        row.InstanceID,
		Key:               row.Key,
		OldValue:          oldValue,
		OldBinaryValue:    oldBinary,
		OldIsSecret:       &oldSecret,
		OldValueEncrypted: &oldEncrypted,
		NewValue:          row.Value,
		NewBinaryValue:    row.BinaryValue,
		NewIsSecret:       &row.IsSecret,
		NewValueEncrypted: &row.ValueEncrypted,
		RowVersionBefore:  prev,
		RowVersionAfter:   row.RowVersion,
		ChangedBy:         req.ChangedBy,
		ChangedAt:         now,
		Operation:         models.OperationUpdate,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, err //nolint:wrapcheck
	}

	return row, nil
}

func applyInsert(tx *gorm.DB, req UpsertRequest) (*models.Setting, error) {
	// A stamp asserted against a nonexistent row means the caller believed
	// they were updating; reject rather than silently create.
	if req.ExpectedRowVersion != nil {
		return nil, fault.MissingRowVersion(req.Key, req.ApplicationID, req.InstanceID)
	}

	now := time.Now().UTC()
	row := &models.Setting{
		ApplicationID:  req.ApplicationID,
		InstanceID:     req.InstanceID,
		Key:            req.Key,
		Value:          req.Value,
		BinaryValue:    req.BinaryValue,
		IsSecret:       req.IsSecret,
		ValueEncrypted: req.EncryptValue,
		CreatedBy:      req.ChangedBy,
		CreatedAt:      now,
		ModifiedBy:     req.ChangedBy,
		ModifiedAt:     now,
		Comment:        req.Comment,
		Notes:          req.Notes,
		RowVersion:     rowversion.Next(),
	}

	if err := tx.Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fault.DuplicateKey(req.Key, req.ApplicationID, req.InstanceID)
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
		ChangedBy:         req.ChangedBy,
		ChangedAt:         now,
		Operation:         models.OperationInsert,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, err //nolint:wrapcheck
	}

	return row, nil
}

// Delete removes a setting row after checking its version stamp, and writes
// the matching Delete history entry in the same transaction.
func Delete(ctx context.Context, db *gorm.DB, id uint64, changedBy string, expectedRowVersion []byte) error {
	if db == nil {
		return ErrDBNil
	}

	if changedBy == "" {
		return fault.InvalidArgument("changedBy must not be empty")
	}

	strat := strategyFor(db)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := strat.findByID(tx, id)
		if err != nil {
			return err
		}

		if row == nil {
			return fault.NotFound(strconv.FormatUint(id, 10), "", "")
		}

		if !bytes.Equal(row.RowVersion, expectedRowVersion) {
			conflictCounter.Inc()

			return fault.ConcurrencyConflict(
				row.Key, row.ApplicationID, row.InstanceID, expectedRowVersion, row.RowVersion)
		}

		prev := row.RowVersion

		if err := strat.remove(tx, row, prev); err != nil {
			if errors.Is(err, errStale) {
				conflictCounter.Inc()

				return fault.ConcurrencyConflict(
					row.Key, row.ApplicationID, row.InstanceID, expectedRowVersion, currentStamp(tx, row.ID))
			}

			return err
		}

		secret, encrypted := row.IsSecret, row.ValueEncrypted
		entry := models.SettingHistory{
			SettingID:         row.ID,
			ApplicationID:     row.ApplicationID,
			InstanceID:        row.InstanceID,
			Key:               row.Key,
			OldValue:          row.Value,
			OldBinaryValue:    row.BinaryValue,
			OldIsSecret:       &secret,
			OldValueEncrypted: &encrypted,
			RowVersionBefore:  prev,
			ChangedBy:         changedBy,
			ChangedAt:         time.Now().UTC(),
			Operation:         models.OperationDelete,
		}

		return tx.Create(&entry).Error //nolint:wrapcheck
	})
}

// currentStamp re-reads the stamp of a row for conflict diagnostics; nil
// when the row is gone.
func currentStamp(tx *gorm.DB, id uint64) []byte {
	var row models.Setting
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil
	}

	return row.RowVersion
}

// retryable reports whether err looks like transient store contention.
// Domain failures are never retried.
func retryable(err error) bool {
	var domainErr *fault.Error
	if errors.As(err, &domainErr) {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "database is locked")
}
