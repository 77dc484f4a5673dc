package setting

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KhaosKoder/khaos-settings/internal/db/models"
)

// errStale signals that a guarded write found the row version changed
// between read and write. Callers map it to a concurrency conflict.
var errStale = errors.New("row version changed during write")

// strategy abstracts how concurrent writers to the same row are serialized
// inside a transaction. Engines with row lock hints take a pessimistic lock
// on read; the fallback re-checks the version stamp on every write.
type strategy interface {
	// findByScopeKey loads the row for a scope+key, or nil when absent.
	findByScopeKey(tx *gorm.DB, appID, instID, key string) (*models.Setting, error)
	// findByID loads the row by id, or nil when absent.
	findByID(tx *gorm.DB, id uint64) (*models.Setting, error)
	// update persists row, which must already carry its new field values and
	// a fresh RowVersion. prev is the stamp observed at read time.
	update(tx *gorm.DB, row *models.Setting, prev []byte) error
	// remove deletes row. prev is the stamp observed at read time.
	remove(tx *gorm.DB, row *models.Setting, prev []byte) error
}

// strategyFor picks the concurrency strategy for the connected engine.
func strategyFor(db *gorm.DB) strategy {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return lockingStrategy{}
	default:
		return casStrategy{}
	}
}

// lockingStrategy serializes writers with SELECT ... FOR UPDATE. Once the
// lock is held the stamp cannot change underneath us, so writes are plain.
type lockingStrategy struct{}

func (lockingStrategy) findByScopeKey(tx *gorm.DB, appID, instID, key string) (*models.Setting, error) {
	return firstOrNil(tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(map[string]any{"application_id": appID, "instance_id": instID, "key": key}))
}

func (lockingStrategy) findByID(tx *gorm.DB, id uint64) (*models.Setting, error) {
	return firstOrNil(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (lockingStrategy) update(tx *gorm.DB, row *models.Setting, _ []byte) error {
	return tx.Save(row).Error //nolint:wrapcheck
}

func (lockingStrategy) remove(tx *gorm.DB, row *models.Setting, _ []byte) error {
	return tx.Delete(row).Error //nolint:wrapcheck
}

// casStrategy works on engines without lock hints (sqlite): reads are plain
// and every write re-asserts the version stamp observed at read time.
type casStrategy struct{}

func (casStrategy) findByScopeKey(tx *gorm.DB, appID, instID, key string) (*models.Setting, error) {
	return firstOrNil(tx.Where(map[string]any{"application_id": appID, "instance_id": instID, "key": key}))
}

func (casStrategy) findByID(tx *gorm.DB, id uint64) (*models.Setting, error) {
	return firstOrNil(tx.Where("id = ?", id))
}

func (casStrategy) update(tx *gorm.DB, row *models.Setting, prev []byte) error {
	res := tx.Model(&models.Setting{}).
		Where("id = ? AND row_version = ?", row.ID, prev).
		Updates(settingColumns(row))
	if res.Error != nil {
		return res.Error //nolint:wrapcheck
	}

	if res.RowsAffected == 0 {
		return errStale
	}

	return nil
}

func (casStrategy) remove(tx *gorm.DB, row *models.Setting, prev []byte) error {
	res := tx.Where("row_version = ?", prev).Delete(&models.Setting{}, row.ID)
	if res.Error != nil {
		return res.Error //nolint:wrapcheck
	}

	if res.RowsAffected == 0 {
		return errStale
	}

	return nil
}

func firstOrNil(tx *gorm.DB) (*models.Setting, error) {
	var row models.Setting

	err := tx.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &row, nil
}

// settingColumns lists every mutable column for a guarded update; a map is
// used so nil payload fields are written as NULL.
func settingColumns(row *models.Setting) map[string]any {
	return map[string]any{
		"value":           row.Value,
		"binary_value":    row.BinaryValue,
		"is_secret":       row.IsSecret,
		"value_encrypted": row.ValueEncrypted,
		"modified_by":     row.ModifiedBy,
		"modified_at":     row.ModifiedAt,
		"comment":         row.Comment,
		"notes":           row.Notes,
		"row_version":     row.RowVersion,
	}
}
