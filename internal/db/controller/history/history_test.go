package history

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.Setting{}, &models.SettingHistory{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func strPtr(s string) *string { return &s }

func mustUpsert(t *testing.T, db *gorm.DB, req setting.UpsertRequest) *models.Setting {
	t.Helper()

	row, err := setting.Upsert(context.Background(), db, req)
	require.NoError(t, err)

	return row
}

// writeVersions walks a key through values "1", "2", ... "n" and returns the
// final row.
func writeVersions(t *testing.T, db *gorm.DB, key string, values ...string) *models.Setting {
	t.Helper()

	var row *models.Setting

	for _, v := range values {
		req := setting.UpsertRequest{Key: key, Value: strPtr(v), ChangedBy: "alice"}
		if row != nil {
			req.ExpectedRowVersion = row.RowVersion
		}

		row = mustUpsert(t, db, req)
	}

	return row
}

func TestListByKeyNewestFirst(t *testing.T) {
	db := setupTestDB(t)

	writeVersions(t, db, "K", "1", "2", "3")

	entries, err := ListByKey(context.Background(), db, "K")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, models.OperationUpdate, entries[0].Operation)
	assert.Equal(t, "3", *entries[0].NewValue)
	assert.Equal(t, "2", *entries[1].NewValue)
	assert.Equal(t, models.OperationInsert, entries[2].Operation)
	assert.Equal(t, "1", *entries[2].NewValue)
}

func TestListBySettingID(t *testing.T) {
	db := setupTestDB(t)

	row := writeVersions(t, db, "K", "1", "2")
	writeVersions(t, db, "Other", "x")

	entries, err := List(context.Background(), db, row.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRollbackRestoresPreviousValue(t *testing.T) {
	db := setupTestDB(t)

	row := writeVersions(t, db, "K", "1", "2")

	// reverse the newest entry, the 1 -> 2 update
	restored, err := Rollback(context.Background(), db, "K", 0, "bob")
	require.NoError(t, err)
	require.NotNil(t, restored.Value)
	assert.Equal(t, "1", *restored.Value)
	assert.NotEqual(t, row.RowVersion, restored.RowVersion, "rollback must assign a fresh stamp")

	// the restore itself is a new ledger entry
	entries, err := ListByKey(context.Background(), db, "K")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.OperationRollback, entries[0].Operation)
	assert.Equal(t, "2", *entries[0].OldValue)
	assert.Equal(t, "1", *entries[0].NewValue)
}

func TestRollbackOfDeleteRecreatesRow(t *testing.T) {
	db := setupTestDB(t)

	row := writeVersions(t, db, "K", "1")
	require.NoError(t, setting.Delete(context.Background(), db, row.ID, "alice", row.RowVersion))

	restored, err := Rollback(context.Background(), db, "K", 0, "bob")
	require.NoError(t, err)
	require.NotNil(t, restored.Value)
	assert.Equal(t, "1", *restored.Value)

	// live again
	live, err := setting.GetByKey(context.Background(), db, "", "", "K")
	require.NoError(t, err)
	assert.Equal(t, "1", *live.Value)

	entries, err := ListByKey(context.Background(), db, "K")
	require.NoError(t, err)
	require.Len(t, entries, 3) // Insert, Delete, Rollback
	assert.Equal(t, models.OperationRollback, entries[0].Operation)
}

func TestRollbackConflictWhenRowDrifted(t *testing.T) {
	db := setupTestDB(t)

	writeVersions(t, db, "K", "1", "2", "3")

	// target the 1 -> 2 update; the live row is already at "3"
	_, err := Rollback(context.Background(), db, "K", 1, "bob")
	assert.ErrorIs(t, err, fault.ErrRollbackConflict)

	// nothing changed
	live, err := setting.GetByKey(context.Background(), db, "", "", "K")
	require.NoError(t, err)
	assert.Equal(t, "3", *live.Value)

	entries, err := ListByKey(context.Background(), db, "K")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRollbackConflictWhenRowRecreated(t *testing.T) {
	db := setupTestDB(t)

	row := writeVersions(t, db, "K", "1")
	require.NoError(t, setting.Delete(context.Background(), db, row.ID, "alice", row.RowVersion))

	// someone recreated the key after the delete
	writeVersions(t, db, "K", "fresh")

	// reversing the delete must now fail, the row exists again
	_, err := Rollback(context.Background(), db, "K", 1, "bob")
	assert.ErrorIs(t, err, fault.ErrRollbackConflict)
}

func TestRollbackIndexOutOfRange(t *testing.T) {
	db := setupTestDB(t)

	writeVersions(t, db, "K", "1")

	_, err := Rollback(context.Background(), db, "K", 5, "bob")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = Rollback(context.Background(), db, "K", -1, "bob")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = Rollback(context.Background(), db, "Unknown", 0, "bob")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestRollbackRequiresChangedBy(t *testing.T) {
	db := setupTestDB(t)

	_, err := Rollback(context.Background(), db, "K", 0, "")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestRollbackCorruptEntry(t *testing.T) {
	db := setupTestDB(t)

	row := writeVersions(t, db, "K", "1", "2")

	// forge an update entry whose before side carries both payload kinds
	secret := false
	bad := models.SettingHistory{
		SettingID:       row.ID,
		Key:             "K",
		Operation:       models.OperationUpdate,
		OldValue:        strPtr("x"),
		OldBinaryValue:  []byte{1},
		OldIsSecret:     &secret,
		NewValue:        strPtr("2"),
		RowVersionAfter: row.RowVersion,
		ChangedBy:       "forger",
	}
	require.NoError(t, db.Create(&bad).Error)

	_, err := Rollback(context.Background(), db, "K", 0, "bob")
	assert.ErrorIs(t, err, fault.ErrValidationFailure)
}

func TestRollbackChainStepsBack(t *testing.T) {
	db := setupTestDB(t)

	writeVersions(t, db, "K", "1", "2", "3")

	// each rollback reverses the newest entry, walking the value backwards
	r1, err := Rollback(context.Background(), db, "K", 0, "bob")
	require.NoError(t, err)
	assert.Equal(t, "2", *r1.Value)

	// index 0 is now the rollback entry itself, which restored 3 -> 2
	r2, err := Rollback(context.Background(), db, "K", 0, "bob")
	require.NoError(t, err)
	assert.Equal(t, "3", *r2.Value)
}
