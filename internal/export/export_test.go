package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
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

func exportDoc(t *testing.T, db *gorm.DB, opts ExportOptions) Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Export(context.Background(), db, &buf, opts))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	return doc
}

func TestExportRedactsSecretsByDefault(t *testing.T) {
	db := setupTestDB(t)

	mustUpsert(t, db, setting.UpsertRequest{Key: "Plain", Value: strPtr("v"), ChangedBy: "alice"})
	mustUpsert(t, db, setting.UpsertRequest{
		Key: "Db.Password", Value: strPtr("hunter2"), IsSecret: true, ChangedBy: "alice",
	})

	doc := exportDoc(t, db, ExportOptions{})
	require.Len(t, doc.Entries, 2)

	byKey := map[string]Entry{}
	for _, e := range doc.Entries {
		byKey[e.Key] = e
	}

	assert.Equal(t, "v", *byKey["Plain"].Value)
	assert.Nil(t, byKey["Db.Password"].Value, "secret value must be redacted")
	assert.True(t, byKey["Db.Password"].IsSecret, "secret metadata survives redaction")

	// opt in to full values
	full := exportDoc(t, db, ExportOptions{IncludeSecrets: true})

	for _, e := range full.Entries {
		if e.Key == "Db.Password" {
			require.NotNil(t, e.Value)
			assert.Equal(t, "hunter2", *e.Value)
		}
	}
}

func TestExportScopeAndPrefixFilters(t *testing.T) {
	db := setupTestDB(t)

	mustUpsert(t, db, setting.UpsertRequest{Key: "Feature.A", Value: strPtr("1"), ChangedBy: "alice"})
	mustUpsert(t, db, setting.UpsertRequest{Key: "Timeout", Value: strPtr("30"), ChangedBy: "alice"})
	mustUpsert(t, db, setting.UpsertRequest{
		ApplicationID: "billing", Key: "Feature.A", Value: strPtr("2"), ChangedBy: "alice",
	})

	byPrefix := exportDoc(t, db, ExportOptions{KeyPrefix: "Feature."})
	assert.Len(t, byPrefix.Entries, 2)

	byScope := exportDoc(t, db, ExportOptions{ApplicationID: "billing"})
	require.Len(t, byScope.Entries, 1)
	assert.Equal(t, "billing", byScope.Entries[0].ApplicationID)
}

func TestImportRoundTrip(t *testing.T) {
	src := setupTestDB(t)

	mustUpsert(t, src, setting.UpsertRequest{Key: "A", Value: strPtr("1"), ChangedBy: "alice"})
	mustUpsert(t, src, setting.UpsertRequest{
		ApplicationID: "billing", Key: "B", BinaryValue: []byte{1, 2}, ChangedBy: "alice",
	})

	var buf bytes.Buffer
	require.NoError(t, Export(context.Background(), src, &buf, ExportOptions{IncludeSecrets: true}))

	dst := setupTestDB(t)

	res, err := Import(context.Background(), dst, bytes.NewReader(buf.Bytes()), ImportOptions{
		ChangedBy: "importer",
		Apply:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Failed)

	a, err := setting.GetByKey(context.Background(), dst, "", "", "A")
	require.NoError(t, err)
	assert.Equal(t, "1", *a.Value)

	b, err := setting.GetByKey(context.Background(), dst, "billing", "", "B")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b.BinaryValue)

	// imports go through the regular mutation path and land in the ledger
	var count int64
	require.NoError(t, dst.Model(&models.SettingHistory{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestImportDryRunChangesNothing(t *testing.T) {
	db := setupTestDB(t)

	doc := `{"entries":[{"key":"A","value":"1"}]}`

	res, err := Import(context.Background(), db, strings.NewReader(doc), ImportOptions{ChangedBy: "importer"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	_, err = setting.GetByKey(context.Background(), db, "", "", "A")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestImportUpdatesExisting(t *testing.T) {
	db := setupTestDB(t)

	mustUpsert(t, db, setting.UpsertRequest{Key: "A", Value: strPtr("old"), ChangedBy: "alice"})

	doc := `{"entries":[{"key":"A","value":"new"}]}`

	res, err := Import(context.Background(), db, strings.NewReader(doc), ImportOptions{
		ChangedBy: "importer",
		Apply:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	row, err := setting.GetByKey(context.Background(), db, "", "", "A")
	require.NoError(t, err)
	assert.Equal(t, "new", *row.Value)
	assert.Equal(t, "importer", row.ModifiedBy)
}

func TestImportInsertOnlySkipsExisting(t *testing.T) {
	db := setupTestDB(t)

	mustUpsert(t, db, setting.UpsertRequest{Key: "A", Value: strPtr("old"), ChangedBy: "alice"})

	doc := `{"entries":[{"key":"A","value":"new"},{"key":"B","value":"fresh"}]}`

	res, err := Import(context.Background(), db, strings.NewReader(doc), ImportOptions{
		ChangedBy:  "importer",
		Apply:      true,
		InsertOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)

	row, err := setting.GetByKey(context.Background(), db, "", "", "A")
	require.NoError(t, err)
	assert.Equal(t, "old", *row.Value)
}

func TestImportSkipsNoOpAndRedactedEntries(t *testing.T) {
	db := setupTestDB(t)

	mustUpsert(t, db, setting.UpsertRequest{Key: "Same", Value: strPtr("v"), ChangedBy: "alice"})

	// "Same" is an identical write, "Redacted" carries no payload at all
	doc := `{"entries":[{"key":"Same","value":"v"},{"key":"Redacted","isSecret":true}]}`

	res, err := Import(context.Background(), db, strings.NewReader(doc), ImportOptions{
		ChangedBy: "importer",
		Apply:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Updated)

	// no new ledger entries beyond the original insert
	var count int64
	require.NoError(t, db.Model(&models.SettingHistory{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestImportCollectsPerEntryErrors(t *testing.T) {
	db := setupTestDB(t)

	// second entry is fine, first is unimportable (value and binary together)
	doc := `{"entries":[
		{"key":"Broken","value":"x","binaryValue":"AQI="},
		{"key":"Good","value":"1"}
	]}`

	res, err := Import(context.Background(), db, strings.NewReader(doc), ImportOptions{
		ChangedBy: "importer",
		Apply:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Broken")
}

func TestImportAssumeSecret(t *testing.T) {
	db := setupTestDB(t)

	doc := `{"entries":[{"key":"Token","value":"t"}]}`

	res, err := Import(context.Background(), db, strings.NewReader(doc), ImportOptions{
		ChangedBy:    "importer",
		Apply:        true,
		AssumeSecret: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	row, err := setting.GetByKey(context.Background(), db, "", "", "Token")
	require.NoError(t, err)
	assert.True(t, row.IsSecret)
}

func TestImportRequiresChangedBy(t *testing.T) {
	db := setupTestDB(t)

	_, err := Import(context.Background(), db, strings.NewReader(`{"entries":[]}`), ImportOptions{})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}
