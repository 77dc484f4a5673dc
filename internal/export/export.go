// Package export serializes settings to a portable JSON document and
// imports such a document back into the store through the regular mutation
// path, so every imported change lands in the history ledger.
package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
)

// Entry is one setting in the interchange document. Exactly one of Value
// and BinaryValue is set; BinaryValue is standard base64.
type Entry struct {
	ApplicationID string  `json:"applicationId,omitempty"`
	InstanceID    string  `json:"instanceId,omitempty"`
	Key           string  `json:"key"`
	Value         *string `json:"value,omitempty"`
	BinaryValue   []byte  `json:"binaryValue,omitempty"`
	IsSecret      bool    `json:"isSecret,omitempty"`
	Encrypted     bool    `json:"encrypted,omitempty"`
	Comment       string  `json:"comment,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// Document is the interchange envelope.
type Document struct {
	ExportedAt time.Time `json:"exportedAt"`
	Entries    []Entry   `json:"entries"`
}

// ExportOptions scope an export.
type ExportOptions struct {
	ApplicationID string
	InstanceID    string
	KeyPrefix     string
	// IncludeSecrets emits secret values verbatim. When false, secret
	// entries keep their metadata but their value is omitted.
	IncludeSecrets bool
}

// Export writes the matching settings as a JSON document to w.
func Export(ctx context.Context, db *gorm.DB, w io.Writer, opts ExportOptions) error {
	rows, err := setting.List(ctx, db, setting.Query{
		ApplicationID: opts.ApplicationID,
		InstanceID:    opts.InstanceID,
		KeyPrefix:     opts.KeyPrefix,
	})
	if err != nil {
		return errors.Wrap(err, "listing settings for export")
	}

	doc := Document{
		ExportedAt: time.Now().UTC(),
		Entries:    make([]Entry, 0, len(rows)),
	}

	redacted := 0

	for i := range rows {
		r := &rows[i]
		e := Entry{
			ApplicationID: r.ApplicationID,
			InstanceID:    r.InstanceID,
			Key:           r.Key,
			IsSecret:      r.IsSecret,
			Encrypted:     r.ValueEncrypted,
			Comment:       r.Comment,
			Notes:         r.Notes,
		}

		if r.IsSecret && !opts.IncludeSecrets {
			redacted++
		} else {
			e.Value = r.Value
			e.BinaryValue = r.BinaryValue
		}

		doc.Entries = append(doc.Entries, e)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding export document")
	}

	log.Info().
		Int("entries", len(doc.Entries)).
		Int("secretsRedacted", redacted).
		Msg("settings exported")

	return nil
}

// ImportOptions control an import run.
type ImportOptions struct {
	ChangedBy string
	// Apply performs the mutations. When false the run is a dry run that
	// only reports what would happen.
	Apply bool
	// InsertOnly skips entries whose scope+key already exists instead of
	// updating them.
	InsertOnly bool
	// AssumeSecret marks every imported entry as secret regardless of the
	// flag in the document.
	AssumeSecret bool
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	// Errors collects the per-entry failures; the import keeps going past
	// individual bad entries.
	Errors []string `json:"errors,omitempty"`
}

// Import replays a JSON document into the store. Each entry goes through
// the regular upsert so history entries and version stamps behave exactly
// as for interactive edits. A redacted secret (no value at all) is skipped.
func Import(ctx context.Context, db *gorm.DB, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	if opts.ChangedBy == "" {
		return nil, fault.InvalidArgument("changedBy must not be empty")
	}

	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding import document")
	}

	res := &ImportResult{}

	for i := range doc.Entries {
		e := &doc.Entries[i]

		if opts.AssumeSecret {
			e.IsSecret = true
		}

		if e.Value == nil && e.BinaryValue == nil {
			res.Skipped++

			continue
		}

		if err := importOne(ctx, db, e, opts, res); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, errors.Wrapf(err, "entry %q", e.Key).Error())
			log.Warn().Err(err).Str("key", e.Key).Msg("import entry failed")
		}
	}

	log.Info().
		Bool("applied", opts.Apply).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("settings import finished")

	return res, nil
}

func importOne(ctx context.Context, db *gorm.DB, e *Entry, opts ImportOptions, res *ImportResult) error {
	existing, err := setting.GetByKey(ctx, db, e.ApplicationID, e.InstanceID, e.Key)

	switch {
	case err == nil:
		if opts.InsertOnly || unchanged(existing, e) {
			res.Skipped++

			return nil
		}

		if opts.Apply {
			if _, err := setting.Upsert(ctx, db, requestFor(e, opts.ChangedBy, existing.RowVersion)); err != nil {
				return err
			}
		}

		res.Updated++

		return nil
	case fault.CodeOf(err) == fault.CodeNotFound:
		if opts.Apply {
			if _, err := setting.Upsert(ctx, db, requestFor(e, opts.ChangedBy, nil)); err != nil {
				return err
			}
		}

		res.Inserted++

		return nil
	default:
		return err
	}
}

func requestFor(e *Entry, changedBy string, stamp []byte) setting.UpsertRequest {
	return setting.UpsertRequest{
		ApplicationID:      e.ApplicationID,
		InstanceID:         e.InstanceID,
		Key:                e.Key,
		Value:              e.Value,
		BinaryValue:        e.BinaryValue,
		IsSecret:           e.IsSecret,
		EncryptValue:       e.Encrypted,
		ChangedBy:          changedBy,
		ExpectedRowVersion: stamp,
		Comment:            e.Comment,
		Notes:              e.Notes,
	}
}

// unchanged reports whether applying the entry would be a no-op write.
func unchanged(row *models.Setting, e *Entry) bool {
	if row.IsSecret != e.IsSecret || row.ValueEncrypted != e.Encrypted {
		return false
	}

	if (row.Value == nil) != (e.Value == nil) {
		return false
	}

	if row.Value != nil && *row.Value != *e.Value {
		return false
	}

	return base64.StdEncoding.EncodeToString(row.BinaryValue) ==
		base64.StdEncoding.EncodeToString(e.BinaryValue)
}
