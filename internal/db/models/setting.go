// Package models contains database model definitions.
package models

import "time"

// Scope tiers. A narrower tier shadows a wider one for the same key when a
// snapshot is built.
const (
	// ScopeGlobal applies to every application and instance.
	ScopeGlobal = iota
	// ScopeApplication applies to one application.
	ScopeApplication
	// ScopeInstance applies to one instance of one application.
	ScopeInstance
)

// Setting represents one configuration value in the store. A key is unique
// within its scope pair; the empty string means "not set" for both scope
// columns, so a single composite unique index enforces all three scope
// tiers (NULLs are distinct in unique indexes on every supported engine,
// which would let two global rows share a key).
type Setting struct {
	// ID is the store-assigned, immutable identity of the row.
	ID uint64 `gorm:"primaryKey"`
	// ApplicationID narrows the key to one application; empty means global.
	ApplicationID string `gorm:"size:200;not null;default:'';uniqueIndex:ux_settings_scope_key,priority:1"`
	// InstanceID narrows the key to one instance; empty means any instance.
	InstanceID string `gorm:"size:200;not null;default:'';uniqueIndex:ux_settings_scope_key,priority:2"`
	// Key is the setting name, unique within its scope pair.
	Key string `gorm:"size:255;not null;uniqueIndex:ux_settings_scope_key,priority:3"`
	// Value holds the text payload; nil when the payload is binary. Exactly
	// one of Value and BinaryValue is present at all times.
	Value *string
	// BinaryValue holds the binary payload; nil when the payload is text.
	BinaryValue []byte `gorm:"type:blob"`
	// IsSecret marks values that must be masked for display.
	IsSecret bool
	// ValueEncrypted marks values stored in encrypted form.
	ValueEncrypted bool
	CreatedBy      string `gorm:"size:50"`
	CreatedAt      time.Time
	ModifiedBy     string `gorm:"size:50"`
	ModifiedAt     time.Time
	Comment        string `gorm:"size:4000"`
	Notes          string
	// RowVersion is the opaque concurrency stamp; it changes on every write.
	RowVersion []byte `gorm:"type:blob;not null"`
}

// Scope returns the scope tier of the row.
func (s *Setting) Scope() int {
	switch {
	case s.ApplicationID == "" && s.InstanceID == "":
		return ScopeGlobal
	case s.InstanceID == "":
		return ScopeApplication
	default:
		return ScopeInstance
	}
}

// PayloadValid reports whether exactly one of Value and BinaryValue is
// present.
func (s *Setting) PayloadValid() bool {
	return (s.Value == nil) != (s.BinaryValue == nil)
}
