package models

import "time"

// Operation tags a history entry with the mutation that produced it.
type Operation string

const (
	// OperationInsert records the creation of a row.
	OperationInsert Operation = "Insert"
	// OperationUpdate records a change to an existing row.
	OperationUpdate Operation = "Update"
	// OperationDelete records the removal of a row.
	OperationDelete Operation = "Delete"
	// OperationRollback records the restoration of a prior payload. A
	// rollback is a forward operation; it never rewrites the ledger.
	OperationRollback Operation = "Rollback"
)

// SettingHistory is one row of the append-only change ledger. Scope and key
// are carried redundantly so lookups survive a delete and a later reuse of
// the setting id.
type SettingHistory struct {
	ID        uint64 `gorm:"primaryKey"`
	SettingID uint64 `gorm:"index:ix_settings_history_setting"`
	// Scope+key snapshot, stable across deletes.
	ApplicationID string `gorm:"size:200;not null;default:'';index:ix_settings_history_scope_key,priority:1"`
	InstanceID    string `gorm:"size:200;not null;default:'';index:ix_settings_history_scope_key,priority:2"`
	Key           string `gorm:"size:255;not null;index:ix_settings_history_scope_key,priority:3"`
	// Payload before the mutation. Both sides are nil for an insert.
	OldValue       *string
	OldBinaryValue []byte `gorm:"type:blob"`
	// Payload after the mutation. Both sides are nil for a delete.
	NewValue          *string
	NewBinaryValue    []byte `gorm:"type:blob"`
	OldIsSecret       *bool
	OldValueEncrypted *bool
	NewIsSecret       *bool
	NewValueEncrypted *bool
	RowVersionBefore  []byte `gorm:"type:blob"`
	RowVersionAfter   []byte `gorm:"type:blob"`
	ChangedBy         string `gorm:"size:50"`
	ChangedAt         time.Time
	Operation         Operation `gorm:"size:20;not null"`
}

// TableName keeps the ledger table next to the settings table.
func (SettingHistory) TableName() string { return "settings_history" }

// OldPayloadValid reports whether the before side holds exactly one payload.
// Entries violating this must not be trusted by a rollback.
func (h *SettingHistory) OldPayloadValid() bool {
	return (h.OldValue == nil) != (h.OldBinaryValue == nil)
}

// NewPayloadValid reports whether the after side holds exactly one payload.
func (h *SettingHistory) NewPayloadValid() bool {
	return (h.NewValue == nil) != (h.NewBinaryValue == nil)
}
