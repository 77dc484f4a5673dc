// Package snapshot holds the in-memory view of all in-scope current setting
// values. A snapshot is immutable once built and is replaced wholesale by
// the publisher; readers never observe a partial state.
package snapshot

import (
	"strings"
	"time"
)

// Entry is one text value in a snapshot.
type Entry struct {
	Key    string
	Value  string
	Secret bool
}

type textEntry struct {
	key    string
	value  string
	secret bool
}

// Snapshot is a point-in-time, case-insensitive view of current values.
type Snapshot struct {
	values    map[string]textEntry // keyed by lowercased key
	binary    map[string][]byte    // keyed by lowercased key
	rowCount  int64
	digestHex string
	createdAt time.Time
}

// Value looks up a text value case-insensitively.
func (s *Snapshot) Value(key string) (string, bool) {
	e, ok := s.values[strings.ToLower(key)]

	return e.value, ok
}

// Lookup returns the full entry for a case-insensitive key.
func (s *Snapshot) Lookup(key string) (Entry, bool) {
	e, ok := s.values[strings.ToLower(key)]

	return Entry{Key: e.key, Value: e.value, Secret: e.secret}, ok
}

// Binary looks up a binary value case-insensitively. The returned slice is
// shared; callers must not modify it.
func (s *Snapshot) Binary(key string) ([]byte, bool) {
	b, ok := s.binary[strings.ToLower(key)]

	return b, ok
}

// Entries returns all text values with their originally-cased keys.
func (s *Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.values))
	for _, e := range s.values {
		out = append(out, Entry{Key: e.key, Value: e.value, Secret: e.secret})
	}

	return out
}

// BinaryKeys returns the keys carrying binary payloads.
func (s *Snapshot) BinaryKeys() []string {
	out := make([]string, 0, len(s.binary))
	for k := range s.binary {
		out = append(out, k)
	}

	return out
}

// RowCount returns the number of store rows the snapshot was built from.
func (s *Snapshot) RowCount() int64 { return s.rowCount }

// Digest returns the hex content fingerprint of the snapshot.
func (s *Snapshot) Digest() string { return s.digestHex }

// CreatedAt returns the build time of the snapshot.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Builder accumulates values in application order. A later entry replaces an
// earlier one for the same case-insensitive key, so callers apply wider
// scopes first and narrower scopes last.
type Builder struct {
	values map[string]textEntry
	binary map[string][]byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		values: make(map[string]textEntry),
		binary: make(map[string][]byte),
	}
}

// PutValue records a text value, displacing any binary payload held under
// the same key.
func (b *Builder) PutValue(key, value string, isSecret bool) {
	lk := strings.ToLower(key)
	b.values[lk] = textEntry{key: key, value: value, secret: isSecret}
	delete(b.binary, lk)
}

// PutBinary records a binary value, displacing any text payload held under
// the same key.
func (b *Builder) PutBinary(key string, data []byte) {
	lk := strings.ToLower(key)
	b.binary[lk] = data
	delete(b.values, lk)
}

// Build seals the accumulated state into an immutable Snapshot. The Builder
// must not be reused afterwards.
func (b *Builder) Build(rowCount int64, digestHex string) *Snapshot {
	return &Snapshot{
		values:    b.values,
		binary:    b.binary,
		rowCount:  rowCount,
		digestHex: digestHex,
		createdAt: time.Now().UTC(),
	}
}

func empty() *Snapshot {
	return &Snapshot{
		values:    map[string]textEntry{},
		binary:    map[string][]byte{},
		createdAt: time.Now().UTC(),
	}
}
