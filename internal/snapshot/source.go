package snapshot

import (
	"encoding/base64"
	"sync"
	"sync/atomic"

	"github.com/KhaosKoder/khaos-settings/internal/fault"
	"github.com/KhaosKoder/khaos-settings/internal/uuencode"
)

// Source hands the current Snapshot to concurrent readers. The snapshot is
// replaced with one atomic swap and never mutated in place; a change token
// fires exactly once per actual publish.
type Source struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex // guards changed across publishes
	changed chan struct{}
}

// NewSource returns a Source holding an empty snapshot, so cold readers see
// a usable (if empty) view before the first publish.
func NewSource() *Source {
	s := &Source{changed: make(chan struct{})}
	s.current.Store(empty())

	return s
}

// Current returns the latest published snapshot. Never nil.
func (s *Source) Current() *Snapshot {
	return s.current.Load()
}

// Changed returns a channel closed at the next publish. Skipped polls do not
// fire it; callers re-arm by calling Changed again after a fire.
func (s *Source) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.changed
}

// Publish swaps in a new snapshot and fires the change token.
func (s *Source) Publish(next *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(next)
	close(s.changed)
	s.changed = make(chan struct{})
}

// Value looks up a text value in the current snapshot.
func (s *Source) Value(key string) (string, bool) {
	return s.Current().Value(key)
}

// Binary looks up a binary value in the current snapshot.
func (s *Source) Binary(key string) ([]byte, bool) {
	return s.Current().Binary(key)
}

// BinaryBase64URL returns a binary value in URL-safe base64 without padding.
func (s *Source) BinaryBase64URL(key string) (string, error) {
	b, ok := s.Binary(key)
	if !ok {
		return "", fault.NotFound(key, "", "")
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BinaryUuencoded returns a binary value in the classic line-oriented
// printable encoding.
func (s *Source) BinaryUuencoded(key string) (string, error) {
	b, ok := s.Binary(key)
	if !ok {
		return "", fault.NotFound(key, "", "")
	}

	return uuencode.Encode(b), nil
}
