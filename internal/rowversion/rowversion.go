// Package rowversion handles the opaque per-row version stamps used for
// optimistic concurrency detection. Stamps are assigned on every write and
// compare byte-wise in assignment order.
package rowversion

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"
)

// Size is the encoded width of a version stamp in bytes.
const Size = 8

var counter = seed()

func seed() *atomic.Uint64 {
	var c atomic.Uint64
	c.Store(uint64(time.Now().UnixNano())) //nolint:gosec

	return &c
}

// Next returns a fresh version stamp. Stamps are strictly increasing within
// a process, so the byte-wise maximum of a set of stamps identifies the most
// recent write.
func Next() []byte {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint64(buf, counter.Add(1))

	return buf
}

// ToHex renders a version stamp in the display form used by the CLI and in
// error messages.
func ToHex(rv []byte) string {
	return strings.ToUpper(hex.EncodeToString(rv))
}

// FromHex parses a version stamp from its display form.
func FromHex(s string) ([]byte, error) {
	return hex.DecodeString(s) //nolint:wrapcheck
}
