// Package uuencode implements the classic line-oriented printable encoding
// for binary blobs: 45 input bytes per line, each line prefixed with a
// length-count character, the stream terminated by a backtick line.
package uuencode

import "strings"

const lineBytes = 45

// Encode renders data in uuencoded form. Empty input yields an empty string.
func Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var b strings.Builder

	for idx := 0; idx < len(data); idx += lineBytes {
		end := idx + lineBytes
		if end > len(data) {
			end = len(data)
		}

		chunk := data[idx:end]
		b.WriteByte(byte(' ' + (len(chunk) & 0x3F)))

		for i := 0; i < len(chunk); i += 3 {
			var b2, b3 uint32

			b1 := uint32(chunk[i])
			if i+1 < len(chunk) {
				b2 = uint32(chunk[i+1])
			}

			if i+2 < len(chunk) {
				b3 = uint32(chunk[i+2])
			}

			tuple := b1<<16 | b2<<8 | b3
			b.WriteByte(byte(' ' + ((tuple >> 18) & 0x3F)))
			b.WriteByte(byte(' ' + ((tuple >> 12) & 0x3F)))
			b.WriteByte(byte(' ' + ((tuple >> 6) & 0x3F)))
			b.WriteByte(byte(' ' + (tuple & 0x3F)))
		}

		b.WriteByte('\n')
	}

	b.WriteString("`\n")

	return b.String()
}
