package poller

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/KhaosKoder/khaos-settings/internal/db/models"
)

// fingerprint is the cheap change signal computed from the (key, stamp)
// projection of the in-scope rows. Matching fingerprints mean the scope is
// very likely unchanged and the expensive digest can be skipped.
type fingerprint struct {
	rowCount    int64
	maxStamp    []byte
	keyChecksum uint64
}

func (f fingerprint) equal(other fingerprint) bool {
	return f.rowCount == other.rowCount &&
		bytes.Equal(f.maxStamp, other.maxStamp) &&
		f.keyChecksum == other.keyChecksum
}

// fingerprintOf computes the cheap signal: row count, byte-wise maximum
// version stamp, and an order-independent case-insensitive checksum over the
// keys.
func fingerprintOf(rows []models.Setting) fingerprint {
	fp := fingerprint{rowCount: int64(len(rows))}

	for i := range rows {
		if bytes.Compare(rows[i].RowVersion, fp.maxStamp) > 0 {
			fp.maxStamp = rows[i].RowVersion
		}

		h := fnv.New64a()
		_, _ = h.Write([]byte(strings.ToLower(rows[i].Key)))
		fp.keyChecksum += h.Sum64()
	}

	return fp
}

// digestOf computes the expensive confirmation: a SHA-256 over every field
// of every row, sorted case-insensitively by key (scope as tiebreaker) for
// determinism. Binary payloads are digested rather than embedded so the
// hash input stays bounded.
func digestOf(rows []models.Setting) []byte {
	sorted := make([]models.Setting, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := strings.ToLower(sorted[i].Key), strings.ToLower(sorted[j].Key)
		if ki != kj {
			return ki < kj
		}

		if sorted[i].ApplicationID != sorted[j].ApplicationID {
			return sorted[i].ApplicationID < sorted[j].ApplicationID
		}

		return sorted[i].InstanceID < sorted[j].InstanceID
	})

	h := sha256.New()

	for i := range sorted {
		r := &sorted[i]

		writeField(h, r.ApplicationID)
		writeField(h, r.InstanceID)
		writeField(h, r.Key)

		if r.Value != nil {
			writeField(h, *r.Value)
		} else {
			writeField(h, "")
		}

		if r.BinaryValue != nil {
			sum := sha256.Sum256(r.BinaryValue)
			writeField(h, hex.EncodeToString(sum[:]))
		} else {
			writeField(h, "")
		}

		writeField(h, r.ModifiedAt.UTC().Format(time.RFC3339Nano))
		writeField(h, flag(r.IsSecret))
		writeField(h, flag(r.ValueEncrypted))
		writeField(h, hex.EncodeToString(r.RowVersion))
		_, _ = h.Write([]byte{'~'})
	}

	return h.Sum(nil)
}

func writeField(w io.Writer, s string) {
	_, _ = w.Write([]byte(s))
	_, _ = w.Write([]byte{'|'})
}

func flag(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
