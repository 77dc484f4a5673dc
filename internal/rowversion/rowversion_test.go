package rowversion

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIsStrictlyIncreasing(t *testing.T) {
	prev := Next()

	for i := 0; i < 1000; i++ {
		next := Next()
		require.Len(t, next, Size)

		if bytes.Compare(next, prev) <= 0 {
			t.Fatalf("stamp %x not greater than predecessor %x", next, prev)
		}

		prev = next
	}
}

func TestNextConcurrentUnique(t *testing.T) {
	const (
		workers   = 8
		perWorker = 500
	)

	var (
		mu     sync.Mutex
		seen   = make(map[string]struct{}, workers*perWorker)
		wg     sync.WaitGroup
		stamps = make(chan []byte, workers*perWorker)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < perWorker; j++ {
				stamps <- Next()
			}
		}()
	}

	wg.Wait()
	close(stamps)

	for s := range stamps {
		mu.Lock()
		_, dup := seen[string(s)]
		seen[string(s)] = struct{}{}
		mu.Unlock()

		assert.False(t, dup, "duplicate stamp %x", s)
	}
}

func TestHexRoundTrip(t *testing.T) {
	stamp := Next()

	h := ToHex(stamp)
	assert.Equal(t, 2*Size, len(h))

	back, err := FromHex(h)
	require.NoError(t, err)
	assert.Equal(t, stamp, back)
}

func TestFromHexInvalid(t *testing.T) {
	_, err := FromHex("not-hex")
	assert.Error(t, err)
}
