package poller

import (
	"sync"
	"time"
)

// Health tracks publisher outcomes for diagnostics. Each Publisher owns one
// instance; it is passed in explicitly rather than held as process-global
// state so multiple publishers can coexist in tests.
type Health struct {
	mu                  sync.Mutex
	lastSuccess         time.Time
	lastRowCount        int64
	lastDigestPrefix    string
	consecutiveFailures int
}

// Report is a point-in-time copy of the health state.
type Report struct {
	Healthy             bool      `json:"healthy"`
	LastSuccess         time.Time `json:"lastSuccess"`
	LastRowCount        int64     `json:"lastRowCount"`
	LastDigestPrefix    string    `json:"lastDigestPrefix"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// NewHealth returns an empty health tracker.
func NewHealth() *Health { return &Health{} }

// Report returns a copy of the current state.
func (h *Health) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Report{
		Healthy:             h.consecutiveFailures == 0 && !h.lastSuccess.IsZero(),
		LastSuccess:         h.lastSuccess,
		LastRowCount:        h.lastRowCount,
		LastDigestPrefix:    h.lastDigestPrefix,
		ConsecutiveFailures: h.consecutiveFailures,
	}
}

func (h *Health) recordSuccess(rowCount int64, digestPrefix string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSuccess = time.Now().UTC()
	h.lastRowCount = rowCount
	h.lastDigestPrefix = digestPrefix
	h.consecutiveFailures = 0
}

func (h *Health) recordFailure() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutiveFailures++

	return h.consecutiveFailures
}
