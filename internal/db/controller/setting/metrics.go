package setting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// conflictCounter counts mutations rejected with a concurrency conflict.
var conflictCounter = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
	Name: "khaos_settings_concurrency_conflict_total",
	Help: "Number of setting mutations rejected because the supplied version stamp was stale.",
})
