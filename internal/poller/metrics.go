package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals
var (
	successCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khaos_settings_reload_success_total",
		Help: "Number of polls that detected a change and published a new snapshot.",
	})

	skippedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khaos_settings_reload_skipped_total",
		Help: "Number of polls that found the scope unchanged and skipped the rebuild.",
	})

	failureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khaos_settings_reload_failure_total",
		Help: "Number of polls that failed with a store error.",
	})

	decryptFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "khaos_settings_decryption_failure_total",
		Help: "Number of keys whose value could not be decrypted during a snapshot rebuild.",
	})

	consecutiveFailureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "khaos_settings_poll_failures_consecutive",
		Help: "Number of consecutive failed polls.",
	})
)
