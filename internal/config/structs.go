package config

import (
	"github.com/KhaosKoder/khaos-settings/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	Title     string
	DB        DB
	Log       logger.Log
	Poller    Poller
	Webserver Webserver
}

// Poller configures the background change-detection task.
type Poller struct {
	ApplicationID string // application scope for the published snapshot
	InstanceID    string // instance scope, only meaningful with ApplicationID

	IntervalSeconds int // seconds between polls, floor enforced at runtime

	FailFastOnStartup bool // abort startup when the first poll fails
	EnableDecryption  bool // decrypt encrypted values while building the snapshot
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool   // use clean path middleware to allow multi slash requests
	DisableRecover bool   // disable recover middleware
	Domain         string // domain name for the webserver
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver
}
