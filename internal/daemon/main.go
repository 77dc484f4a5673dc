// Package daemon wires the store, the background publisher and the web
// service into one long-running process.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/config"
	"github.com/KhaosKoder/khaos-settings/internal/crypt"
	"github.com/KhaosKoder/khaos-settings/internal/db/dsn"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/poller"
	"github.com/KhaosKoder/khaos-settings/internal/snapshot"
	"github.com/KhaosKoder/khaos-settings/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService web.Service
	publisher  *poller.Publisher
	cancel     context.CancelFunc
}

// Start runs the background publisher and the web service. It blocks until
// the web service stops.
func (d *Daemon) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	go func() {
		if err := d.publisher.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("settings publisher failed to start")
		}
	}()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// WaitShutdown blocks until a termination signal, then stops the publisher
// and shuts the web service down gracefully.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()

	if d.cancel != nil {
		d.cancel()
	}
}

// OpenDB opens the configured database engine with error translation
// enabled, so unique constraint violations surface as gorm.ErrDuplicatedKey
// on every engine.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		dialector = sqlite.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return db, nil
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")

		return nil
	}

	db, err := OpenDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")

		return nil
	}

	if err = db.AutoMigrate(
		&models.Setting{},
		&models.SettingHistory{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")

		return nil
	}

	seed(cfg, db)

	source := snapshot.NewSource()
	health := poller.NewHealth()

	publisher := poller.New(db, poller.Options{
		ApplicationID:     cfg.Poller.ApplicationID,
		InstanceID:        cfg.Poller.InstanceID,
		Interval:          time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
		FailFastOnStartup: cfg.Poller.FailFastOnStartup,
		EnableDecryption:  cfg.Poller.EnableDecryption,
	}, source, health, crypt.NoOp{})

	return &Daemon{
		cfg:        cfg,
		publisher:  publisher,
		webService: *web.New(cfg, db, source, health),
	}
}
