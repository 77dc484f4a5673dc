package daemon

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/config"
	"github.com/KhaosKoder/khaos-settings/internal/db/controller/setting"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
)

func seed(cfg *config.Config, db *gorm.DB) {
	// Seed sample data in dev mode if the settings table is empty

	if !cfg.DevMode {
		return
	}

	var count int64

	db.Model(&models.Setting{}).Count(&count)

	if count != 0 {
		return
	}

	samples := []setting.UpsertRequest{
		{Key: "Service.Name", Value: strPtr(cfg.Title), ChangedBy: "seed"},
		{Key: "Feature.Beta", Value: strPtr("false"), ChangedBy: "seed"},
	}

	for _, req := range samples {
		if _, err := setting.Upsert(context.Background(), db, req); err != nil {
			log.Warn().Err(err).Str("key", req.Key).Msg("seeding sample setting failed")
		}
	}
}

func strPtr(s string) *string { return &s }
