package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/KhaosKoder/khaos-settings/internal/config"
	"github.com/KhaosKoder/khaos-settings/internal/snapshot"
)

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, source *snapshot.Source) error
}
