// Package health serves liveness and poller health endpoints.
package health

import (
	"errors"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/KhaosKoder/khaos-settings/internal/config"
	"github.com/KhaosKoder/khaos-settings/internal/poller"
)

const (
	// Path is the poller health endpoint.
	Path = "/healthz"

	// CheckAlivePath is the liveness endpoint used by load balancers.
	CheckAlivePath = "/checkalive"
)

// Service is the health handler service.
type Service struct {
	cfg    *config.Config
	health *poller.Health
	alive  *atomic.Bool
}

// Handler is the health handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the health handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, health *poller.Health, alive *atomic.Bool) error {
	if app == nil || cfg == nil || health == nil || alive == nil {
		return errors.New("app, cfg, health or alive is nil") //nolint:goerr113
	}

	s.cfg = cfg
	s.health = health
	s.alive = alive

	app.Get(Path, s.Healthz)
	app.Get(CheckAlivePath, s.CheckAlive)

	return nil
}

// Healthz returns the poller health report. 503 when the poller never
// succeeded or is failing.
func (s *Service) Healthz(c *fiber.Ctx) error {
	report := s.health.Report()

	status := fiber.StatusOK
	if !report.Healthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(report)
}

// CheckAlive returns 200 while the service accepts traffic and 503 during
// graceful shutdown.
func (s *Service) CheckAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendString("OK")
}
