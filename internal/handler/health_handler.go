package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps lists what readiness checks. Redis and the device bridge are
// optional; a nil value is reported as "disabled".
type HealthDeps struct {
	DB      *sql.DB
	Redis   *redis.Client
	Bridge  Pinger
	Metrics *observability.Metrics
}

func RegisterHealthRoutes(app fiber.Router, deps HealthDeps) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(deps))
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

type readinessCheck struct {
	name  string
	gates bool
	ping  func(ctx context.Context) error
}

func (deps HealthDeps) checks() []readinessCheck {
	checks := []readinessCheck{{name: "database", gates: true}, {name: "redis", gates: true}, {name: "deviceBridge"}}
	if deps.DB != nil {
		checks[0].ping = deps.DB.PingContext
	}
	if deps.Redis != nil {
		checks[1].ping = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}
	if deps.Bridge != nil {
		checks[2].ping = deps.Bridge.Ping
	}
	return checks
}

// ReadyzHandler fails when the database or a configured Redis is down. The
// device bridge is reported but does not gate readiness: calls keep being
// recorded while the handset is offline.
func ReadyzHandler(deps HealthDeps) fiber.Handler {
	checks := deps.checks()

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		ready := true
		report := make(fiber.Map, len(checks))
		for _, check := range checks {
			state := "disabled"
			if check.ping != nil {
				state = "ok"
				if err := check.ping(ctx); err != nil {
					state = "down"
					ready = ready && !check.gates
				}
			}
			report[check.name] = state
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready", "checks": report})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": report})
	}
}
