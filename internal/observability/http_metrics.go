package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	metricsPath    = "/metrics"
	unmatchedRoute = "unmatched"
)

// HTTPMiddleware records request counts and latency keyed by the matched
// route template. Handler errors are rendered here through the app's error
// handler so the recorded status is the one the client sees.
func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := matchedRoute(c)
		if route == metricsPath {
			return nil
		}
		m.observeRequest(c.Method(), route, responseStatus(c), time.Since(started))
		return nil
	}
}

func (m *Metrics) observeRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}

	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func matchedRoute(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && strings.TrimSpace(r.Path) != "" {
		return r.Path
	}
	return unmatchedRoute
}

func responseStatus(c *fiber.Ctx) int {
	if status := c.Response().StatusCode(); status != 0 {
		return status
	}
	return fiber.StatusOK
}
