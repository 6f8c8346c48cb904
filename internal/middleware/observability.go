package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/observability"
)

const apiPrefix = "/api/v2"

// Observability records Prometheus metrics and a structured access log line
// for every API request.
func Observability() fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if !strings.HasPrefix(c.Path(), apiPrefix) {
			return err
		}

		duration := time.Since(start)
		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()

		observability.APIRequests().WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(duration.Seconds())

		event := zerolog.Ctx(c.UserContext()).Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = zerolog.Ctx(c.UserContext()).Error()
		case status >= fiber.StatusBadRequest:
			event = zerolog.Ctx(c.UserContext()).Warn()
		}
		event.
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration)).
			Msg("request completed")

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 25*time.Millisecond:
		return "<=25ms"
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= 500*time.Millisecond:
		return "<=500ms"
	default:
		return ">500ms"
	}
}
