package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const localsCorrelationID = "correlation_id"

// CorrelationID makes sure every request carries a correlation identifier and
// attaches a request-scoped logger to the user context.
func CorrelationID(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get("X-Correlation-ID"))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals(localsCorrelationID, incoming)
		c.Set("X-Correlation-ID", incoming)

		scoped := logger.With().Str("correlation_id", incoming).Logger()
		c.SetUserContext(scoped.WithContext(c.UserContext()))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	id, _ := c.Locals(localsCorrelationID).(string)
	return id
}
