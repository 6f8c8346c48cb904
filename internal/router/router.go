package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-quiz-api/internal/config"
	"github.com/noah-isme/gema-quiz-api/internal/handler"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QuizAttemptHandler *handler.QuizAttemptHandler
	AssistanceHandler  *handler.AssistanceHandler
	OverrideHandler    *handler.OverrideHandler
	JWTMiddleware      fiber.Handler
	HealthProbes       map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v2", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	quizzes := api.Group("/quizzes", jwtMiddleware)
	if deps.QuizAttemptHandler != nil {
		deps.QuizAttemptHandler.Register(quizzes)
	}
	if deps.AssistanceHandler != nil {
		deps.AssistanceHandler.Register(quizzes)
	}
	if deps.OverrideHandler != nil {
		deps.OverrideHandler.Register(quizzes)
	}
}
