package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// QuizAttemptHandler exposes main-quiz attempt endpoints.
type QuizAttemptHandler struct {
	service      service.QuizAttemptService
	logger       zerolog.Logger
	submitLimits fiber.Handler
}

// NewQuizAttemptHandler builds the attempt handler. submitLimits guards the
// attempt submission route and may be nil.
func NewQuizAttemptHandler(service service.QuizAttemptService, submitLimits fiber.Handler, logger zerolog.Logger) *QuizAttemptHandler {
	if submitLimits == nil {
		submitLimits = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &QuizAttemptHandler{
		service:      service,
		submitLimits: submitLimits,
		logger:       logger.With().Str("component", "quiz_attempt_handler").Logger(),
	}
}

// Register attaches the routes to the quizzes router group.
func (h *QuizAttemptHandler) Register(router fiber.Router) {
	router.Post("/:quizId/attempts", middleware.RequireRole(middleware.RoleStudent), h.submitLimits, h.submit)
	router.Get("/:quizId/attempts", h.history)
}

func (h *QuizAttemptHandler) submit(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuizAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Evaluate(c.UserContext(), actor.ID, quizID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt evaluated", result)
}

func (h *QuizAttemptHandler) history(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := targetStudent(c, actor)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempts, err := h.service.History(c.UserContext(), actor, quizID, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}
