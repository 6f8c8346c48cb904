package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// OverrideHandler exposes teacher overrides on student progress.
type OverrideHandler struct {
	service   service.OverrideService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewOverrideHandler builds an override handler.
func NewOverrideHandler(service service.OverrideService, validator *validator.Validate, logger zerolog.Logger) *OverrideHandler {
	return &OverrideHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "override_handler").Logger(),
	}
}

// Register attaches the routes to the quizzes router group.
func (h *OverrideHandler) Register(router fiber.Router) {
	students := router.Group("/:quizId/students/:studentId", middleware.RequireRole(middleware.RoleTeacher))
	students.Post("/level3", h.grantLevel3)
	students.Post("/reset", h.reset)
}

func (h *OverrideHandler) grantLevel3(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	quizID, studentID, err := h.pathIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.Level3GrantRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.GrantLevel3Access(c.UserContext(), actor, quizID, studentID, *payload.Granted)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "level 3 access updated", result)
}

func (h *OverrideHandler) reset(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	quizID, studentID, err := h.pathIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.service.ResetAttempts(c.UserContext(), actor, quizID, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "progress reset", status)
}

func (h *OverrideHandler) pathIDs(c *fiber.Ctx) (uint, uint, error) {
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return 0, 0, err
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return 0, 0, err
	}
	return quizID, studentID, nil
}
