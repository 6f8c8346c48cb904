package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// AssistanceHandler serves the assistance status, material and level submissions.
type AssistanceHandler struct {
	service service.AssistanceService
	logger  zerolog.Logger
}

// NewAssistanceHandler builds an assistance handler.
func NewAssistanceHandler(service service.AssistanceService, logger zerolog.Logger) *AssistanceHandler {
	return &AssistanceHandler{
		service: service,
		logger:  logger.With().Str("component", "assistance_handler").Logger(),
	}
}

// Register attaches the routes to the quizzes router group.
func (h *AssistanceHandler) Register(router fiber.Router) {
	studentOnly := middleware.RequireRole(middleware.RoleStudent)
	teacherOnly := middleware.RequireRole(middleware.RoleTeacher)

	router.Get("/:quizId/progress", h.status)
	router.Get("/:quizId/assistance", studentOnly, h.material)
	router.Post("/:quizId/assistance/level1", studentOnly, h.submitLevel1)
	router.Post("/:quizId/assistance/level2", studentOnly, h.submitLevel2)
	router.Get("/:quizId/assistance/level2/submissions", teacherOnly, h.listLevel2)
	router.Patch("/assistance/level2/submissions/:id/grade", teacherOnly, h.gradeLevel2)
}

func (h *AssistanceHandler) status(c *fiber.Ctx) error {
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

	status, err := h.service.Status(c.UserContext(), actor, quizID, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assistance status retrieved", status)
}

func (h *AssistanceHandler) material(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	material, err := h.service.Material(c.UserContext(), actor.ID, quizID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assistance material retrieved", material)
}

func (h *AssistanceHandler) submitLevel1(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.Level1SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SubmitLevel1(c.UserContext(), actor.ID, quizID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "level 1 submission graded", result)
}

func (h *AssistanceHandler) submitLevel2(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.Level2SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.SubmitLevel2(c.UserContext(), actor.ID, quizID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "level 2 submission awaiting grading", submission)
}

func (h *AssistanceHandler) listLevel2(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	quizID, err := parseUintParam(c, "quizId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListLevel2Submissions(c.UserContext(), actor, quizID, c.Query("status"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "level 2 submissions retrieved", submissions)
}

func (h *AssistanceHandler) gradeLevel2(c *fiber.Ctx) error {
	actor, _ := actorFromCtx(c)
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.Level2GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.GradeLevel2(c.UserContext(), actor, submissionID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "level 2 submission graded", result)
}
