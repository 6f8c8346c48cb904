package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

const retryMessage = "progress is busy, please try again"

func actorFromCtx(c *fiber.Ctx) (service.Actor, bool) {
	identity, ok := middleware.IdentityFromCtx(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: identity.UserID, Role: identity.Role}, true
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

// targetStudent resolves whose progress is being read: students always read
// their own, teachers name the student in the query string.
func targetStudent(c *fiber.Ctx, actor service.Actor) (uint, error) {
	if actor.IsStudent() {
		return actor.ID, nil
	}
	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return 0, err
	}
	if studentID == 0 {
		return 0, errors.New("student_id is required")
	}
	return studentID, nil
}

// respondError maps the service error categories onto HTTP statuses.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", fieldErrors(validationErrors))
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOwnership):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrProgressConflict), errors.Is(err, service.ErrProgressBusy), errors.Is(err, service.ErrProgressTimeout):
		return utils.SendError(c, fiber.StatusConflict, retryMessage)
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStorage):
		logger.Error().Err(err).Str("correlation_id", middleware.GetCorrelationID(c)).Msg("storage failure")
		return utils.SendError(c, fiber.StatusServiceUnavailable, retryMessage)
	default:
		logger.Error().Err(err).Str("correlation_id", middleware.GetCorrelationID(c)).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}
