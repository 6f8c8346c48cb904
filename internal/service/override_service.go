package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// OverrideService holds the out-of-band teacher operations on progress.
type OverrideService interface {
	GrantLevel3Access(ctx context.Context, actor Actor, quizID, studentID uint, granted bool) (dto.Level3GrantResult, error)
	ResetAttempts(ctx context.Context, actor Actor, quizID, studentID uint) (dto.AssistanceStatusResponse, error)
}

type overrideService struct {
	store  ProgressStore
	access quizAccess
	policy ProgressPolicy
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewOverrideService constructs the teacher override service.
func NewOverrideService(store ProgressStore, quizzes repository.QuizRepository, policy ProgressPolicy, logger zerolog.Logger) OverrideService {
	return &overrideService{
		store:  store,
		access: quizAccess{quizzes: quizzes},
		policy: policy,
		logger: logger.With().Str("component", "override_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/override"),
	}
}

func (s *overrideService) GrantLevel3Access(ctx context.Context, actor Actor, quizID, studentID uint, granted bool) (dto.Level3GrantResult, error) {
	ctx, span := s.tracer.Start(ctx, "override.level3", trace.WithAttributes(
		attribute.Int64("override.quiz_id", int64(quizID)),
		attribute.Int64("override.student_id", int64(studentID)),
		attribute.Bool("override.granted", granted),
	))
	defer span.End()

	if quizID == 0 || studentID == 0 {
		return dto.Level3GrantResult{}, ErrMissingIdentifier
	}
	quiz, err := s.access.requireOwner(ctx, actor.ID, quizID)
	if err != nil {
		span.RecordError(err)
		return dto.Level3GrantResult{}, err
	}
	member, err := s.access.isMember(ctx, studentID, quiz.ClassID)
	if err != nil {
		return dto.Level3GrantResult{}, err
	}
	if !member {
		return dto.Level3GrantResult{}, ErrStudentNotInClass
	}

	action := models.ActivityLevel3Granted
	if !granted {
		action = models.ActivityLevel3Revoked
	}

	progress, err := s.store.Update(ctx, ProgressUpdate{
		StudentID:       studentID,
		QuizID:          quizID,
		CreateIfMissing: true,
		MaxAttempts:     s.policy.maxAttemptsFor(quiz),
		Reason:          ReasonLevel3Granted,
	}, func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		progress.Level3Completed = granted
		if !granted {
			progress.MustRetakeMainQuiz = false
		}
		return tx.CreateActivity(newActivity(actor, action, "student_quiz_progress", &progress.ID, map[string]interface{}{
			"student_id": studentID,
			"quiz_id":    quizID,
			"granted":    granted,
		}))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "level3_grant_failed")
		return dto.Level3GrantResult{}, err
	}

	s.logger.Info().
		Uint("teacher_id", actor.ID).
		Uint("student_id", studentID).
		Uint("quiz_id", quizID).
		Bool("granted", granted).
		Msg("level 3 access updated")

	return dto.Level3GrantResult{
		Level3Completed: progress.Level3Completed,
		NextLevel:       progress.AssistanceRequired,
		MustRetake:      progress.MustRetakeMainQuiz,
		Progress:        dto.NewAssistanceStatusResponse(progress),
	}, nil
}

func (s *overrideService) ResetAttempts(ctx context.Context, actor Actor, quizID, studentID uint) (dto.AssistanceStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "override.reset", trace.WithAttributes(
		attribute.Int64("override.quiz_id", int64(quizID)),
		attribute.Int64("override.student_id", int64(studentID)),
	))
	defer span.End()

	if quizID == 0 || studentID == 0 {
		return dto.AssistanceStatusResponse{}, ErrMissingIdentifier
	}
	if _, err := s.access.requireOwner(ctx, actor.ID, quizID); err != nil {
		span.RecordError(err)
		return dto.AssistanceStatusResponse{}, err
	}

	progress, err := s.store.Update(ctx, ProgressUpdate{
		StudentID: studentID,
		QuizID:    quizID,
		Reason:    ReasonProgressReset,
	}, func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		previousCycle := progress.Cycle
		progress.Reset()
		return tx.CreateActivity(newActivity(actor, models.ActivityProgressReset, "student_quiz_progress", &progress.ID, map[string]interface{}{
			"student_id":     studentID,
			"quiz_id":        quizID,
			"previous_cycle": previousCycle,
		}))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset_failed")
		return dto.AssistanceStatusResponse{}, err
	}

	s.logger.Info().
		Uint("teacher_id", actor.ID).
		Uint("student_id", studentID).
		Uint("quiz_id", quizID).
		Uint("cycle", progress.Cycle).
		Msg("progress reset")

	return dto.NewAssistanceStatusResponse(progress), nil
}
