package service

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// QuizAttemptService folds graded main-quiz attempts into student progress.
type QuizAttemptService interface {
	Evaluate(ctx context.Context, studentID, quizID uint, payload dto.QuizAttemptRequest) (dto.QuizAttemptResult, error)
	History(ctx context.Context, actor Actor, quizID, studentID uint) ([]dto.QuizSubmissionResponse, error)
}

type quizAttemptService struct {
	store       ProgressStore
	access      quizAccess
	submissions repository.QuizSubmissionRepository
	policy      ProgressPolicy
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewQuizAttemptService constructs the attempt evaluator.
func NewQuizAttemptService(store ProgressStore, quizzes repository.QuizRepository, submissions repository.QuizSubmissionRepository, policy ProgressPolicy, validator *validator.Validate, logger zerolog.Logger) QuizAttemptService {
	return &quizAttemptService{
		store:       store,
		access:      quizAccess{quizzes: quizzes},
		submissions: submissions,
		policy:      policy,
		validator:   validator,
		logger:      logger.With().Str("component", "quiz_attempt_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/quiz_attempt"),
	}
}

func (s *quizAttemptService) Evaluate(ctx context.Context, studentID, quizID uint, payload dto.QuizAttemptRequest) (dto.QuizAttemptResult, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.evaluate", trace.WithAttributes(
		attribute.Int64("attempt.student_id", int64(studentID)),
		attribute.Int64("attempt.quiz_id", int64(quizID)),
	))
	defer span.End()

	if studentID == 0 || quizID == 0 {
		return dto.QuizAttemptResult{}, ErrMissingIdentifier
	}
	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.QuizAttemptResult{}, validationError(err)
	}

	score, correct, total, err := resolveScore(payload)
	if err != nil {
		return dto.QuizAttemptResult{}, err
	}

	quiz, err := s.access.loadQuiz(ctx, quizID)
	if err != nil {
		span.RecordError(err)
		return dto.QuizAttemptResult{}, err
	}
	if err := s.access.requireMember(ctx, studentID, quiz); err != nil {
		span.RecordError(err)
		return dto.QuizAttemptResult{}, err
	}

	threshold := s.policy.passingScoreFor(quiz)
	passed := score >= threshold

	var submission models.QuizSubmission
	progress, err := s.store.Update(ctx, ProgressUpdate{
		StudentID:       studentID,
		QuizID:          quizID,
		CreateIfMissing: true,
		MaxAttempts:     s.policy.maxAttemptsFor(quiz),
		Reason:          ReasonAttemptGraded,
	}, func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		if NextAssistanceLevel(*progress).Level != models.AssistanceNone {
			return ErrAssistancePending
		}

		progress.CurrentAttempt++
		progress.LastAttemptPassed = passed
		if !passed {
			progress.FailedAttempts++
		} else if progress.MustRetakeMainQuiz {
			progress.MustRetakeMainQuiz = false
			progress.FailedAttempts = 0
		}

		submission = models.QuizSubmission{
			QuizID:         quizID,
			StudentID:      studentID,
			Cycle:          progress.Cycle,
			AttemptNumber:  progress.CurrentAttempt,
			Status:         models.QuizSubmissionStatusGraded,
			Score:          score,
			CorrectAnswers: correct,
			TotalQuestions: total,
			Passed:         passed,
		}
		return tx.CreateQuizSubmission(&submission)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "progress_update_failed")
		return dto.QuizAttemptResult{}, err
	}

	result := "failed"
	if passed {
		result = "passed"
	}
	observability.QuizAttempts().WithLabelValues(result).Inc()
	span.SetAttributes(
		attribute.Bool("attempt.passed", passed),
		attribute.Int("attempt.number", submission.AttemptNumber),
		attribute.String("attempt.next_level", string(progress.AssistanceRequired)),
	)

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("quiz_id", quizID).
		Int("attempt", submission.AttemptNumber).
		Bool("passed", passed).
		Str("next_level", string(progress.AssistanceRequired)).
		Msg("main quiz attempt evaluated")

	return dto.QuizAttemptResult{
		Passed:       passed,
		Score:        score,
		PassingScore: threshold,
		NextLevel:    progress.AssistanceRequired,
		MustRetake:   progress.MustRetakeMainQuiz,
		Submission:   dto.NewQuizSubmissionResponse(submission),
		Progress:     dto.NewAssistanceStatusResponse(progress),
	}, nil
}

func (s *quizAttemptService) History(ctx context.Context, actor Actor, quizID, studentID uint) ([]dto.QuizSubmissionResponse, error) {
	if quizID == 0 || studentID == 0 {
		return nil, ErrMissingIdentifier
	}
	if _, err := s.access.requireViewer(ctx, actor, quizID, studentID); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.QuizSubmissionFilter{QuizID: &quizID, StudentID: &studentID})
	if err != nil {
		return nil, storageError("list quiz submissions", err)
	}

	responses := make([]dto.QuizSubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewQuizSubmissionResponse(submission))
	}
	return responses, nil
}

// resolveScore returns a 0-100 score from either an explicit score or the
// answer counts.
func resolveScore(payload dto.QuizAttemptRequest) (float64, int, int, error) {
	correct, total := 0, 0
	if payload.CorrectAnswers != nil && payload.TotalQuestions != nil {
		correct, total = *payload.CorrectAnswers, *payload.TotalQuestions
		if correct > total {
			return 0, 0, 0, ErrAttemptScoreInvalid
		}
	}

	if payload.Score != nil {
		return *payload.Score, correct, total, nil
	}
	if total == 0 {
		return 0, 0, 0, ErrAttemptScoreMissing
	}

	score := math.Round(float64(correct)/float64(total)*10000) / 100
	return score, correct, total, nil
}
