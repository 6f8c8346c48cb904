package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// AssistanceService exposes the gating status and reacts to verdicts from
// the three assistance tracks.
type AssistanceService interface {
	Status(ctx context.Context, actor Actor, quizID, studentID uint) (dto.AssistanceStatusResponse, error)
	Material(ctx context.Context, studentID, quizID uint) (dto.AssistanceMaterialResponse, error)
	SubmitLevel1(ctx context.Context, studentID, quizID uint, payload dto.Level1SubmitRequest) (dto.Level1Result, error)
	SubmitLevel2(ctx context.Context, studentID, quizID uint, payload dto.Level2SubmitRequest) (dto.Level2SubmissionResponse, error)
	ListLevel2Submissions(ctx context.Context, actor Actor, quizID uint, status string) ([]dto.Level2SubmissionResponse, error)
	GradeLevel2(ctx context.Context, actor Actor, submissionID uint, payload dto.Level2GradeRequest) (dto.Level2GradeResult, error)
}

type assistanceService struct {
	store      ProgressStore
	access     quizAccess
	assistance repository.AssistanceRepository
	policy     ProgressPolicy
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAssistanceService constructs the level completion tracker.
func NewAssistanceService(store ProgressStore, quizzes repository.QuizRepository, assistance repository.AssistanceRepository, policy ProgressPolicy, validator *validator.Validate, logger zerolog.Logger) AssistanceService {
	return &assistanceService{
		store:      store,
		access:     quizAccess{quizzes: quizzes},
		assistance: assistance,
		policy:     policy,
		validator:  validator,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "assistance_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/assistance"),
		now:        time.Now,
	}
}

func (s *assistanceService) Status(ctx context.Context, actor Actor, quizID, studentID uint) (dto.AssistanceStatusResponse, error) {
	if quizID == 0 || studentID == 0 {
		return dto.AssistanceStatusResponse{}, ErrMissingIdentifier
	}
	quiz, err := s.access.requireViewer(ctx, actor, quizID, studentID)
	if err != nil {
		return dto.AssistanceStatusResponse{}, err
	}

	progress, err := s.currentProgress(ctx, studentID, quiz)
	if err != nil {
		return dto.AssistanceStatusResponse{}, err
	}
	return dto.NewAssistanceStatusResponse(progress), nil
}

// currentProgress returns the stored record, or the untouched initial state
// when the student has no activity on the quiz yet.
func (s *assistanceService) currentProgress(ctx context.Context, studentID uint, quiz models.Quiz) (models.StudentQuizProgress, error) {
	progress, err := s.store.Get(ctx, studentID, quiz.ID)
	if errors.Is(err, ErrProgressNotFound) {
		return models.NewStudentQuizProgress(studentID, quiz.ID, s.policy.maxAttemptsFor(quiz)), nil
	}
	return progress, err
}

func (s *assistanceService) Material(ctx context.Context, studentID, quizID uint) (dto.AssistanceMaterialResponse, error) {
	if quizID == 0 || studentID == 0 {
		return dto.AssistanceMaterialResponse{}, ErrMissingIdentifier
	}
	quiz, err := s.access.loadQuiz(ctx, quizID)
	if err != nil {
		return dto.AssistanceMaterialResponse{}, err
	}
	if err := s.access.requireMember(ctx, studentID, quiz); err != nil {
		return dto.AssistanceMaterialResponse{}, err
	}

	progress, err := s.currentProgress(ctx, studentID, quiz)
	if err != nil {
		return dto.AssistanceMaterialResponse{}, err
	}

	level := NextAssistanceLevel(progress).Level
	switch level {
	case models.AssistanceRequiredLevel1:
		definition, err := s.assistance.GetLevel1ByQuiz(ctx, quizID)
		if err != nil {
			return dto.AssistanceMaterialResponse{}, notConfigured(err, ErrLevel1NotConfigured)
		}
		questions := make([]dto.Level1QuestionResponse, 0, len(definition.Questions))
		for _, question := range definition.Questions {
			questions = append(questions, dto.Level1QuestionResponse{ID: question.ID, Prompt: question.Prompt})
		}
		return dto.AssistanceMaterialResponse{Level: level, Title: definition.Title, Level1Questions: questions}, nil
	case models.AssistanceRequiredLevel2:
		definition, err := s.assistance.GetLevel2ByQuiz(ctx, quizID)
		if err != nil {
			return dto.AssistanceMaterialResponse{}, notConfigured(err, ErrLevel2NotConfigured)
		}
		questions := make([]dto.Level2QuestionResponse, 0, len(definition.Questions))
		for _, question := range definition.Questions {
			questions = append(questions, dto.Level2QuestionResponse{ID: question.ID, Prompt: question.Prompt})
		}
		return dto.AssistanceMaterialResponse{Level: level, Title: definition.Title, Level2Questions: questions}, nil
	case models.AssistanceRequiredLevel3:
		material, err := s.assistance.GetLevel3ByQuiz(ctx, quizID)
		if err != nil {
			return dto.AssistanceMaterialResponse{}, notConfigured(err, ErrLevel3NotConfigured)
		}
		return dto.AssistanceMaterialResponse{Level: level, Title: material.Title, MaterialURL: material.MaterialURL}, nil
	default:
		return dto.AssistanceMaterialResponse{}, ErrLevelNotActive
	}
}

func (s *assistanceService) SubmitLevel1(ctx context.Context, studentID, quizID uint, payload dto.Level1SubmitRequest) (dto.Level1Result, error) {
	ctx, span := s.tracer.Start(ctx, "assistance.level1.submit", trace.WithAttributes(
		attribute.Int64("assistance.student_id", int64(studentID)),
		attribute.Int64("assistance.quiz_id", int64(quizID)),
	))
	defer span.End()

	if quizID == 0 || studentID == 0 {
		return dto.Level1Result{}, ErrMissingIdentifier
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.Level1Result{}, validationError(err)
	}

	quiz, err := s.access.loadQuiz(ctx, quizID)
	if err != nil {
		return dto.Level1Result{}, err
	}
	if err := s.access.requireMember(ctx, studentID, quiz); err != nil {
		return dto.Level1Result{}, err
	}

	definition, err := s.assistance.GetLevel1ByQuiz(ctx, quizID)
	if err != nil {
		return dto.Level1Result{}, notConfigured(err, ErrLevel1NotConfigured)
	}

	correct, total, err := gradeLevel1(definition, payload.Answers)
	if err != nil {
		return dto.Level1Result{}, err
	}
	passed := total > 0 && float64(correct)/float64(total) >= s.policy.level1Ratio()

	answers := datatypes.JSONMap{}
	for questionID, answer := range payload.Answers {
		answers[strconv.FormatUint(uint64(questionID), 10)] = answer
	}

	progress, err := s.store.Update(ctx, ProgressUpdate{
		StudentID: studentID,
		QuizID:    quizID,
		Reason:    ReasonLevel1Submitted,
	}, func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		if NextAssistanceLevel(*progress).Level != models.AssistanceRequiredLevel1 {
			return ErrLevelNotActive
		}
		if err := tx.CreateLevel1Submission(&models.AssistanceLevel1Submission{
			StudentID: studentID,
			QuizID:    quizID,
			Cycle:     progress.Cycle,
			Answers:   answers,
			Correct:   correct,
			Total:     total,
			Passed:    passed,
		}); err != nil {
			return err
		}
		if passed {
			progress.Level1Completed = true
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "level1_submit_failed")
		return dto.Level1Result{}, levelSubmitError(err)
	}

	observability.AssistanceVerdicts().WithLabelValues("1", verdictLabel(passed)).Inc()

	return dto.Level1Result{
		Passed:          passed,
		Correct:         correct,
		Total:           total,
		Level1Completed: progress.Level1Completed,
		NextLevel:       progress.AssistanceRequired,
		Progress:        dto.NewAssistanceStatusResponse(progress),
	}, nil
}

// gradeLevel1 counts correct answers. Unanswered questions count as wrong;
// answers to unknown questions are rejected.
func gradeLevel1(definition models.AssistanceLevel1, answers map[uint]bool) (int, int, error) {
	known := make(map[uint]bool, len(definition.Questions))
	for _, question := range definition.Questions {
		known[question.ID] = question.CorrectAnswer
	}
	for questionID := range answers {
		if _, ok := known[questionID]; !ok {
			return 0, 0, ErrUnknownQuestion
		}
	}

	correct := 0
	for questionID, expected := range known {
		if answer, ok := answers[questionID]; ok && answer == expected {
			correct++
		}
	}
	return correct, len(known), nil
}

func (s *assistanceService) SubmitLevel2(ctx context.Context, studentID, quizID uint, payload dto.Level2SubmitRequest) (dto.Level2SubmissionResponse, error) {
	if quizID == 0 || studentID == 0 {
		return dto.Level2SubmissionResponse{}, ErrMissingIdentifier
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.Level2SubmissionResponse{}, validationError(err)
	}

	quiz, err := s.access.loadQuiz(ctx, quizID)
	if err != nil {
		return dto.Level2SubmissionResponse{}, err
	}
	if err := s.access.requireMember(ctx, studentID, quiz); err != nil {
		return dto.Level2SubmissionResponse{}, err
	}

	definition, err := s.assistance.GetLevel2ByQuiz(ctx, quizID)
	if err != nil {
		return dto.Level2SubmissionResponse{}, notConfigured(err, ErrLevel2NotConfigured)
	}
	prompts := make(map[uint]struct{}, len(definition.Questions))
	for _, question := range definition.Questions {
		prompts[question.ID] = struct{}{}
	}

	answers := make([]models.AssistanceLevel2Answer, 0, len(payload.Answers))
	for _, input := range payload.Answers {
		if _, ok := prompts[input.QuestionID]; !ok {
			return dto.Level2SubmissionResponse{}, ErrUnknownQuestion
		}
		answers = append(answers, models.AssistanceLevel2Answer{
			QuestionID: input.QuestionID,
			Answer:     strings.TrimSpace(s.sanitizer.Sanitize(input.Answer)),
		})
	}

	var submission models.AssistanceLevel2Submission
	_, err = s.store.Update(ctx, ProgressUpdate{
		StudentID: studentID,
		QuizID:    quizID,
		Reason:    ReasonLevel2Submitted,
	}, func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		if NextAssistanceLevel(*progress).Level != models.AssistanceRequiredLevel2 {
			return ErrLevelNotActive
		}
		pending, err := tx.HasPendingLevel2Submission(studentID, quizID, progress.Cycle)
		if err != nil {
			return err
		}
		if pending {
			return ErrLevel2AlreadyPending
		}

		submission = models.AssistanceLevel2Submission{
			StudentID: studentID,
			QuizID:    quizID,
			Level2ID:  definition.ID,
			Cycle:     progress.Cycle,
			Status:    models.Level2StatusPending,
			Answers:   append([]models.AssistanceLevel2Answer(nil), answers...),
		}
		return tx.SaveLevel2Submission(&submission)
	})
	if err != nil {
		return dto.Level2SubmissionResponse{}, levelSubmitError(err)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("quiz_id", quizID).
		Uint("submission_id", submission.ID).
		Msg("level 2 submission awaiting grading")

	return dto.NewLevel2SubmissionResponse(submission), nil
}

func (s *assistanceService) ListLevel2Submissions(ctx context.Context, actor Actor, quizID uint, status string) ([]dto.Level2SubmissionResponse, error) {
	if quizID == 0 {
		return nil, ErrMissingIdentifier
	}
	if _, err := s.access.requireOwner(ctx, actor.ID, quizID); err != nil {
		return nil, err
	}

	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case "", models.Level2StatusPending, models.Level2StatusPassed, models.Level2StatusFailed:
	default:
		return nil, ErrInvalidGradeStatus
	}

	submissions, err := s.assistance.ListLevel2Submissions(ctx, quizID, status)
	if err != nil {
		return nil, storageError("list level 2 submissions", err)
	}

	responses := make([]dto.Level2SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewLevel2SubmissionResponse(submission))
	}
	return responses, nil
}

func (s *assistanceService) GradeLevel2(ctx context.Context, actor Actor, submissionID uint, payload dto.Level2GradeRequest) (dto.Level2GradeResult, error) {
	ctx, span := s.tracer.Start(ctx, "assistance.level2.grade", trace.WithAttributes(
		attribute.Int64("assistance.submission_id", int64(submissionID)),
		attribute.Int64("assistance.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if submissionID == 0 {
		return dto.Level2GradeResult{}, ErrMissingIdentifier
	}
	payload.Status = strings.ToUpper(strings.TrimSpace(payload.Status))
	if err := s.validator.Struct(payload); err != nil {
		return dto.Level2GradeResult{}, validationError(err)
	}
	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))

	existing, err := s.assistance.GetLevel2Submission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.Level2GradeResult{}, ErrLevel2SubmissionNotFound
		}
		return dto.Level2GradeResult{}, storageError("load level 2 submission", err)
	}

	quiz, err := s.access.requireOwner(ctx, actor.ID, existing.QuizID)
	if err != nil {
		span.RecordError(err)
		return dto.Level2GradeResult{}, err
	}
	if existing.IsGraded() && existing.Status != payload.Status {
		return dto.Level2GradeResult{}, ErrSubmissionAlreadyGraded
	}

	var graded models.AssistanceLevel2Submission
	progress, err := s.store.Update(ctx, ProgressUpdate{
		StudentID:       existing.StudentID,
		QuizID:          existing.QuizID,
		CreateIfMissing: true,
		MaxAttempts:     s.policy.maxAttemptsFor(quiz),
		Reason:          ReasonLevel2Graded,
	}, func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		current, err := tx.FindLevel2Submission(submissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLevel2SubmissionNotFound
			}
			return err
		}

		if current.IsGraded() {
			if current.Status != payload.Status {
				return ErrSubmissionAlreadyGraded
			}
			graded = current
		} else {
			gradedAt := s.now()
			gradedBy := actor.ID
			current.Status = payload.Status
			current.Feedback = feedback
			current.GradedAt = &gradedAt
			current.GradedBy = &gradedBy
			if err := tx.SaveLevel2Submission(&current); err != nil {
				return err
			}
			graded = current

			if err := tx.CreateActivity(newActivity(actor, models.ActivityLevel2Graded, "assistance_level2_submission", &current.ID, map[string]interface{}{
				"student_id": current.StudentID,
				"quiz_id":    current.QuizID,
				"status":     current.Status,
			})); err != nil {
				return err
			}
		}

		// A verdict on a submission from before a reset does not count.
		if graded.Status == models.Level2StatusPassed && graded.Cycle == progress.Cycle {
			progress.Level2Completed = true
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "level2_grade_failed")
		return dto.Level2GradeResult{}, err
	}

	observability.AssistanceVerdicts().WithLabelValues("2", verdictLabel(graded.Status == models.Level2StatusPassed)).Inc()
	span.SetAttributes(attribute.String("assistance.status", graded.Status))

	return dto.Level2GradeResult{
		Level2Completed: progress.Level2Completed,
		NextLevel:       progress.AssistanceRequired,
		Submission:      dto.NewLevel2SubmissionResponse(graded),
		Progress:        dto.NewAssistanceStatusResponse(progress),
	}, nil
}

// levelSubmitError maps a missing progress row to an inactive level: a
// student without attempts is not gated behind any level.
func levelSubmitError(err error) error {
	if errors.Is(err, ErrProgressNotFound) {
		return ErrLevelNotActive
	}
	return err
}

func notConfigured(err error, missing error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return missing
	}
	return storageError("load assistance definition", err)
}

func verdictLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
