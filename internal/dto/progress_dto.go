package dto

import (
	"time"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// AssistanceStatusResponse is the gating view of one student on one quiz.
type AssistanceStatusResponse struct {
	StudentID          uint                   `json:"student_id"`
	QuizID             uint                   `json:"quiz_id"`
	AssistanceRequired models.AssistanceLevel `json:"assistance_required"`
	Level1Completed    bool                   `json:"level1_completed"`
	Level2Completed    bool                   `json:"level2_completed"`
	Level3Completed    bool                   `json:"level3_completed"`
	MustRetakeMainQuiz bool                   `json:"must_retake_main_quiz"`
	CurrentAttempt     int                    `json:"current_attempt"`
	FailedAttempts     int                    `json:"failed_attempts"`
	MaxAttempts        int                    `json:"max_attempts"`
	LastAttemptPassed  bool                   `json:"last_attempt_passed"`
	Cycle              uint                   `json:"cycle"`
}

// NewAssistanceStatusResponse converts a progress record into its status view.
func NewAssistanceStatusResponse(progress models.StudentQuizProgress) AssistanceStatusResponse {
	return AssistanceStatusResponse{
		StudentID:          progress.StudentID,
		QuizID:             progress.QuizID,
		AssistanceRequired: progress.AssistanceRequired,
		Level1Completed:    progress.Level1Completed,
		Level2Completed:    progress.Level2Completed,
		Level3Completed:    progress.Level3Completed,
		MustRetakeMainQuiz: progress.MustRetakeMainQuiz,
		CurrentAttempt:     progress.CurrentAttempt,
		FailedAttempts:     progress.FailedAttempts,
		MaxAttempts:        progress.MaxAttempts,
		LastAttemptPassed:  progress.LastAttemptPassed,
		Cycle:              progress.Cycle,
	}
}

// QuizAttemptRequest carries the graded result of a main-quiz attempt.
// Either Score or both answer counts must be present.
type QuizAttemptRequest struct {
	Score          *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
	CorrectAnswers *int     `json:"correct_answers" validate:"omitempty,gte=0"`
	TotalQuestions *int     `json:"total_questions" validate:"omitempty,gt=0"`
}

// QuizSubmissionResponse serializes one main-quiz attempt.
type QuizSubmissionResponse struct {
	ID             uint      `json:"id"`
	QuizID         uint      `json:"quiz_id"`
	StudentID      uint      `json:"student_id"`
	Cycle          uint      `json:"cycle"`
	AttemptNumber  int       `json:"attempt_number"`
	Status         string    `json:"status"`
	Score          float64   `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	Passed         bool      `json:"passed"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewQuizSubmissionResponse converts a QuizSubmission model into a DTO.
func NewQuizSubmissionResponse(model models.QuizSubmission) QuizSubmissionResponse {
	return QuizSubmissionResponse{
		ID:             model.ID,
		QuizID:         model.QuizID,
		StudentID:      model.StudentID,
		Cycle:          model.Cycle,
		AttemptNumber:  model.AttemptNumber,
		Status:         model.Status,
		Score:          model.Score,
		CorrectAnswers: model.CorrectAnswers,
		TotalQuestions: model.TotalQuestions,
		Passed:         model.Passed,
		CreatedAt:      model.CreatedAt,
	}
}

// QuizAttemptResult tells the client where the student goes next.
type QuizAttemptResult struct {
	Passed       bool                     `json:"passed"`
	Score        float64                  `json:"score"`
	PassingScore float64                  `json:"passing_score"`
	NextLevel    models.AssistanceLevel   `json:"next_level"`
	MustRetake   bool                     `json:"must_retake"`
	Submission   QuizSubmissionResponse   `json:"submission"`
	Progress     AssistanceStatusResponse `json:"progress"`
}

// Level1SubmitRequest maps level-1 question ids to yes/no answers.
type Level1SubmitRequest struct {
	Answers map[uint]bool `json:"answers" validate:"required,min=1"`
}

// Level1Result reports the outcome of a level-1 submission.
type Level1Result struct {
	Passed          bool                     `json:"passed"`
	Correct         int                      `json:"correct"`
	Total           int                      `json:"total"`
	Level1Completed bool                     `json:"level1_completed"`
	NextLevel       models.AssistanceLevel   `json:"next_level"`
	Progress        AssistanceStatusResponse `json:"progress"`
}

// Level1QuestionResponse exposes a level-1 prompt without its answer.
type Level1QuestionResponse struct {
	ID     uint   `json:"id"`
	Prompt string `json:"prompt"`
}

// Level2QuestionResponse exposes a level-2 essay prompt.
type Level2QuestionResponse struct {
	ID     uint   `json:"id"`
	Prompt string `json:"prompt"`
}

// Level2AnswerInput is the essay answer to one prompt.
type Level2AnswerInput struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"required,max=20000"`
}

// Level2SubmitRequest carries a full level-2 essay submission.
type Level2SubmitRequest struct {
	Answers []Level2AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

// Level2GradeRequest is the teacher verdict for a level-2 submission.
type Level2GradeRequest struct {
	Status   string `json:"status" validate:"required,oneof=PASSED FAILED"`
	Feedback string `json:"feedback" validate:"omitempty,max=5000"`
}

// Level2AnswerResponse serializes an essay answer.
type Level2AnswerResponse struct {
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
}

// Level2SubmissionResponse serializes a level-2 submission.
type Level2SubmissionResponse struct {
	ID        uint                   `json:"id"`
	StudentID uint                   `json:"student_id"`
	QuizID    uint                   `json:"quiz_id"`
	Cycle     uint                   `json:"cycle"`
	Status    string                 `json:"status"`
	Feedback  string                 `json:"feedback"`
	GradedBy  *uint                  `json:"graded_by"`
	GradedAt  *time.Time             `json:"graded_at"`
	Answers   []Level2AnswerResponse `json:"answers"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewLevel2SubmissionResponse converts a level-2 submission into a DTO.
func NewLevel2SubmissionResponse(model models.AssistanceLevel2Submission) Level2SubmissionResponse {
	answers := make([]Level2AnswerResponse, 0, len(model.Answers))
	for _, answer := range model.Answers {
		answers = append(answers, Level2AnswerResponse{QuestionID: answer.QuestionID, Answer: answer.Answer})
	}
	return Level2SubmissionResponse{
		ID:        model.ID,
		StudentID: model.StudentID,
		QuizID:    model.QuizID,
		Cycle:     model.Cycle,
		Status:    model.Status,
		Feedback:  model.Feedback,
		GradedBy:  model.GradedBy,
		GradedAt:  model.GradedAt,
		Answers:   answers,
		CreatedAt: model.CreatedAt,
	}
}

// Level2GradeResult reports the outcome of teacher grading.
type Level2GradeResult struct {
	Level2Completed bool                     `json:"level2_completed"`
	NextLevel       models.AssistanceLevel   `json:"next_level"`
	Submission      Level2SubmissionResponse `json:"submission"`
	Progress        AssistanceStatusResponse `json:"progress"`
}

// Level3GrantRequest toggles level-3 completion for a student.
type Level3GrantRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// Level3GrantResult reports the state after a level-3 grant or revoke.
type Level3GrantResult struct {
	Level3Completed bool                     `json:"level3_completed"`
	NextLevel       models.AssistanceLevel   `json:"next_level"`
	MustRetake      bool                     `json:"must_retake"`
	Progress        AssistanceStatusResponse `json:"progress"`
}

// AssistanceMaterialResponse lists what the student sees for the active level.
type AssistanceMaterialResponse struct {
	Level           models.AssistanceLevel   `json:"level"`
	Title           string                   `json:"title"`
	Level1Questions []Level1QuestionResponse `json:"level1_questions,omitempty"`
	Level2Questions []Level2QuestionResponse `json:"level2_questions,omitempty"`
	MaterialURL     string                   `json:"material_url,omitempty"`
}
