package models

import "time"

// Quiz is the main quiz a student attempts. PassingScore and MaxAttempts
// fall back to the service defaults when zero.
type Quiz struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ClassID      uint      `gorm:"not null;index" json:"class_id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	PassingScore float64   `gorm:"not null;default:0" json:"passing_score"`
	MaxAttempts  int       `gorm:"not null;default:0" json:"max_attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Class        Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// QuizSubmissionStatusInProgress marks an attempt that has not been graded yet.
	QuizSubmissionStatusInProgress = "IN_PROGRESS"
	// QuizSubmissionStatusGraded marks an attempt whose score is final.
	QuizSubmissionStatusGraded = "GRADED"
)

// QuizSubmission is one main-quiz attempt. A nil AssistanceLevel marks a
// main-quiz row. Cycle is the progress cycle the attempt belongs to, so
// numbering restarts after a reset without touching older rows.
type QuizSubmission struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	QuizID          uint      `gorm:"not null;uniqueIndex:idx_quiz_submission_attempt,priority:2" json:"quiz_id"`
	StudentID       uint      `gorm:"not null;uniqueIndex:idx_quiz_submission_attempt,priority:1" json:"student_id"`
	Cycle           uint      `gorm:"not null;default:0;uniqueIndex:idx_quiz_submission_attempt,priority:3" json:"cycle"`
	AttemptNumber   int       `gorm:"not null;uniqueIndex:idx_quiz_submission_attempt,priority:4" json:"attempt_number"`
	Status          string    `gorm:"size:32;not null" json:"status"`
	Score           float64   `gorm:"not null;default:0" json:"score"`
	CorrectAnswers  int       `gorm:"not null;default:0" json:"correct_answers"`
	TotalQuestions  int       `gorm:"not null;default:0" json:"total_questions"`
	Passed          bool      `gorm:"not null;default:false" json:"passed"`
	AssistanceLevel *int      `json:"assistance_level"`
	Feedback        string    `gorm:"type:text" json:"feedback"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsMainQuiz reports whether the submission belongs to the main quiz.
func (s QuizSubmission) IsMainQuiz() bool {
	return s.AssistanceLevel == nil
}
