package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssistanceLevel1 is the yes/no remedial quiz attached to a main quiz.
type AssistanceLevel1 struct {
	ID        uint                       `gorm:"primaryKey" json:"id"`
	QuizID    uint                       `gorm:"not null;uniqueIndex" json:"quiz_id"`
	Title     string                     `gorm:"size:255" json:"title"`
	Questions []AssistanceLevel1Question `gorm:"foreignKey:Level1ID;constraint:OnDelete:CASCADE" json:"questions"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// AssistanceLevel1Question is a single yes/no statement.
type AssistanceLevel1Question struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Level1ID      uint   `gorm:"column:level1_id;not null;index" json:"level1_id"`
	Prompt        string `gorm:"type:text;not null" json:"prompt"`
	CorrectAnswer bool   `gorm:"not null" json:"-"`
}

// AssistanceLevel1Submission stores an auto-graded level-1 answer sheet.
type AssistanceLevel1Submission struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	StudentID uint              `gorm:"not null;index:idx_level1_submission_student_quiz,priority:1" json:"student_id"`
	QuizID    uint              `gorm:"not null;index:idx_level1_submission_student_quiz,priority:2" json:"quiz_id"`
	Cycle     uint              `gorm:"not null;default:0" json:"cycle"`
	Answers   datatypes.JSONMap `gorm:"type:json" json:"answers"`
	Correct   int               `gorm:"not null" json:"correct"`
	Total     int               `gorm:"not null" json:"total"`
	Passed    bool              `gorm:"not null" json:"passed"`
	CreatedAt time.Time         `json:"created_at"`
}

// AssistanceLevel2 is the teacher-graded essay assistance for a quiz.
type AssistanceLevel2 struct {
	ID        uint                       `gorm:"primaryKey" json:"id"`
	QuizID    uint                       `gorm:"not null;uniqueIndex" json:"quiz_id"`
	Title     string                     `gorm:"size:255" json:"title"`
	Questions []AssistanceLevel2Question `gorm:"foreignKey:Level2ID;constraint:OnDelete:CASCADE" json:"questions"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// AssistanceLevel2Question is an essay prompt.
type AssistanceLevel2Question struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Level2ID uint   `gorm:"column:level2_id;not null;index" json:"level2_id"`
	Prompt   string `gorm:"type:text;not null" json:"prompt"`
}

const (
	Level2StatusPending = "PENDING"
	Level2StatusPassed  = "PASSED"
	Level2StatusFailed  = "FAILED"
)

// AssistanceLevel2Submission is one essay attempt. Status only leaves
// PENDING through teacher grading.
type AssistanceLevel2Submission struct {
	ID        uint                     `gorm:"primaryKey" json:"id"`
	StudentID uint                     `gorm:"not null;index" json:"student_id"`
	QuizID    uint                     `gorm:"not null;index" json:"quiz_id"`
	Level2ID  uint                     `gorm:"column:level2_id;not null;index" json:"level2_id"`
	Cycle     uint                     `gorm:"not null;default:0" json:"cycle"`
	Status    string                   `gorm:"size:16;not null" json:"status"`
	Feedback  string                   `gorm:"type:text" json:"feedback"`
	GradedBy  *uint                    `json:"graded_by"`
	GradedAt  *time.Time               `json:"graded_at"`
	Answers   []AssistanceLevel2Answer `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"answers"`
	Level2    AssistanceLevel2         `gorm:"foreignKey:Level2ID" json:"-"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// IsGraded reports whether a teacher has already graded the submission.
func (s AssistanceLevel2Submission) IsGraded() bool {
	return s.Status == Level2StatusPassed || s.Status == Level2StatusFailed
}

// AssistanceLevel2Answer is the essay answer to one prompt.
type AssistanceLevel2Answer struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	SubmissionID uint   `gorm:"not null;index" json:"submission_id"`
	QuestionID   uint   `gorm:"not null" json:"question_id"`
	Answer       string `gorm:"type:text" json:"answer"`
}

// AssistanceLevel3 references the PDF material shown before the retake.
type AssistanceLevel3 struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	QuizID      uint      `gorm:"not null;uniqueIndex" json:"quiz_id"`
	Title       string    `gorm:"size:255" json:"title"`
	MaterialURL string    `gorm:"size:512;not null" json:"material_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
