package models

import "time"

// AssistanceLevel names the remedial level a student is gated behind.
type AssistanceLevel string

const (
	AssistanceNone   AssistanceLevel = "NONE"
	AssistanceRequiredLevel1 AssistanceLevel = "LEVEL1"
	AssistanceRequiredLevel2 AssistanceLevel = "LEVEL2"
	AssistanceRequiredLevel3 AssistanceLevel = "LEVEL3"
)

// DefaultMaxAttempts is the failure ceiling before assistance is mandatory.
const DefaultMaxAttempts = 4

// Valid reports whether the level is one of the known values.
func (l AssistanceLevel) Valid() bool {
	switch l {
	case AssistanceNone, AssistanceRequiredLevel1, AssistanceRequiredLevel2, AssistanceRequiredLevel3:
		return true
	default:
		return false
	}
}

// StudentQuizProgress is the single gating record per student and quiz.
// Version is bumped on every committed write and used as a compare-and-swap
// token; Cycle is bumped by a teacher reset.
type StudentQuizProgress struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	StudentID          uint            `gorm:"not null;uniqueIndex:idx_student_quiz_progress,priority:1" json:"student_id"`
	QuizID             uint            `gorm:"not null;uniqueIndex:idx_student_quiz_progress,priority:2" json:"quiz_id"`
	CurrentAttempt     int             `gorm:"not null;default:0" json:"current_attempt"`
	MaxAttempts        int             `gorm:"not null;default:4" json:"max_attempts"`
	FailedAttempts     int             `gorm:"not null;default:0" json:"failed_attempts"`
	LastAttemptPassed  bool            `gorm:"not null;default:false" json:"last_attempt_passed"`
	AssistanceRequired AssistanceLevel `gorm:"size:16;not null;default:'NONE'" json:"assistance_required"`
	Level1Completed    bool            `gorm:"column:level1_completed;not null;default:false" json:"level1_completed"`
	Level2Completed    bool            `gorm:"column:level2_completed;not null;default:false" json:"level2_completed"`
	Level3Completed    bool            `gorm:"column:level3_completed;not null;default:false" json:"level3_completed"`
	MustRetakeMainQuiz bool            `gorm:"not null;default:false" json:"must_retake_main_quiz"`
	Cycle              uint            `gorm:"not null;default:0" json:"cycle"`
	Version            uint            `gorm:"not null;default:0" json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName pins the table name.
func (StudentQuizProgress) TableName() string { return "student_quiz_progress" }

// NewStudentQuizProgress returns the initial state for a student and quiz.
func NewStudentQuizProgress(studentID, quizID uint, maxAttempts int) StudentQuizProgress {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return StudentQuizProgress{
		StudentID:          studentID,
		QuizID:             quizID,
		MaxAttempts:        maxAttempts,
		AssistanceRequired: AssistanceNone,
	}
}

// Reset restores the gating fields to their initial values and opens a new cycle.
func (p *StudentQuizProgress) Reset() {
	p.CurrentAttempt = 0
	p.FailedAttempts = 0
	p.LastAttemptPassed = false
	p.AssistanceRequired = AssistanceNone
	p.Level1Completed = false
	p.Level2Completed = false
	p.Level3Completed = false
	p.MustRetakeMainQuiz = false
	p.Cycle++
}
