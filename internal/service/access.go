package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// Roles understood by the progress services.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Actor is the verified identity performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// IsStudent reports whether the actor acts as a student.
func (a Actor) IsStudent() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleStudent)
}

// ProgressPolicy holds the quiz-independent defaults of the gating rules.
type ProgressPolicy struct {
	MaxAttempts     int
	PassingScore    float64
	Level1PassRatio float64
}

// DefaultProgressPolicy returns the stock policy: four failures before
// assistance, 70% to pass, every level-1 answer correct.
func DefaultProgressPolicy() ProgressPolicy {
	return ProgressPolicy{MaxAttempts: models.DefaultMaxAttempts, PassingScore: 70, Level1PassRatio: 1}
}

func (p ProgressPolicy) maxAttemptsFor(quiz models.Quiz) int {
	if quiz.MaxAttempts > 0 {
		return quiz.MaxAttempts
	}
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return models.DefaultMaxAttempts
}

func (p ProgressPolicy) passingScoreFor(quiz models.Quiz) float64 {
	if quiz.PassingScore > 0 {
		return quiz.PassingScore
	}
	return p.PassingScore
}

func (p ProgressPolicy) level1Ratio() float64 {
	if p.Level1PassRatio <= 0 || p.Level1PassRatio > 1 {
		return 1
	}
	return p.Level1PassRatio
}

// quizAccess enforces class ownership and membership.
type quizAccess struct {
	quizzes repository.QuizRepository
}

func (a quizAccess) loadQuiz(ctx context.Context, quizID uint) (models.Quiz, error) {
	quiz, err := a.quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Quiz{}, ErrQuizNotFound
		}
		return models.Quiz{}, storageError("load quiz", err)
	}
	return quiz, nil
}

// requireOwner loads the quiz and checks that teacherID owns its class.
func (a quizAccess) requireOwner(ctx context.Context, teacherID, quizID uint) (models.Quiz, error) {
	quiz, err := a.loadQuiz(ctx, quizID)
	if err != nil {
		return models.Quiz{}, err
	}
	if teacherID == 0 || quiz.Class.TeacherID != teacherID {
		return models.Quiz{}, ErrNotQuizOwner
	}
	return quiz, nil
}

func (a quizAccess) isMember(ctx context.Context, studentID, classID uint) (bool, error) {
	classIDs, err := a.quizzes.StudentClassIDs(ctx, studentID)
	if err != nil {
		return false, storageError("load student classes", err)
	}
	for _, id := range classIDs {
		if id == classID {
			return true, nil
		}
	}
	return false, nil
}

func (a quizAccess) requireMember(ctx context.Context, studentID uint, quiz models.Quiz) error {
	member, err := a.isMember(ctx, studentID, quiz.ClassID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotClassMember
	}
	return nil
}

// requireViewer allows the student themself or the teacher owning the quiz.
func (a quizAccess) requireViewer(ctx context.Context, actor Actor, quizID, studentID uint) (models.Quiz, error) {
	if actor.IsStudent() {
		if actor.ID != studentID {
			return models.Quiz{}, ErrNotProgressOwner
		}
		quiz, err := a.loadQuiz(ctx, quizID)
		if err != nil {
			return models.Quiz{}, err
		}
		return quiz, a.requireMember(ctx, studentID, quiz)
	}
	return a.requireOwner(ctx, actor.ID, quizID)
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func newActivity(actor Actor, action, entityType string, entityID *uint, metadata map[string]interface{}) *models.ActivityLog {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == "" {
		role = "system"
	}
	return &models.ActivityLog{
		ActorID:    actor.ID,
		ActorRole:  role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   datatypes.JSONMap(metadata),
	}
}
