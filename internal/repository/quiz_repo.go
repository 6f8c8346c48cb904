package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// QuizRepository resolves quizzes and the class relationships used for
// authorization.
type QuizRepository interface {
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	GetOwnerTeacherID(ctx context.Context, quizID uint) (uint, error)
	StudentClassIDs(ctx context.Context, studentID uint) ([]uint, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository instantiates the repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).Preload("Class").First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (r *quizRepository) GetOwnerTeacherID(ctx context.Context, quizID uint) (uint, error) {
	quiz, err := r.GetByID(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return quiz.Class.TeacherID, nil
}

func (r *quizRepository) StudentClassIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.ClassStudent{}).
		Where("student_id = ?", studentID).
		Order("class_id ASC").
		Pluck("class_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
