package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// QuizSubmissionFilter allows narrowing main-quiz submission queries.
type QuizSubmissionFilter struct {
	QuizID    *uint
	StudentID *uint
	Cycle     *uint
}

// QuizSubmissionRepository reads the main-quiz attempt log. Rows are only
// written through ProgressTx so they commit with the progress update.
type QuizSubmissionRepository interface {
	List(ctx context.Context, filter QuizSubmissionFilter) ([]models.QuizSubmission, error)
}

type quizSubmissionRepository struct {
	db *gorm.DB
}

// NewQuizSubmissionRepository instantiates the repository.
func NewQuizSubmissionRepository(db *gorm.DB) QuizSubmissionRepository {
	return &quizSubmissionRepository{db: db}
}

func (r *quizSubmissionRepository) List(ctx context.Context, filter QuizSubmissionFilter) ([]models.QuizSubmission, error) {
	query := r.db.WithContext(ctx).Model(&models.QuizSubmission{}).
		Where("assistance_level IS NULL")

	if filter.QuizID != nil {
		query = query.Where("quiz_id = ?", *filter.QuizID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Cycle != nil {
		query = query.Where("cycle = ?", *filter.Cycle)
	}

	var submissions []models.QuizSubmission
	if err := query.Order("cycle ASC").Order("attempt_number ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
