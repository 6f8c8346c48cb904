package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// AssistanceRepository reads assistance-level definitions and level-2
// submissions.
type AssistanceRepository interface {
	GetLevel1ByQuiz(ctx context.Context, quizID uint) (models.AssistanceLevel1, error)
	GetLevel2ByQuiz(ctx context.Context, quizID uint) (models.AssistanceLevel2, error)
	GetLevel3ByQuiz(ctx context.Context, quizID uint) (models.AssistanceLevel3, error)
	GetLevel2Submission(ctx context.Context, id uint) (models.AssistanceLevel2Submission, error)
	ListLevel2Submissions(ctx context.Context, quizID uint, status string) ([]models.AssistanceLevel2Submission, error)
}

type assistanceRepository struct {
	db *gorm.DB
}

// NewAssistanceRepository instantiates the repository.
func NewAssistanceRepository(db *gorm.DB) AssistanceRepository {
	return &assistanceRepository{db: db}
}

func (r *assistanceRepository) GetLevel1ByQuiz(ctx context.Context, quizID uint) (models.AssistanceLevel1, error) {
	var level models.AssistanceLevel1
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id ASC")
		}).
		Where("quiz_id = ?", quizID).
		First(&level).Error; err != nil {
		return models.AssistanceLevel1{}, err
	}
	return level, nil
}

func (r *assistanceRepository) GetLevel2ByQuiz(ctx context.Context, quizID uint) (models.AssistanceLevel2, error) {
	var level models.AssistanceLevel2
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id ASC")
		}).
		Where("quiz_id = ?", quizID).
		First(&level).Error; err != nil {
		return models.AssistanceLevel2{}, err
	}
	return level, nil
}

func (r *assistanceRepository) GetLevel3ByQuiz(ctx context.Context, quizID uint) (models.AssistanceLevel3, error) {
	var level models.AssistanceLevel3
	if err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).First(&level).Error; err != nil {
		return models.AssistanceLevel3{}, err
	}
	return level, nil
}

func (r *assistanceRepository) GetLevel2Submission(ctx context.Context, id uint) (models.AssistanceLevel2Submission, error) {
	var submission models.AssistanceLevel2Submission
	if err := r.db.WithContext(ctx).Preload("Answers").First(&submission, id).Error; err != nil {
		return models.AssistanceLevel2Submission{}, err
	}
	return submission, nil
}

func (r *assistanceRepository) ListLevel2Submissions(ctx context.Context, quizID uint, status string) ([]models.AssistanceLevel2Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.AssistanceLevel2Submission{}).
		Preload("Answers").
		Where("quiz_id = ?", quizID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var submissions []models.AssistanceLevel2Submission
	if err := query.Order("created_at ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
