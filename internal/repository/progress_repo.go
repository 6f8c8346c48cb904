package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// ErrProgressVersionConflict signals that the progress row changed between
// read and write.
var ErrProgressVersionConflict = errors.New("progress version conflict")

// ProgressKey identifies a progress record.
type ProgressKey struct {
	StudentID uint
	QuizID    uint
}

func (k ProgressKey) String() string {
	return fmt.Sprintf("student:%d:quiz:%d", k.StudentID, k.QuizID)
}

// ProgressTx exposes the writes that commit together with a progress transition.
type ProgressTx interface {
	CreateQuizSubmission(submission *models.QuizSubmission) error
	CreateLevel1Submission(submission *models.AssistanceLevel1Submission) error
	SaveLevel2Submission(submission *models.AssistanceLevel2Submission) error
	FindLevel2Submission(id uint) (models.AssistanceLevel2Submission, error)
	HasPendingLevel2Submission(studentID, quizID uint, cycle uint) (bool, error)
	CreateActivity(entry *models.ActivityLog) error
}

// ProgressMutation changes a loaded progress record inside a transaction.
type ProgressMutation func(tx ProgressTx, progress *models.StudentQuizProgress) error

// ProgressRepository persists StudentQuizProgress rows.
type ProgressRepository interface {
	Find(ctx context.Context, key ProgressKey) (models.StudentQuizProgress, error)
	GetOrCreate(ctx context.Context, initial models.StudentQuizProgress) (models.StudentQuizProgress, error)
	// Mutate loads the row, applies fn and writes it back guarded by the
	// version column. When initial is non-nil a missing row is created first.
	Mutate(ctx context.Context, key ProgressKey, initial *models.StudentQuizProgress, fn ProgressMutation) (models.StudentQuizProgress, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates the repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Find(ctx context.Context, key ProgressKey) (models.StudentQuizProgress, error) {
	return findProgress(r.db.WithContext(ctx), key)
}

func (r *progressRepository) GetOrCreate(ctx context.Context, initial models.StudentQuizProgress) (models.StudentQuizProgress, error) {
	db := r.db.WithContext(ctx)
	if err := ensureProgress(db, initial); err != nil {
		return models.StudentQuizProgress{}, err
	}
	return findProgress(db, ProgressKey{StudentID: initial.StudentID, QuizID: initial.QuizID})
}

func (r *progressRepository) Mutate(ctx context.Context, key ProgressKey, initial *models.StudentQuizProgress, fn ProgressMutation) (models.StudentQuizProgress, error) {
	var result models.StudentQuizProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if initial != nil {
			if err := ensureProgress(tx, *initial); err != nil {
				return err
			}
		}

		progress, err := findProgress(tx, key)
		if err != nil {
			return err
		}

		expected := progress.Version
		if err := fn(&progressTx{db: tx}, &progress); err != nil {
			return err
		}

		res := tx.Model(&models.StudentQuizProgress{}).
			Where("id = ? AND version = ?", progress.ID, expected).
			Updates(map[string]interface{}{
				"current_attempt":       progress.CurrentAttempt,
				"max_attempts":          progress.MaxAttempts,
				"failed_attempts":       progress.FailedAttempts,
				"last_attempt_passed":   progress.LastAttemptPassed,
				"assistance_required":   progress.AssistanceRequired,
				"level1_completed":      progress.Level1Completed,
				"level2_completed":      progress.Level2Completed,
				"level3_completed":      progress.Level3Completed,
				"must_retake_main_quiz": progress.MustRetakeMainQuiz,
				"cycle":                 progress.Cycle,
				"version":               expected + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProgressVersionConflict
		}

		progress.Version = expected + 1
		result = progress
		return nil
	})
	if err != nil {
		return models.StudentQuizProgress{}, err
	}

	return result, nil
}

func findProgress(db *gorm.DB, key ProgressKey) (models.StudentQuizProgress, error) {
	var progress models.StudentQuizProgress
	if err := db.Where("student_id = ? AND quiz_id = ?", key.StudentID, key.QuizID).
		First(&progress).Error; err != nil {
		return models.StudentQuizProgress{}, err
	}
	return progress, nil
}

// ensureProgress inserts the initial row unless one already exists. The
// unique index on (student_id, quiz_id) keeps concurrent callers to one row.
func ensureProgress(db *gorm.DB, initial models.StudentQuizProgress) error {
	row := initial
	row.ID = 0
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

type progressTx struct {
	db *gorm.DB
}

func (t *progressTx) CreateQuizSubmission(submission *models.QuizSubmission) error {
	return t.db.Create(submission).Error
}

func (t *progressTx) CreateLevel1Submission(submission *models.AssistanceLevel1Submission) error {
	return t.db.Create(submission).Error
}

func (t *progressTx) SaveLevel2Submission(submission *models.AssistanceLevel2Submission) error {
	if submission.ID == 0 {
		return t.db.Create(submission).Error
	}
	return t.db.Omit(clause.Associations).Save(submission).Error
}

func (t *progressTx) FindLevel2Submission(id uint) (models.AssistanceLevel2Submission, error) {
	var submission models.AssistanceLevel2Submission
	if err := t.db.Preload("Answers").First(&submission, id).Error; err != nil {
		return models.AssistanceLevel2Submission{}, err
	}
	return submission, nil
}

func (t *progressTx) HasPendingLevel2Submission(studentID, quizID uint, cycle uint) (bool, error) {
	var count int64
	err := t.db.Model(&models.AssistanceLevel2Submission{}).
		Where("student_id = ? AND quiz_id = ? AND cycle = ? AND status = ?", studentID, quizID, cycle, models.Level2StatusPending).
		Count(&count).Error
	return count > 0, err
}

func (t *progressTx) CreateActivity(entry *models.ActivityLog) error {
	return t.db.Create(entry).Error
}
