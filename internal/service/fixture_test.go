package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

const (
	teacherID       uint = 10
	otherTeacherID  uint = 11
	studentID       uint = 100
	outsiderStudent uint = 200
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type progressFixture struct {
	db         *gorm.DB
	quiz       models.Quiz
	level1     models.AssistanceLevel1
	level2     models.AssistanceLevel2
	store      ProgressStore
	attempts   QuizAttemptService
	assistance AssistanceService
	overrides  OverrideService
	events     *recordingPublisher
}

type recordingPublisher struct {
	events []ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event ProgressEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) last() ProgressEvent {
	if len(p.events) == 0 {
		return ProgressEvent{}
	}
	return p.events[len(p.events)-1]
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// fixtureOptions lets a test put a status cache in front of the store or
// wrap the progress repository.
type fixtureOptions struct {
	cache    *redis.Client
	wrapRepo func(repository.ProgressRepository) repository.ProgressRepository
}

func newProgressFixture(t *testing.T) *progressFixture {
	return newProgressFixtureWith(t, fixtureOptions{})
}

func newProgressFixtureWith(t *testing.T, opts fixtureOptions) *progressFixture {
	t.Helper()
	db := openTestDB(t)

	class := models.Class{TeacherID: teacherID, Name: "XI RPL 1"}
	require.NoError(t, db.Create(&class).Error)
	require.NoError(t, db.Create(&models.Student{ID: studentID, Name: "Rani", Email: "rani@example.com"}).Error)
	require.NoError(t, db.Create(&models.Student{ID: outsiderStudent, Name: "Bayu", Email: "bayu@example.com"}).Error)
	require.NoError(t, db.Create(&models.ClassStudent{ClassID: class.ID, StudentID: studentID}).Error)

	quiz := models.Quiz{ClassID: class.ID, Title: "HTML Dasar", PassingScore: 70, MaxAttempts: 4}
	require.NoError(t, db.Create(&quiz).Error)

	level1 := models.AssistanceLevel1{QuizID: quiz.ID, Title: "Review tag HTML", Questions: []models.AssistanceLevel1Question{
		{Prompt: "<p> membuat paragraf", CorrectAnswer: true},
		{Prompt: "<br> membutuhkan tag penutup", CorrectAnswer: false},
	}}
	require.NoError(t, db.Create(&level1).Error)

	level2 := models.AssistanceLevel2{QuizID: quiz.ID, Title: "Esai struktur dokumen", Questions: []models.AssistanceLevel2Question{
		{Prompt: "Jelaskan fungsi elemen <head>."},
	}}
	require.NoError(t, db.Create(&level2).Error)
	require.NoError(t, db.Create(&models.AssistanceLevel3{QuizID: quiz.ID, Title: "Modul HTML", MaterialURL: "https://cdn.example.com/html.pdf"}).Error)

	events := &recordingPublisher{}
	progressRepo := repository.NewProgressRepository(db)
	if opts.wrapRepo != nil {
		progressRepo = opts.wrapRepo(progressRepo)
	}
	store := NewProgressStore(progressRepo, nil, ProgressStoreOptions{Events: events, Cache: opts.cache, CacheTTL: time.Minute}, testLogger())
	quizzes := repository.NewQuizRepository(db)
	validate := validator.New()
	policy := DefaultProgressPolicy()

	return &progressFixture{
		db:         db,
		quiz:       quiz,
		level1:     level1,
		level2:     level2,
		store:      store,
		attempts:   NewQuizAttemptService(store, quizzes, repository.NewQuizSubmissionRepository(db), policy, validate, testLogger()),
		assistance: NewAssistanceService(store, quizzes, repository.NewAssistanceRepository(db), policy, validate, testLogger()),
		overrides:  NewOverrideService(store, quizzes, policy, testLogger()),
		events:     events,
	}
}

func scoreOf(value float64) dto.QuizAttemptRequest {
	return dto.QuizAttemptRequest{Score: &value}
}

func teacher() Actor { return Actor{ID: teacherID, Role: RoleTeacher} }

func student() Actor { return Actor{ID: studentID, Role: RoleStudent} }

func (f *progressFixture) attempt(t *testing.T, score float64) dto.QuizAttemptResult {
	t.Helper()
	result, err := f.attempts.Evaluate(context.Background(), studentID, f.quiz.ID, scoreOf(score))
	require.NoError(t, err)
	return result
}

func (f *progressFixture) failTimes(t *testing.T, n int) dto.QuizAttemptResult {
	t.Helper()
	var result dto.QuizAttemptResult
	for i := 0; i < n; i++ {
		result = f.attempt(t, 40)
	}
	return result
}

func (f *progressFixture) level1Answers(correct bool) dto.Level1SubmitRequest {
	answers := make(map[uint]bool, len(f.level1.Questions))
	for _, question := range f.level1.Questions {
		answers[question.ID] = question.CorrectAnswer == correct
	}
	return dto.Level1SubmitRequest{Answers: answers}
}

func (f *progressFixture) submitLevel2(t *testing.T) dto.Level2SubmissionResponse {
	t.Helper()
	submission, err := f.assistance.SubmitLevel2(context.Background(), studentID, f.quiz.ID, dto.Level2SubmitRequest{
		Answers: []dto.Level2AnswerInput{{QuestionID: f.level2.Questions[0].ID, Answer: "Berisi metadata halaman."}},
	})
	require.NoError(t, err)
	return submission
}

// reachLevel3 walks the student through the first two levels.
func (f *progressFixture) reachLevel3(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.failTimes(t, 4)
	_, err := f.assistance.SubmitLevel1(ctx, studentID, f.quiz.ID, f.level1Answers(true))
	require.NoError(t, err)
	submission := f.submitLevel2(t)
	_, err = f.assistance.GradeLevel2(ctx, teacher(), submission.ID, dto.Level2GradeRequest{Status: models.Level2StatusPassed})
	require.NoError(t, err)
}
