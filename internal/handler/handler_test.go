package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
	"github.com/noah-isme/gema-quiz-api/internal/service"
)

const (
	testSecret        = "handler-secret"
	testTeacherID     = 10
	testStudentID     = 100
	testOtherTeacher  = 11
	testOutsiderID    = 200
	testQuizID        = 1
	testLevel2Subject = "Jelaskan fungsi elemen <head>."
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	class := models.Class{ID: 1, TeacherID: testTeacherID, Name: "XI RPL 2"}
	require.NoError(t, db.Create(&class).Error)
	require.NoError(t, db.Create(&models.Student{ID: testStudentID, Name: "Rani", Email: "rani@example.com"}).Error)
	require.NoError(t, db.Create(&models.ClassStudent{ClassID: class.ID, StudentID: testStudentID}).Error)
	require.NoError(t, db.Create(&models.Quiz{ID: testQuizID, ClassID: class.ID, Title: "CSS Dasar", PassingScore: 70, MaxAttempts: 4}).Error)
	require.NoError(t, db.Create(&models.AssistanceLevel1{QuizID: testQuizID, Title: "Review selector", Questions: []models.AssistanceLevel1Question{
		{ID: 1, Prompt: "Selector # memilih id", CorrectAnswer: true},
	}}).Error)
	require.NoError(t, db.Create(&models.AssistanceLevel2{QuizID: testQuizID, Title: "Esai", Questions: []models.AssistanceLevel2Question{
		{ID: 1, Prompt: testLevel2Subject},
	}}).Error)

	logger := zerolog.New(io.Discard)
	validate := validator.New()
	policy := service.DefaultProgressPolicy()
	store := service.NewProgressStore(repository.NewProgressRepository(db), nil, service.ProgressStoreOptions{}, logger)
	quizzes := repository.NewQuizRepository(db)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: logger})
	group := app.Group("/api/v2/quizzes", middleware.JWTProtected(testSecret))
	NewQuizAttemptHandler(service.NewQuizAttemptService(store, quizzes, repository.NewQuizSubmissionRepository(db), policy, validate, logger), nil, logger).Register(group)
	NewAssistanceHandler(service.NewAssistanceService(store, quizzes, repository.NewAssistanceRepository(db), policy, validate, logger), logger).Register(group)
	NewOverrideHandler(service.NewOverrideService(store, quizzes, policy, logger), validate, logger).Register(group)

	return &testEnv{app: app, db: db}
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": fmt.Sprint(userID), "role": role}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func attemptPath(suffix string) string {
	return fmt.Sprintf("/api/v2/quizzes/%d%s", testQuizID, suffix)
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	student := token(t, testStudentID, "student")

	for i := 0; i < 4; i++ {
		status, _ := env.do(t, http.MethodPost, attemptPath("/attempts"), student, map[string]interface{}{"score": 35})
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, body := env.do(t, http.MethodGet, attemptPath("/progress"), student, nil)
	require.Equal(t, fiber.StatusOK, status)
	var progress struct {
		AssistanceRequired string `json:"assistance_required"`
		FailedAttempts     int    `json:"failed_attempts"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &progress))
	require.Equal(t, "LEVEL1", progress.AssistanceRequired)
	require.Equal(t, 4, progress.FailedAttempts)

	status, body = env.do(t, http.MethodPost, attemptPath("/attempts"), student, map[string]interface{}{"score": 95})
	require.Equal(t, fiber.StatusConflict, status)
	require.False(t, body.Success)

	status, _ = env.do(t, http.MethodGet, attemptPath("/assistance"), student, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = env.do(t, http.MethodPost, attemptPath("/assistance/level1"), student, map[string]interface{}{"answers": map[string]bool{"1": true}})
	require.Equal(t, fiber.StatusCreated, status)
	var level1 struct {
		Passed    bool   `json:"passed"`
		NextLevel string `json:"next_level"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &level1))
	require.True(t, level1.Passed)
	require.Equal(t, "LEVEL2", level1.NextLevel)

	status, body = env.do(t, http.MethodPost, attemptPath("/assistance/level2"), student, map[string]interface{}{
		"answers": []map[string]interface{}{{"question_id": 1, "answer": "Metadata dokumen"}},
	})
	require.Equal(t, fiber.StatusCreated, status)
	var submission struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &submission))

	teacher := token(t, testTeacherID, "teacher")
	status, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v2/quizzes/assistance/level2/submissions/%d/grade", submission.ID), teacher, map[string]string{"status": "PASSED"})
	require.Equal(t, fiber.StatusOK, status)

	status, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/quizzes/%d/students/%d/level3", testQuizID, testStudentID), teacher, map[string]bool{"granted": true})
	require.Equal(t, fiber.StatusOK, status)
	var grant struct {
		MustRetake bool   `json:"must_retake"`
		NextLevel  string `json:"next_level"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &grant))
	require.True(t, grant.MustRetake)
	require.Equal(t, "NONE", grant.NextLevel)

	status, _ = env.do(t, http.MethodPost, attemptPath("/attempts"), student, map[string]interface{}{"score": 90})
	require.Equal(t, fiber.StatusCreated, status)

	status, body = env.do(t, http.MethodGet, attemptPath(fmt.Sprintf("/attempts?student_id=%d", testStudentID)), teacher, nil)
	require.Equal(t, fiber.StatusOK, status)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &history))
	require.Len(t, history, 5)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	student := token(t, testStudentID, "student")
	teacher := token(t, testTeacherID, "teacher")
	intruder := token(t, testOtherTeacher, "teacher")

	status, body := env.do(t, http.MethodPost, attemptPath("/attempts"), student, map[string]interface{}{"score": 150})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "lte", body.Details["Score"])

	status, _ = env.do(t, http.MethodPost, attemptPath("/attempts"), token(t, testOutsiderID, "student"), map[string]interface{}{"score": 50})
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, "/api/v2/quizzes/999/attempts", student, map[string]interface{}{"score": 50})
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, attemptPath("/attempts"), teacher, map[string]interface{}{"score": 50})
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/quizzes/%d/students/%d/reset", testQuizID, testStudentID), teacher, nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/quizzes/%d/students/%d/reset", testQuizID, testStudentID), intruder, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/quizzes/%d/students/%d/level3", testQuizID, testStudentID), teacher, map[string]string{})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, attemptPath("/progress"), teacher, nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, attemptPath("/assistance/level1"), student, map[string]interface{}{"answers": map[string]bool{"1": true}})
	require.Equal(t, fiber.StatusConflict, status)
}

func TestResetOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	student := token(t, testStudentID, "student")
	teacher := token(t, testTeacherID, "teacher")

	for i := 0; i < 4; i++ {
		env.do(t, http.MethodPost, attemptPath("/attempts"), student, map[string]interface{}{"correct_answers": 1, "total_questions": 10})
	}

	status, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/quizzes/%d/students/%d/reset", testQuizID, testStudentID), teacher, nil)
	require.Equal(t, fiber.StatusOK, status)
	var progress map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &progress))
	require.Equal(t, "NONE", progress["assistance_required"])
	require.Equal(t, float64(0), progress["current_attempt"])
	require.Equal(t, false, progress["level1_completed"])

	var rows int64
	require.NoError(t, env.db.Model(&models.QuizSubmission{}).Count(&rows).Error)
	require.EqualValues(t, 4, rows)
}
