package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/lock"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// ProgressUpdate describes one transition of a progress record.
type ProgressUpdate struct {
	StudentID       uint
	QuizID          uint
	CreateIfMissing bool
	MaxAttempts     int
	Reason          string
}

// ProgressStore owns StudentQuizProgress. Every write runs under a per-key
// lock and a version check, re-derives the assistance level, and commits
// together with whatever the mutation wrote through the ProgressTx.
type ProgressStore interface {
	Get(ctx context.Context, studentID, quizID uint) (models.StudentQuizProgress, error)
	GetOrCreate(ctx context.Context, studentID, quizID uint, maxAttempts int) (models.StudentQuizProgress, error)
	Update(ctx context.Context, update ProgressUpdate, mutate repository.ProgressMutation) (models.StudentQuizProgress, error)
}

// ProgressStoreOptions carries the optional collaborators of the store.
type ProgressStoreOptions struct {
	Cache    *redis.Client
	CacheTTL time.Duration
	Events   EventPublisher
	Timeout  time.Duration
}

type progressStore struct {
	repo     repository.ProgressRepository
	locker   lock.Locker
	cache    *redis.Client
	cacheTTL time.Duration
	events   EventPublisher
	timeout  time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewProgressStore builds the progress store.
func NewProgressStore(repo repository.ProgressRepository, locker lock.Locker, opts ProgressStoreOptions, logger zerolog.Logger) ProgressStore {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	events := opts.Events
	if events == nil {
		events = noopPublisher{}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &progressStore{
		repo:     repo,
		locker:   locker,
		cache:    opts.Cache,
		cacheTTL: ttl,
		events:   events,
		timeout:  opts.Timeout,
		logger:   logger.With().Str("component", "progress_store").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/progress"),
		now:      time.Now,
	}
}

// cacheWriteTimeout bounds the post-commit cache write, which must outlive
// the request context.
const cacheWriteTimeout = 2 * time.Second

func progressCacheKey(studentID, quizID uint) string {
	return fmt.Sprintf("progress:student:%d:quiz:%d", studentID, quizID)
}

func (s *progressStore) Get(ctx context.Context, studentID, quizID uint) (models.StudentQuizProgress, error) {
	if studentID == 0 || quizID == 0 {
		return models.StudentQuizProgress{}, ErrMissingIdentifier
	}

	cacheKey := progressCacheKey(studentID, quizID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var progress models.StudentQuizProgress
			if unmarshalErr := json.Unmarshal([]byte(cached), &progress); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Uint("quiz_id", quizID).Msg("progress cache hit")
				return progress, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	progress, err := s.repo.Find(ctx, repository.ProgressKey{StudentID: studentID, QuizID: quizID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.StudentQuizProgress{}, ErrProgressNotFound
		}
		return models.StudentQuizProgress{}, storageError("load progress", err)
	}

	s.fillCache(ctx, progress)
	return progress, nil
}

func (s *progressStore) GetOrCreate(ctx context.Context, studentID, quizID uint, maxAttempts int) (models.StudentQuizProgress, error) {
	if studentID == 0 || quizID == 0 {
		return models.StudentQuizProgress{}, ErrMissingIdentifier
	}

	progress, err := s.repo.GetOrCreate(ctx, models.NewStudentQuizProgress(studentID, quizID, maxAttempts))
	if err != nil {
		return models.StudentQuizProgress{}, storageError("create progress", err)
	}
	return progress, nil
}

func (s *progressStore) Update(ctx context.Context, update ProgressUpdate, mutate repository.ProgressMutation) (models.StudentQuizProgress, error) {
	if update.StudentID == 0 || update.QuizID == 0 {
		return models.StudentQuizProgress{}, ErrMissingIdentifier
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "progress.update", trace.WithAttributes(
		attribute.Int64("progress.student_id", int64(update.StudentID)),
		attribute.Int64("progress.quiz_id", int64(update.QuizID)),
		attribute.String("progress.reason", update.Reason),
	))
	defer span.End()

	key := repository.ProgressKey{StudentID: update.StudentID, QuizID: update.QuizID}
	release, err := s.locker.Acquire(ctx, key.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock_failed")
		if errors.Is(err, lock.ErrNotAcquired) {
			return models.StudentQuizProgress{}, ErrProgressBusy
		}
		return models.StudentQuizProgress{}, storageError("lock progress", err)
	}
	defer release()

	var initial *models.StudentQuizProgress
	if update.CreateIfMissing {
		fresh := models.NewStudentQuizProgress(update.StudentID, update.QuizID, update.MaxAttempts)
		initial = &fresh
	}

	var previous models.AssistanceLevel
	transition := func(tx repository.ProgressTx, progress *models.StudentQuizProgress) error {
		previous = progress.AssistanceRequired
		if err := mutate(tx, progress); err != nil {
			return err
		}
		applyGate(progress)
		return nil
	}

	var progress models.StudentQuizProgress
	for attempt := 1; ; attempt++ {
		progress, err = s.repo.Mutate(ctx, key, initial, transition)
		if !errors.Is(err, repository.ErrProgressVersionConflict) {
			break
		}
		if attempt == 2 {
			observability.ProgressConflicts().WithLabelValues("surfaced").Inc()
			span.SetStatus(codes.Error, "version_conflict")
			return models.StudentQuizProgress{}, ErrProgressConflict
		}
		observability.ProgressConflicts().WithLabelValues("retried").Inc()
		s.logger.Warn().Str("key", key.String()).Msg("progress version conflict, retrying with fresh read")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update_failed")
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return models.StudentQuizProgress{}, ErrProgressNotFound
		case isCategorized(err):
			return models.StudentQuizProgress{}, err
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return models.StudentQuizProgress{}, ErrProgressTimeout
		default:
			return models.StudentQuizProgress{}, storageError("update progress", err)
		}
	}

	span.SetAttributes(
		attribute.String("progress.assistance_required", string(progress.AssistanceRequired)),
		attribute.Int("progress.current_attempt", progress.CurrentAttempt),
	)
	s.afterCommit(ctx, update.Reason, previous, progress)
	return progress, nil
}

func (s *progressStore) afterCommit(ctx context.Context, reason string, previous models.AssistanceLevel, progress models.StudentQuizProgress) {
	// The transaction is committed; a cancelled caller must not leave the
	// previous record in the cache or swallow the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()

	s.storeCache(ctx, progress)

	if previous != progress.AssistanceRequired {
		observability.AssistanceTransitions().WithLabelValues(string(previous), string(progress.AssistanceRequired)).Inc()
		s.logger.Info().
			Uint("student_id", progress.StudentID).
			Uint("quiz_id", progress.QuizID).
			Str("from", string(previous)).
			Str("to", string(progress.AssistanceRequired)).
			Msg("assistance level changed")
	}

	event := ProgressEvent{
		Reason:             reason,
		StudentID:          progress.StudentID,
		QuizID:             progress.QuizID,
		PreviousLevel:      previous,
		AssistanceRequired: progress.AssistanceRequired,
		MustRetakeMainQuiz: progress.MustRetakeMainQuiz,
		CurrentAttempt:     progress.CurrentAttempt,
		FailedAttempts:     progress.FailedAttempts,
		Cycle:              progress.Cycle,
		OccurredAt:         s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("reason", reason).Msg("failed to publish progress event")
	}
}

// storeCache writes a committed record. When the write fails the key is
// dropped so the next read goes to the database.
func (s *progressStore) storeCache(ctx context.Context, progress models.StudentQuizProgress) {
	if s.cache == nil {
		return
	}
	key := progressCacheKey(progress.StudentID, progress.QuizID)
	payload, err := json.Marshal(progress)
	if err == nil {
		err = s.cache.Set(ctx, key, payload, s.cacheTTL).Err()
	}
	if err == nil {
		return
	}
	s.logger.Warn().Err(err).Str("key", key).Msg("failed to store progress cache")
	if delErr := s.cache.Del(ctx, key).Err(); delErr != nil {
		s.logger.Error().Err(delErr).Str("key", key).Msg("failed to evict progress cache")
	}
}

// fillCache populates the cache after a read. It never replaces an entry, so
// a read that raced a commit cannot overwrite the committed record.
func (s *progressStore) fillCache(ctx context.Context, progress models.StudentQuizProgress) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := s.cache.SetNX(ctx, progressCacheKey(progress.StudentID, progress.QuizID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to fill progress cache")
	}
}
