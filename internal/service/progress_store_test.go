package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quiz-api/internal/lock"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

type noopTx struct{}

func (noopTx) CreateQuizSubmission(*models.QuizSubmission) error             { return nil }
func (noopTx) CreateLevel1Submission(*models.AssistanceLevel1Submission) error { return nil }
func (noopTx) SaveLevel2Submission(*models.AssistanceLevel2Submission) error   { return nil }
func (noopTx) FindLevel2Submission(uint) (models.AssistanceLevel2Submission, error) {
	return models.AssistanceLevel2Submission{}, nil
}
func (noopTx) HasPendingLevel2Submission(uint, uint, uint) (bool, error) { return false, nil }
func (noopTx) CreateActivity(*models.ActivityLog) error                  { return nil }

// conflictingRepo reports a version conflict for the first n writes.
type conflictingRepo struct {
	repository.ProgressRepository
	conflicts int
	calls     int
}

func (r *conflictingRepo) Mutate(_ context.Context, key repository.ProgressKey, _ *models.StudentQuizProgress, fn repository.ProgressMutation) (models.StudentQuizProgress, error) {
	r.calls++
	progress := models.NewStudentQuizProgress(key.StudentID, key.QuizID, 4)
	if err := fn(noopTx{}, &progress); err != nil {
		return models.StudentQuizProgress{}, err
	}
	if r.calls <= r.conflicts {
		return models.StudentQuizProgress{}, repository.ErrProgressVersionConflict
	}
	progress.Version++
	return progress, nil
}

func failAttempt(_ repository.ProgressTx, progress *models.StudentQuizProgress) error {
	progress.CurrentAttempt++
	progress.FailedAttempts++
	return nil
}

func TestProgressStoreRetriesConflictOnce(t *testing.T) {
	repo := &conflictingRepo{conflicts: 1}
	events := &recordingPublisher{}
	store := NewProgressStore(repo, nil, ProgressStoreOptions{Events: events}, testLogger())

	progress, err := store.Update(context.Background(), ProgressUpdate{StudentID: 1, QuizID: 2, Reason: ReasonAttemptGraded}, failAttempt)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
	require.Equal(t, 1, progress.CurrentAttempt)
	require.Len(t, events.events, 1)
}

func TestProgressStoreSurfacesRepeatedConflict(t *testing.T) {
	repo := &conflictingRepo{conflicts: 5}
	events := &recordingPublisher{}
	store := NewProgressStore(repo, nil, ProgressStoreOptions{Events: events}, testLogger())

	_, err := store.Update(context.Background(), ProgressUpdate{StudentID: 1, QuizID: 2}, failAttempt)
	require.ErrorIs(t, err, ErrProgressConflict)
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 2, repo.calls)
	require.Empty(t, events.events)
}

func TestProgressStoreMapsUnknownErrorsToStorage(t *testing.T) {
	store := NewProgressStore(&conflictingRepo{}, nil, ProgressStoreOptions{}, testLogger())

	_, err := store.Update(context.Background(), ProgressUpdate{StudentID: 1, QuizID: 2}, func(repository.ProgressTx, *models.StudentQuizProgress) error {
		return errors.New("disk full")
	})
	require.ErrorIs(t, err, ErrStorage)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "update progress", storageErr.Op)
}

type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, lock.ErrNotAcquired
}

func TestProgressStoreReportsBusyLock(t *testing.T) {
	store := NewProgressStore(&conflictingRepo{}, heldLocker{}, ProgressStoreOptions{Timeout: 20 * time.Millisecond}, testLogger())

	_, err := store.Update(context.Background(), ProgressUpdate{StudentID: 1, QuizID: 2}, failAttempt)
	require.ErrorIs(t, err, ErrProgressBusy)
}

func TestProgressStoreSerializesConcurrentAttempts(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	const workers = 2
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	numbers := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.attempts.Evaluate(ctx, studentID, f.quiz.ID, scoreOf(20))
			if err != nil {
				errs <- err
				return
			}
			numbers <- result.Submission.AttemptNumber
		}()
	}
	wg.Wait()
	close(errs)
	close(numbers)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := map[int]bool{}
	for n := range numbers {
		seen[n] = true
	}
	require.Equal(t, map[int]bool{1: true, 2: true}, seen)

	progress, err := f.store.Get(ctx, studentID, f.quiz.ID)
	require.NoError(t, err)
	require.Equal(t, 2, progress.CurrentAttempt)
	require.Equal(t, 2, progress.FailedAttempts)
	require.Equal(t, uint(2), progress.Version)
}

func TestProgressStoreWritesThroughCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	db := openTestDB(t)
	repo := repository.NewProgressRepository(db)
	store := NewProgressStore(repo, lock.NewRedisLocker(client, "lock:", time.Second, testLogger()), ProgressStoreOptions{
		Cache:    client,
		CacheTTL: time.Minute,
	}, testLogger())
	ctx := context.Background()

	updated, err := store.Update(ctx, ProgressUpdate{StudentID: 7, QuizID: 3, CreateIfMissing: true, MaxAttempts: 4}, failAttempt)
	require.NoError(t, err)
	require.True(t, server.Exists(progressCacheKey(7, 3)))

	require.NoError(t, db.Model(&models.StudentQuizProgress{}).Where("id = ?", updated.ID).Update("failed_attempts", 3).Error)

	cached, err := store.Get(ctx, 7, 3)
	require.NoError(t, err)
	require.Equal(t, 1, cached.FailedAttempts)

	server.FastForward(2 * time.Minute)
	fresh, err := store.Get(ctx, 7, 3)
	require.NoError(t, err)
	require.Equal(t, 3, fresh.FailedAttempts)
}

func TestProgressStoreGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	store := NewProgressStore(repository.NewProgressRepository(db), nil, ProgressStoreOptions{}, testLogger())

	first, err := store.GetOrCreate(context.Background(), 4, 5, 0)
	require.NoError(t, err)
	require.Equal(t, models.DefaultMaxAttempts, first.MaxAttempts)

	second, err := store.GetOrCreate(context.Background(), 4, 5, 9)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.DefaultMaxAttempts, second.MaxAttempts)
}

func TestProgressStoreReadFillKeepsCommittedEntry(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := openTestDB(t)
	store := NewProgressStore(repository.NewProgressRepository(db), nil, ProgressStoreOptions{Cache: client, CacheTTL: time.Minute}, testLogger())
	ctx := context.Background()

	committed, err := store.Update(ctx, ProgressUpdate{StudentID: 8, QuizID: 3, CreateIfMissing: true, MaxAttempts: 4}, failAttempt)
	require.NoError(t, err)

	stale := committed
	stale.FailedAttempts = 0
	stale.Version = 0
	store.(*progressStore).fillCache(ctx, stale)

	cached, err := store.Get(ctx, 8, 3)
	require.NoError(t, err)
	require.Equal(t, committed.FailedAttempts, cached.FailedAttempts)
	require.Equal(t, committed.Version, cached.Version)
}
