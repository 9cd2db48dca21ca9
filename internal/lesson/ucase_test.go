package lesson

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/formation"
	inmemdb "github.com/pot-code/progress-engine/internal/infrastructure/inmem"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
	"github.com/pot-code/progress-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu        sync.Mutex
	completed []string
	err       error
}

func (rl *recordingListener) OnFormationComplete(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.completed = append(rl.completed, userID+"/"+formationID)
	return nil, rl.err
}

func (rl *recordingListener) OnQuizPassed(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	return nil, nil
}

// tickingClock every call is one second after the previous one
func tickingClock(t *testing.T) {
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	t.Cleanup(func() { nowFunc = time.Now })
}

func newUseCase(t *testing.T) (*LessonProgressUseCaseImpl, *inmemdb.DB, *recordingListener) {
	tickingClock(t)
	db := inmemdb.NewDB()
	db.PutFormation(testutil.NewFormation("f1", 2))
	db.PutFormation(testutil.NewFormation("f2", 1))

	catalog := inmemdb.NewCatalogRepository(db)
	progress := inmemdb.NewLessonProgressRepository(db)
	listener := new(recordingListener)
	uc := NewLessonProgressUseCase(progress, catalog,
		formation.NewFormationProgressUseCase(catalog, progress), listener, validate.NewValidator())
	return uc, db, listener
}

func TestRecordProgress_CompletesFormation(t *testing.T) {
	uc, _, listener := newUseCase(t)
	ctx := testutil.Context(t)

	first, err := uc.RecordProgress(ctx, "u1", "f1-l1", "f1", &domain.ProgressObservation{Percentage: floatPtr(100)})
	require.NoError(t, err)
	assert.True(t, first.CompletedNow)
	assert.Equal(t, 1, first.Formation.CompletedLessons)
	assert.False(t, first.Formation.Complete)
	assert.Empty(t, listener.completed)

	second, err := uc.RecordProgress(ctx, "u1", "f1-l2", "", &domain.ProgressObservation{Percentage: floatPtr(100)})
	require.NoError(t, err)
	assert.True(t, second.CompletedNow)
	assert.Equal(t, 2, second.Formation.CompletedLessons)
	assert.Equal(t, 2, second.Formation.TotalLessons)
	assert.True(t, second.Formation.Complete)
	assert.Equal(t, []string{"u1/f1"}, listener.completed)

	// a repeated report does not re-complete, the coordinator sees the formation again
	again, err := uc.RecordProgress(ctx, "u1", "f1-l2", "f1", &domain.ProgressObservation{Percentage: floatPtr(100)})
	require.NoError(t, err)
	assert.False(t, again.CompletedNow)
	assert.Equal(t, *second.Progress.CompletedAt, *again.Progress.CompletedAt)
	assert.Equal(t, []string{"u1/f1", "u1/f1"}, listener.completed)
}

func TestRecordProgress_Monotonic(t *testing.T) {
	uc, _, _ := newUseCase(t)
	ctx := testutil.Context(t)

	_, err := uc.RecordProgress(ctx, "u1", "f1-l1", "f1", &domain.ProgressObservation{Percentage: floatPtr(70), ElapsedTime: int64Ptr(300)})
	require.NoError(t, err)

	lower, err := uc.RecordProgress(ctx, "u1", "f1-l1", "f1", &domain.ProgressObservation{Percentage: floatPtr(20), ElapsedTime: int64Ptr(120)})
	require.NoError(t, err)
	assert.Equal(t, 70.0, lower.Progress.Percentage)
	assert.Equal(t, int64(300), lower.Progress.AccumulatedTime)
	assert.False(t, lower.Progress.Completed)

	done, err := uc.RecordProgress(ctx, "u1", "f1-l1", "f1", &domain.ProgressObservation{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, done.Progress.Completed)
	assert.Equal(t, 100.0, done.Progress.Percentage)

	// completion is sticky
	after, err := uc.RecordProgress(ctx, "u1", "f1-l1", "f1", &domain.ProgressObservation{Percentage: floatPtr(10), Completed: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, after.Progress.Completed)
	assert.Equal(t, 100.0, after.Progress.Percentage)
	assert.True(t, after.Progress.LastAccessedAt.After(done.Progress.LastAccessedAt))
}

func TestRecordProgress_Errors(t *testing.T) {
	uc, db, _ := newUseCase(t)
	ctx := testutil.Context(t)

	tests := []struct {
		name     string
		lessonID string
		formID   string
		obs      *domain.ProgressObservation
		check    func(t *testing.T, err error)
	}{
		{
			name: "percentage above range", lessonID: "f1-l1",
			obs: &domain.ProgressObservation{Percentage: floatPtr(101)},
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				if assert.True(t, errors.As(err, &ve)) {
					assert.Equal(t, "percentage", ve.Fields[0].Domain)
				}
			},
		},
		{
			name: "negative elapsed time", lessonID: "f1-l1",
			obs: &domain.ProgressObservation{ElapsedTime: int64Ptr(-5)},
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "missing lesson id", lessonID: "", obs: &domain.ProgressObservation{Percentage: floatPtr(10)},
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				if assert.True(t, errors.As(err, &ve)) {
					assert.Equal(t, "lesson_id", ve.Fields[0].Domain)
				}
			},
		},
		{
			name: "unknown lesson", lessonID: "nope", obs: &domain.ProgressObservation{},
			check: func(t *testing.T, err error) { assert.True(t, domain.IsNotFound(err)) },
		},
		{
			name: "lesson of another formation", lessonID: "f1-l1", formID: "f2", obs: &domain.ProgressObservation{},
			check: func(t *testing.T, err error) { assert.True(t, domain.IsNotFound(err)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.RecordProgress(ctx, "u1", tt.lessonID, tt.formID, tt.obs)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	// nothing was written
	records, err := inmemdb.NewLessonProgressRepository(db).ListLessonProgressByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordProgress_ListenerFailureIsNotFatal(t *testing.T) {
	uc, _, listener := newUseCase(t)
	listener.err = errors.New("certificate store down")
	ctx := testutil.Context(t)

	result, err := uc.RecordProgress(ctx, "u1", "f2-l1", "f2", &domain.ProgressObservation{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, result.Formation.Complete)
	assert.Equal(t, []string{"u1/f2"}, listener.completed)

	// the next report on the complete formation retries the coordinator
	listener.err = nil
	retried, err := uc.RecordProgress(ctx, "u1", "f2-l1", "f2", &domain.ProgressObservation{ElapsedTime: int64Ptr(30)})
	require.NoError(t, err)
	assert.False(t, retried.CompletedNow)
	assert.Equal(t, []string{"u1/f2", "u1/f2"}, listener.completed)
}

func TestGetUserLessonProgress(t *testing.T) {
	uc, _, _ := newUseCase(t)
	ctx := testutil.Context(t)

	_, err := uc.RecordProgress(ctx, "u1", "f1-l1", "", &domain.ProgressObservation{Percentage: floatPtr(10)})
	require.NoError(t, err)
	_, err = uc.RecordProgress(ctx, "u1", "f2-l1", "", &domain.ProgressObservation{Percentage: floatPtr(20)})
	require.NoError(t, err)

	records, err := uc.GetUserLessonProgress(ctx, "u1")
	require.NoError(t, err)
	if assert.Len(t, records, 2) {
		assert.Equal(t, "f2-l1", records[0].LessonID, "most recent first")
	}

	none, err := uc.GetUserLessonProgress(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
