package lesson

import (
	"sync"
	"testing"
	"time"

	"github.com/pot-code/progress-engine/internal/catalog"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/formation"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
	"github.com/pot-code/progress-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedClock tickingClock safe for concurrent callers
func lockedClock(t *testing.T) {
	var mu sync.Mutex
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
	t.Cleanup(func() { nowFunc = time.Now })
}

func TestRecordProgress_Concurrent(t *testing.T) {
	lockedClock(t)
	conn := testutil.OpenDB(t)
	testutil.SeedFormation(t, conn, testutil.NewFormation("f1", 1))

	catalogRepo := catalog.NewCatalogRepository(conn)
	progress := NewLessonProgressRepository(conn)
	listener := new(recordingListener)
	uc := NewLessonProgressUseCase(progress, catalogRepo,
		formation.NewFormationProgressUseCase(catalogRepo, progress), listener, validate.NewValidator())
	ctx := testutil.Context(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*domain.ProgressRecordResult, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obs := &domain.ProgressObservation{Percentage: floatPtr(float64(10 * (i + 1))), ElapsedTime: int64Ptr(int64(60 * (i + 1)))}
			if i%2 == 1 {
				obs = &domain.ProgressObservation{Completed: boolPtr(true)}
			}
			<-start
			results[i], errs[i] = uc.RecordProgress(ctx, "u1", "f1-l1", "f1", obs)
		}(i)
	}
	close(start)
	wg.Wait()

	var transitions []*domain.ProgressRecordResult
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if results[i].CompletedNow {
			transitions = append(transitions, results[i])
		}
	}
	require.Len(t, transitions, 1, "exactly one call completes the lesson")

	records, err := progress.ListLessonProgressByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	stored := records[0]
	assert.True(t, stored.Completed)
	assert.Equal(t, 100.0, stored.Percentage)
	assert.Equal(t, int64(60*(callers-1)), stored.AccumulatedTime, "largest reported running total")
	if assert.NotNil(t, stored.CompletedAt) {
		assert.Equal(t, *transitions[0].Progress.CompletedAt, *stored.CompletedAt, "completion time never moves")
	}
	for i := 0; i < callers; i++ {
		if results[i].Progress.Completed {
			assert.Equal(t, *stored.CompletedAt, *results[i].Progress.CompletedAt)
		}
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	assert.NotEmpty(t, listener.completed)
	for _, c := range listener.completed {
		assert.Equal(t, "u1/f1", c)
	}
}
