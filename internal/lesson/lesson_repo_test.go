package lesson

import (
	"testing"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonProgressRepository_UpsertMerge(t *testing.T) {
	conn := testutil.OpenDB(t)
	testutil.SeedFormation(t, conn, testutil.NewFormation("f1", 2))
	repo := NewLessonProgressRepository(conn)
	ctx := testutil.Context(t)

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	t2 := t1.Add(time.Minute)

	_, err := repo.GetLessonProgress(ctx, "u1", "f1-l1")
	assert.True(t, domain.IsNotFound(err))

	created, err := repo.UpsertLessonProgress(ctx, &domain.LessonProgressModel{
		UserID: "u1", LessonID: "f1-l1", FormationID: "f1",
		Percentage: 60, CurrentPosition: 60, TotalExtent: 100, AccumulatedTime: 120,
		StartedAt: t0, LastAccessedAt: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, created.Percentage)
	assert.Equal(t, t0, created.StartedAt)
	assert.Nil(t, created.CompletedAt)

	// a stale writer can not lower anything
	merged, err := repo.UpsertLessonProgress(ctx, &domain.LessonProgressModel{
		UserID: "u1", LessonID: "f1-l1", FormationID: "f1",
		Percentage: 30, CurrentPosition: 30, TotalExtent: 100, AccumulatedTime: 60,
		StartedAt: t1, LastAccessedAt: t1,
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, merged.Percentage)
	assert.Equal(t, int64(120), merged.AccumulatedTime)
	assert.Equal(t, 30.0, merged.CurrentPosition)
	assert.Equal(t, t0, merged.StartedAt)
	assert.Equal(t, t1, merged.LastAccessedAt)

	completed, err := repo.UpsertLessonProgress(ctx, &domain.LessonProgressModel{
		UserID: "u1", LessonID: "f1-l1", FormationID: "f1",
		Percentage: 100, TotalExtent: 100, Completed: true,
		StartedAt: t2, LastAccessedAt: t2, CompletedAt: &t2,
	})
	require.NoError(t, err)
	assert.True(t, completed.Completed)
	if assert.NotNil(t, completed.CompletedAt) {
		assert.Equal(t, t2, *completed.CompletedAt)
	}

	// completion survives a later non-completed write and keeps its first timestamp
	t3 := t2.Add(time.Minute)
	after, err := repo.UpsertLessonProgress(ctx, &domain.LessonProgressModel{
		UserID: "u1", LessonID: "f1-l1", FormationID: "f1",
		Percentage: 10, TotalExtent: 100,
		StartedAt: t3, LastAccessedAt: t3,
	})
	require.NoError(t, err)
	assert.True(t, after.Completed)
	assert.Equal(t, 100.0, after.Percentage)
	assert.Equal(t, t2, *after.CompletedAt)
}

func TestLessonProgressRepository_List(t *testing.T) {
	conn := testutil.OpenDB(t)
	testutil.SeedFormation(t, conn, testutil.NewFormation("f1", 2))
	testutil.SeedFormation(t, conn, testutil.NewFormation("f2", 1))
	repo := NewLessonProgressRepository(conn)
	ctx := testutil.Context(t)

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, key := range [][2]string{{"f1-l1", "f1"}, {"f2-l1", "f2"}, {"f1-l2", "f1"}} {
		at := t0.Add(time.Duration(i) * time.Minute)
		_, err := repo.UpsertLessonProgress(ctx, &domain.LessonProgressModel{
			UserID: "u1", LessonID: key[0], FormationID: key[1], TotalExtent: 100,
			StartedAt: at, LastAccessedAt: at,
		})
		require.NoError(t, err)
	}

	all, err := repo.ListLessonProgressByUser(ctx, "u1")
	require.NoError(t, err)
	if assert.Len(t, all, 3) {
		assert.Equal(t, "f1-l2", all[0].LessonID)
		assert.Equal(t, "f1-l1", all[2].LessonID)
	}

	f1, err := repo.ListLessonProgressByUserFormation(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Len(t, f1, 2)

	other, err := repo.ListLessonProgressByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
