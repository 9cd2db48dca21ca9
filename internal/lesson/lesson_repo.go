package lesson

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
)

const progressColumns = `user_id, lesson_id, formation_id, percentage, current_position, total_extent,
    accumulated_time, completed, started_at, last_accessed_at, completed_at`

// LessonProgressRepository SQL storage of lesson progress
type LessonProgressRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ domain.LessonProgressRepository = &LessonProgressRepository{}

// NewLessonProgressRepository ...
func NewLessonProgressRepository(Conn driver.ITransactionalDB) *LessonProgressRepository {
	return &LessonProgressRepository{
		Conn: Conn,
	}
}

func (repo *LessonProgressRepository) GetLessonProgress(ctx context.Context, userID, lessonID string) (*domain.LessonProgressModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+progressColumns+`
FROM
    lesson_progress
WHERE
    user_id = $1 AND lesson_id = $2
	`, userID, lessonID)
	if err != nil {
		return nil, errors.Wrap(err, "get lesson progress")
	}
	result, err := scanProgress(rows)
	if err != nil {
		return nil, errors.Wrap(err, "get lesson progress")
	}
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("lesson progress", lessonID)
	}
	return result[0], nil
}

// UpsertLessonProgress the conflict branch never lowers percentage or accumulated time, and never
// clears completion
func (repo *LessonProgressRepository) UpsertLessonProgress(ctx context.Context, p *domain.LessonProgressModel) (*domain.LessonProgressModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
INSERT INTO lesson_progress (`+progressColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
    percentage = CASE WHEN excluded.percentage > lesson_progress.percentage
        THEN excluded.percentage ELSE lesson_progress.percentage END,
    current_position = excluded.current_position,
    total_extent = excluded.total_extent,
    accumulated_time = CASE WHEN excluded.accumulated_time > lesson_progress.accumulated_time
        THEN excluded.accumulated_time ELSE lesson_progress.accumulated_time END,
    completed = (lesson_progress.completed OR excluded.completed),
    last_accessed_at = excluded.last_accessed_at,
    completed_at = COALESCE(lesson_progress.completed_at, excluded.completed_at)
RETURNING `+progressColumns,
		p.UserID, p.LessonID, p.FormationID, p.Percentage, p.CurrentPosition, p.TotalExtent,
		p.AccumulatedTime, p.Completed, driver.Millis(p.StartedAt), driver.Millis(p.LastAccessedAt),
		driver.NullMillis(p.CompletedAt),
	)
	if err != nil {
		return nil, errors.Wrap(err, "upsert lesson progress")
	}
	result, err := scanProgress(rows)
	if err != nil {
		return nil, errors.Wrap(err, "upsert lesson progress")
	}
	if len(result) != 1 {
		return nil, errors.New("upsert lesson progress: no row returned")
	}
	return result[0], nil
}

func (repo *LessonProgressRepository) ListLessonProgressByUser(ctx context.Context, userID string) ([]*domain.LessonProgressModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+progressColumns+`
FROM
    lesson_progress
WHERE
    user_id = $1
ORDER BY last_accessed_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list lesson progress by user")
	}
	result, err := scanProgress(rows)
	return result, errors.Wrap(err, "list lesson progress by user")
}

func (repo *LessonProgressRepository) ListLessonProgressByUserFormation(ctx context.Context, userID, formationID string) ([]*domain.LessonProgressModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+progressColumns+`
FROM
    lesson_progress
WHERE
    user_id = $1 AND formation_id = $2
	`, userID, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "list lesson progress by formation")
	}
	result, err := scanProgress(rows)
	return result, errors.Wrap(err, "list lesson progress by formation")
}

func scanProgress(rows driver.ISQLRows) ([]*domain.LessonProgressModel, error) {
	defer rows.Close()

	var result []*domain.LessonProgressModel
	for rows.Next() {
		var (
			item                    = new(domain.LessonProgressModel)
			startedAt, lastAccessed int64
			completedAt             *int64
		)
		err := rows.Scan(&item.UserID, &item.LessonID, &item.FormationID, &item.Percentage,
			&item.CurrentPosition, &item.TotalExtent, &item.AccumulatedTime, &item.Completed,
			&startedAt, &lastAccessed, &completedAt)
		if err != nil {
			return nil, err
		}
		item.StartedAt = driver.FromMillis(startedAt)
		item.LastAccessedAt = driver.FromMillis(lastAccessed)
		item.CompletedAt = driver.FromNullMillis(completedAt)
		result = append(result, item)
	}
	return result, rows.Err()
}
