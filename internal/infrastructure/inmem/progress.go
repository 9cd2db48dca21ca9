package inmemdb

import (
	"context"
	"sort"

	"github.com/pot-code/progress-engine/internal/domain"
)

type progressRepository struct {
	db *DB
}

// NewLessonProgressRepository ...
func NewLessonProgressRepository(db *DB) domain.LessonProgressRepository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetLessonProgress(ctx context.Context, userID, lessonID string) (*domain.LessonProgressModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.progress[progressKey{userID, lessonID}]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, domain.NewNotFoundError("lesson progress", lessonID)
}

// UpsertLessonProgress same merge as the SQL upsert
func (repo *progressRepository) UpsertLessonProgress(ctx context.Context, p *domain.LessonProgressModel) (*domain.LessonProgressModel, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := progressKey{p.UserID, p.LessonID}
	stored, ok := repo.db.progress[key]
	if !ok {
		clone := *p
		repo.db.progress[key] = &clone
		result := clone
		return &result, nil
	}

	if p.Percentage > stored.Percentage {
		stored.Percentage = p.Percentage
	}
	if p.AccumulatedTime > stored.AccumulatedTime {
		stored.AccumulatedTime = p.AccumulatedTime
	}
	stored.CurrentPosition = p.CurrentPosition
	stored.TotalExtent = p.TotalExtent
	stored.Completed = stored.Completed || p.Completed
	stored.LastAccessedAt = p.LastAccessedAt
	if stored.CompletedAt == nil && p.CompletedAt != nil {
		completedAt := *p.CompletedAt
		stored.CompletedAt = &completedAt
	}
	result := *stored
	return &result, nil
}

func (repo *progressRepository) ListLessonProgressByUser(ctx context.Context, userID string) ([]*domain.LessonProgressModel, error) {
	result := repo.filter(func(p *domain.LessonProgressModel) bool { return p.UserID == userID })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastAccessedAt.After(result[j].LastAccessedAt)
	})
	return result, nil
}

func (repo *progressRepository) ListLessonProgressByUserFormation(ctx context.Context, userID, formationID string) ([]*domain.LessonProgressModel, error) {
	return repo.filter(func(p *domain.LessonProgressModel) bool {
		return p.UserID == userID && p.FormationID == formationID
	}), nil
}

func (repo *progressRepository) filter(keep func(*domain.LessonProgressModel) bool) []*domain.LessonProgressModel {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var result []*domain.LessonProgressModel
	for _, p := range repo.db.progress {
		if keep(p) {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result
}
