package inmemdb

import (
	"context"
	"sort"

	"github.com/pot-code/progress-engine/internal/domain"
)

type catalogRepository struct {
	db *DB
}

// NewCatalogRepository ...
func NewCatalogRepository(db *DB) domain.CatalogRepository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) GetFormation(ctx context.Context, formationID string) (*domain.FormationModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.formations[formationID]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, domain.NewNotFoundError("formation", formationID)
}

func (repo *catalogRepository) GetLesson(ctx context.Context, lessonID string) (*domain.LessonModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.lessons[lessonID]; ok {
		clone := *l
		return &clone, nil
	}
	return nil, domain.NewNotFoundError("lesson", lessonID)
}

func (repo *catalogRepository) ListAssignmentsByUser(ctx context.Context, userID string) ([]*domain.AssignmentModel, error) {
	return repo.filterAssignments(func(a *domain.AssignmentModel) bool { return a.UserID == userID }), nil
}

func (repo *catalogRepository) ListAssignmentsByFormation(ctx context.Context, formationID string) ([]*domain.AssignmentModel, error) {
	return repo.filterAssignments(func(a *domain.AssignmentModel) bool { return a.FormationID == formationID }), nil
}

func (repo *catalogRepository) filterAssignments(keep func(*domain.AssignmentModel) bool) []*domain.AssignmentModel {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var result []*domain.AssignmentModel
	for _, a := range repo.db.assignments {
		if keep(a) {
			clone := *a
			result = append(result, &clone)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AssignedAt.Before(result[j].AssignedAt)
	})
	return result
}
