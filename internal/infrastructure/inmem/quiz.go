package inmemdb

import (
	"context"
	"sort"

	"github.com/pot-code/progress-engine/internal/domain"
)

type quizRepository struct {
	db *DB
}

// NewQuizRepository ...
func NewQuizRepository(db *DB) domain.QuizRepository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) GetQuiz(ctx context.Context, quizID string) (*domain.QuizModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.quizzes[quizID]; ok {
		clone := *q
		return &clone, nil
	}
	return nil, domain.NewNotFoundError("quiz", quizID)
}

func (repo *quizRepository) GetQuizByFormation(ctx context.Context, formationID string) (*domain.QuizModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, q := range repo.db.quizzes {
		if q.FormationID == formationID {
			clone := *q
			return &clone, nil
		}
	}
	return nil, domain.NewNotFoundError("quiz of formation", formationID)
}

func (repo *quizRepository) CreateAttempt(ctx context.Context, attempt *domain.QuizAttemptModel) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, a := range repo.db.attempts {
		if a.UserID == attempt.UserID && a.QuizID == attempt.QuizID && !a.Closed() {
			return domain.NewConflictError("an open attempt already exists")
		}
	}
	if _, ok := repo.db.attempts[attempt.ID]; ok {
		return domain.NewConflictError("duplicate attempt id")
	}
	clone := *attempt
	repo.db.attempts[attempt.ID] = &clone
	return nil
}

func (repo *quizRepository) GetOpenAttempt(ctx context.Context, userID, quizID string) (*domain.QuizAttemptModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.attempts {
		if a.UserID == userID && a.QuizID == quizID && !a.Closed() {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.NewNotFoundError("open attempt of quiz", quizID)
}

func (repo *quizRepository) GetAttempt(ctx context.Context, attemptID string) (*domain.QuizAttemptModel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.attempts[attemptID]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, domain.NewNotFoundError("attempt", attemptID)
}

func (repo *quizRepository) CloseAttempt(ctx context.Context, attempt *domain.QuizAttemptModel, results []*domain.QuestionResult) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.attempts[attempt.ID]
	if !ok {
		return domain.NewNotFoundError("attempt", attempt.ID)
	}
	if stored.Closed() {
		return domain.ErrAttemptClosed
	}
	key := stored.Key
	clone := *attempt
	clone.Key = key
	repo.db.attempts[attempt.ID] = &clone
	repo.db.results[attempt.ID] = results
	return nil
}

func (repo *quizRepository) ListClosedAttemptsByUser(ctx context.Context, userID string) ([]*domain.QuizAttemptModel, error) {
	return repo.closed(func(a *domain.QuizAttemptModel) bool { return a.UserID == userID }), nil
}

func (repo *quizRepository) ListClosedAttemptsByQuiz(ctx context.Context, quizID string) ([]*domain.QuizAttemptModel, error) {
	return repo.closed(func(a *domain.QuizAttemptModel) bool { return a.QuizID == quizID }), nil
}

func (repo *quizRepository) BestPassingScore(ctx context.Context, userID, quizID string) (int, bool, error) {
	best, found := 0, false
	for _, a := range repo.closed(func(a *domain.QuizAttemptModel) bool {
		return a.UserID == userID && a.QuizID == quizID && a.Passed
	}) {
		if !found || a.Score > best {
			best, found = a.Score, true
		}
	}
	return best, found, nil
}

func (repo *quizRepository) closed(keep func(*domain.QuizAttemptModel) bool) []*domain.QuizAttemptModel {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var result []*domain.QuizAttemptModel
	for _, a := range repo.db.attempts {
		if a.Closed() && keep(a) {
			clone := *a
			result = append(result, &clone)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CompletedAt.Before(*result[j].CompletedAt)
	})
	return result
}
