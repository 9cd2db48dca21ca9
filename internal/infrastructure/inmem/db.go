// Package inmemdb keeps every repository in process memory. It follows the SQL repositories' semantics
// (atomic upsert merge, one open attempt per user and quiz, unique certificates) and backs use case tests.
package inmemdb

import (
	"sync"

	"github.com/pot-code/progress-engine/internal/domain"
)

type progressKey struct {
	userID   string
	lessonID string
}

// DB shared tables of the in-memory repositories
type DB struct {
	mutex        sync.RWMutex
	formations   map[string]*domain.FormationModel
	lessons      map[string]*domain.LessonModel
	assignments  []*domain.AssignmentModel
	progress     map[progressKey]*domain.LessonProgressModel
	quizzes      map[string]*domain.QuizModel
	attempts     map[string]*domain.QuizAttemptModel
	results      map[string][]*domain.QuestionResult
	certificates map[string]*domain.CertificateModel
}

// NewDB ...
func NewDB() *DB {
	return &DB{
		formations:   make(map[string]*domain.FormationModel),
		lessons:      make(map[string]*domain.LessonModel),
		progress:     make(map[progressKey]*domain.LessonProgressModel),
		quizzes:      make(map[string]*domain.QuizModel),
		attempts:     make(map[string]*domain.QuizAttemptModel),
		results:      make(map[string][]*domain.QuestionResult),
		certificates: make(map[string]*domain.CertificateModel),
	}
}

// PutFormation store f, every lesson of its sections is considered published
func (db *DB) PutFormation(f *domain.FormationModel) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.formations[f.ID] = f
	for _, s := range f.Sections {
		for _, l := range s.Lessons {
			db.lessons[l.ID] = l
		}
	}
}

// PutAssignment ...
func (db *DB) PutAssignment(a *domain.AssignmentModel) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.assignments = append(db.assignments, a)
}

// PutQuiz ...
func (db *DB) PutQuiz(q *domain.QuizModel) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.quizzes[q.ID] = q
}

// QuestionResults audit rows stored when attemptID was closed
func (db *DB) QuestionResults(attemptID string) []*domain.QuestionResult {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.results[attemptID]
}

// CertificateCount ...
func (db *DB) CertificateCount() int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.certificates)
}
