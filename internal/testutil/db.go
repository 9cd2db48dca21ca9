// Package testutil helpers shared by package tests
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"go.uber.org/zap/zaptest"
)

// Context background context carrying a test logger
func Context(t *testing.T) context.Context {
	return logging.SetLoggerInContext(context.Background(), zaptest.NewLogger(t))
}

// OpenDB migrated sqlite database in a temp dir, closed when the test ends
func OpenDB(t *testing.T) driver.ITransactionalDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine.db")
	conn, err := driver.GetDBConnection(&driver.DBConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(context.Background()) })

	if err := driver.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("OpenDB() migrate failed: %v", err)
	}
	return conn
}

func mustExec(t *testing.T, conn driver.ITransactionalDB, query string, args ...interface{}) {
	t.Helper()
	if _, err := conn.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q failed: %v", query, err)
	}
}

// SeedFormation insert f with its sections and lessons, all published
func SeedFormation(t *testing.T, conn driver.ITransactionalDB, f *domain.FormationModel) {
	t.Helper()

	mustExec(t, conn, `INSERT INTO formations (id, title, quiz_required, certificate_validity_days) VALUES ($1, $2, $3, $4)`,
		f.ID, f.Title, f.QuizRequired, f.CertificateValidityDays)
	for _, s := range f.Sections {
		mustExec(t, conn, `INSERT INTO sections (id, formation_id, position, title) VALUES ($1, $2, $3, $4)`,
			s.ID, f.ID, s.Position, s.Title)
		for _, l := range s.Lessons {
			SeedLesson(t, conn, l, true)
		}
	}
}

// SeedLesson insert one lesson into an existing section
func SeedLesson(t *testing.T, conn driver.ITransactionalDB, l *domain.LessonModel, published bool) {
	t.Helper()
	mustExec(t, conn, `
INSERT INTO lessons (id, section_id, formation_id, position, title, nominal_extent, published)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.SectionID, l.FormationID, l.Position, l.Title, l.NominalExtent, published)
}

// SeedAssignment direct assignment of a formation
func SeedAssignment(t *testing.T, conn driver.ITransactionalDB, a *domain.AssignmentModel) {
	t.Helper()
	mustExec(t, conn, `
INSERT INTO formation_assignments (user_id, formation_id, mandatory, due_at, assigned_at)
VALUES ($1, $2, $3, $4, $5)`,
		a.UserID, a.FormationID, a.Mandatory, driver.NullMillis(a.DueAt), driver.Millis(a.AssignedAt))
}

// SeedBankAssignment assign formationID to every member of bankID
func SeedBankAssignment(t *testing.T, conn driver.ITransactionalDB, bankID, formationID string, assignedAt time.Time, members ...string) {
	t.Helper()
	mustExec(t, conn, `
INSERT INTO bank_formations (bank_id, formation_id, mandatory, due_at, assigned_at)
VALUES ($1, $2, $3, $4, $5)`,
		bankID, formationID, false, nil, driver.Millis(assignedAt))
	for _, m := range members {
		mustExec(t, conn, `INSERT INTO bank_members (bank_id, user_id) VALUES ($1, $2)`, bankID, m)
	}
}

// SeedQuiz insert q with its questions and answers
func SeedQuiz(t *testing.T, conn driver.ITransactionalDB, q *domain.QuizModel) {
	t.Helper()

	mustExec(t, conn, `INSERT INTO quizzes (id, formation_id, title, passing_score) VALUES ($1, $2, $3, $4)`,
		q.ID, q.FormationID, q.Title, q.PassingScore)
	for _, question := range q.Questions {
		mustExec(t, conn, `
INSERT INTO quiz_questions (id, quiz_id, position, kind, points, prompt) VALUES ($1, $2, $3, $4, $5, $6)`,
			question.ID, q.ID, question.Position, string(question.Kind), question.Points, question.Prompt)
		for _, a := range question.Answers {
			mustExec(t, conn, `
INSERT INTO quiz_answers (id, question_id, position, label, correct) VALUES ($1, $2, $3, $4, $5)`,
				a.ID, question.ID, a.Position, a.Label, a.Correct)
		}
	}
}
