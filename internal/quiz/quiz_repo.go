package quiz

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
)

const attemptColumns = `id, user_id, quiz_id, formation_id, started_at, completed_at, answer_key, answers,
    score, points_earned, points_possible, passed, elapsed_time`

// QuizRepository SQL storage of quizzes and attempts
type QuizRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ domain.QuizRepository = &QuizRepository{}

// NewQuizRepository ...
func NewQuizRepository(Conn driver.ITransactionalDB) *QuizRepository {
	return &QuizRepository{
		Conn: Conn,
	}
}

func (repo *QuizRepository) GetQuiz(ctx context.Context, quizID string) (*domain.QuizModel, error) {
	return repo.getQuizWhere(ctx, "id", quizID)
}

func (repo *QuizRepository) GetQuizByFormation(ctx context.Context, formationID string) (*domain.QuizModel, error) {
	return repo.getQuizWhere(ctx, "formation_id", formationID)
}

// getQuizWhere column is one of the quizzes' unique columns, never user input
func (repo *QuizRepository) getQuizWhere(ctx context.Context, column, value string) (*domain.QuizModel, error) {
	quiz, err := repo.getQuizRow(ctx, column, value)
	if err != nil {
		return nil, err
	}
	questions, err := repo.listQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	answers, err := repo.listAnswers(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[string]*domain.QuestionModel, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}
	for _, a := range answers {
		if q, ok := byQuestion[a.QuestionID]; ok {
			q.Answers = append(q.Answers, a)
		}
	}
	quiz.Questions = questions
	return quiz, nil
}

func (repo *QuizRepository) getQuizRow(ctx context.Context, column, value string) (*domain.QuizModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, formation_id, title, passing_score
FROM
    quizzes
WHERE
    `+column+` = $1
	`, value)
	if err != nil {
		return nil, errors.Wrap(err, "get quiz")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "get quiz")
		}
		if column == "formation_id" {
			return nil, domain.NewNotFoundError("quiz of formation", value)
		}
		return nil, domain.NewNotFoundError("quiz", value)
	}
	item := new(domain.QuizModel)
	if err := rows.Scan(&item.ID, &item.FormationID, &item.Title, &item.PassingScore); err != nil {
		return nil, errors.Wrap(err, "get quiz")
	}
	return item, nil
}

func (repo *QuizRepository) listQuestions(ctx context.Context, quizID string) ([]*domain.QuestionModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, quiz_id, prompt, kind, points, position
FROM
    quiz_questions
WHERE
    quiz_id = $1
ORDER BY position ASC, id ASC
	`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "list questions")
	}
	defer rows.Close()

	var result []*domain.QuestionModel
	for rows.Next() {
		item := new(domain.QuestionModel)
		var kind string
		if err := rows.Scan(&item.ID, &item.QuizID, &item.Prompt, &kind, &item.Points, &item.Position); err != nil {
			return nil, errors.Wrap(err, "list questions")
		}
		item.Kind = domain.QuestionKind(kind)
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "list questions")
}

func (repo *QuizRepository) listAnswers(ctx context.Context, quizID string) ([]*domain.AnswerModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    a.id, a.question_id, a.label, a.position, a.correct
FROM
    quiz_answers a
        JOIN
    quiz_questions q ON (q.id = a.question_id)
WHERE
    q.quiz_id = $1
ORDER BY a.position ASC, a.id ASC
	`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "list answers")
	}
	defer rows.Close()

	var result []*domain.AnswerModel
	for rows.Next() {
		item := new(domain.AnswerModel)
		if err := rows.Scan(&item.ID, &item.QuestionID, &item.Label, &item.Position, &item.Correct); err != nil {
			return nil, errors.Wrap(err, "list answers")
		}
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "list answers")
}

// CreateAttempt the partial unique index on open attempts turns a concurrent duplicate into ErrConflict
func (repo *QuizRepository) CreateAttempt(ctx context.Context, attempt *domain.QuizAttemptModel) error {
	key, err := json.Marshal(attempt.Key)
	if err != nil {
		return errors.Wrap(err, "encode answer key")
	}
	_, err = repo.Conn.ExecContext(ctx, `
INSERT INTO quiz_attempts (id, user_id, quiz_id, formation_id, started_at, answer_key)
VALUES ($1, $2, $3, $4, $5, $6)
	`, attempt.ID, attempt.UserID, attempt.QuizID, attempt.FormationID, driver.Millis(attempt.StartedAt), string(key))
	if err != nil {
		if driver.IsUniqueViolation(err) {
			return domain.NewConflictError("an open attempt already exists")
		}
		return errors.Wrap(err, "create attempt")
	}
	return nil
}

func (repo *QuizRepository) GetOpenAttempt(ctx context.Context, userID, quizID string) (*domain.QuizAttemptModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+attemptColumns+`
FROM
    quiz_attempts
WHERE
    user_id = $1 AND quiz_id = $2 AND completed_at IS NULL
	`, userID, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "get open attempt")
	}
	result, err := scanAttempts(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("open attempt of quiz", quizID)
	}
	return result[0], nil
}

func (repo *QuizRepository) GetAttempt(ctx context.Context, attemptID string) (*domain.QuizAttemptModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+attemptColumns+`
FROM
    quiz_attempts
WHERE
    id = $1
	`, attemptID)
	if err != nil {
		return nil, errors.Wrap(err, "get attempt")
	}
	result, err := scanAttempts(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("attempt", attemptID)
	}
	return result[0], nil
}

// CloseAttempt the verdict and its audit rows are written in one transaction, guarded by
// completed_at IS NULL
func (repo *QuizRepository) CloseAttempt(ctx context.Context, attempt *domain.QuizAttemptModel, results []*domain.QuestionResult) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return errors.Wrap(err, "encode answers")
	}

	tx, err := repo.Conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "close attempt")
	}
	defer tx.Rollback(ctx)

	res, err := tx.ExecContext(ctx, `
UPDATE quiz_attempts
SET
    completed_at = $2, answers = $3, score = $4, points_earned = $5,
    points_possible = $6, passed = $7, elapsed_time = $8
WHERE
    id = $1 AND completed_at IS NULL
	`, attempt.ID, driver.NullMillis(attempt.CompletedAt), string(answers), attempt.Score,
		attempt.PointsEarned, attempt.PointsPossible, attempt.Passed, attempt.ElapsedTime)
	if err != nil {
		return errors.Wrap(err, "close attempt")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "close attempt")
	}
	if affected == 0 {
		return domain.ErrAttemptClosed
	}

	for _, r := range results {
		_, err := tx.ExecContext(ctx, `
INSERT INTO quiz_attempt_results (attempt_id, question_id, points_earned, points_possible, correct)
VALUES ($1, $2, $3, $4, $5)
		`, attempt.ID, r.QuestionID, r.PointsEarned, r.PointsPossible, r.Correct)
		if err != nil {
			return errors.Wrap(err, "store question result")
		}
	}
	return errors.Wrap(tx.Commit(ctx), "close attempt")
}

func (repo *QuizRepository) ListClosedAttemptsByUser(ctx context.Context, userID string) ([]*domain.QuizAttemptModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+attemptColumns+`
FROM
    quiz_attempts
WHERE
    user_id = $1 AND completed_at IS NOT NULL
ORDER BY completed_at ASC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts by user")
	}
	return scanAttempts(rows)
}

func (repo *QuizRepository) ListClosedAttemptsByQuiz(ctx context.Context, quizID string) ([]*domain.QuizAttemptModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+attemptColumns+`
FROM
    quiz_attempts
WHERE
    quiz_id = $1 AND completed_at IS NOT NULL
ORDER BY completed_at ASC
	`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts by quiz")
	}
	return scanAttempts(rows)
}

func (repo *QuizRepository) BestPassingScore(ctx context.Context, userID, quizID string) (int, bool, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    MAX(score)
FROM
    quiz_attempts
WHERE
    user_id = $1 AND quiz_id = $2 AND completed_at IS NOT NULL AND passed = TRUE
	`, userID, quizID)
	if err != nil {
		return 0, false, errors.Wrap(err, "best passing score")
	}
	defer rows.Close()

	var best *int64
	if rows.Next() {
		if err := rows.Scan(&best); err != nil {
			return 0, false, errors.Wrap(err, "best passing score")
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, errors.Wrap(err, "best passing score")
	}
	if best == nil {
		return 0, false, nil
	}
	return int(*best), true, nil
}

func scanAttempts(rows driver.ISQLRows) ([]*domain.QuizAttemptModel, error) {
	defer rows.Close()

	var result []*domain.QuizAttemptModel
	for rows.Next() {
		var (
			item        = new(domain.QuizAttemptModel)
			startedAt   int64
			completedAt *int64
			key         string
			answers     *string
		)
		err := rows.Scan(&item.ID, &item.UserID, &item.QuizID, &item.FormationID, &startedAt, &completedAt,
			&key, &answers, &item.Score, &item.PointsEarned, &item.PointsPossible, &item.Passed, &item.ElapsedTime)
		if err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		item.StartedAt = driver.FromMillis(startedAt)
		item.CompletedAt = driver.FromNullMillis(completedAt)

		item.Key = new(domain.AnswerKey)
		if err := json.Unmarshal([]byte(key), item.Key); err != nil {
			return nil, errors.Wrap(err, "decode answer key")
		}
		if answers != nil {
			if err := json.Unmarshal([]byte(*answers), &item.Answers); err != nil {
				return nil, errors.Wrap(err, "decode answers")
			}
		}
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "scan attempt")
}
