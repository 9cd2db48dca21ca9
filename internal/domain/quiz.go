package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// QuestionKind question type
type QuestionKind string

// supported question kinds
const (
	SingleChoice   QuestionKind = "single_choice"
	MultipleChoice QuestionKind = "multiple_choice"
	TrueFalse      QuestionKind = "true_false"
)

// AnswerModel one option of a question, Correct never leaves the service before submission
type AnswerModel struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Label      string `json:"label"`
	Position   int    `json:"position"`
	Correct    bool   `json:"-"`
}

// QuestionModel quiz question
type QuestionModel struct {
	ID       string         `json:"id"`
	QuizID   string         `json:"quiz_id"`
	Prompt   string         `json:"prompt"`
	Kind     QuestionKind   `json:"kind"`
	Points   int            `json:"points"`
	Position int            `json:"position"`
	Answers  []*AnswerModel `json:"answers"`
}

// QuizModel a quiz belongs to exactly one formation
type QuizModel struct {
	ID           string           `json:"id"`
	FormationID  string           `json:"formation_id"`
	Title        string           `json:"title"`
	PassingScore int              `json:"passing_score"`
	Questions    []*QuestionModel `json:"questions"`
}

// KeyedQuestion answer key entry of one question
type KeyedQuestion struct {
	QuestionID string       `json:"question_id"`
	Kind       QuestionKind `json:"kind"`
	Points     int          `json:"points"`
	Correct    []string     `json:"correct"`
}

// AnswerKey frozen copy of the correct answers, taken when an attempt starts
type AnswerKey struct {
	PassingScore int             `json:"passing_score"`
	Questions    []KeyedQuestion `json:"questions"`
}

// AnswerKeyOf snapshot the answer key of quiz
func AnswerKeyOf(quiz *QuizModel) *AnswerKey {
	key := &AnswerKey{PassingScore: quiz.PassingScore}
	for _, q := range quiz.Questions {
		kq := KeyedQuestion{QuestionID: q.ID, Kind: q.Kind, Points: q.Points}
		for _, a := range q.Answers {
			if a.Correct {
				kq.Correct = append(kq.Correct, a.ID)
			}
		}
		key.Questions = append(key.Questions, kq)
	}
	return key
}

// AnswerChoice the answer ids picked for one question. In JSON it is either a single id or a list of ids.
type AnswerChoice struct {
	IDs []string
}

// UnmarshalJSON accept "id" or ["id", ...]
func (ac *AnswerChoice) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		ac.IDs = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		ac.IDs = []string{single}
		return nil
	}
	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return errors.New("answer must be an answer id or a list of answer ids")
	}
	ac.IDs = multi
	return nil
}

// MarshalJSON write a single id as a string, anything else as a list
func (ac AnswerChoice) MarshalJSON() ([]byte, error) {
	if len(ac.IDs) == 1 {
		return json.Marshal(ac.IDs[0])
	}
	if ac.IDs == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(ac.IDs)
}

// Submission answers keyed by question id
type Submission map[string]AnswerChoice

// QuestionResult scoring of one question
type QuestionResult struct {
	QuestionID     string `json:"question_id"`
	PointsEarned   int    `json:"points_earned"`
	PointsPossible int    `json:"points_possible"`
	Correct        bool   `json:"correct"`
}

// ScoreResult verdict of a submission
type ScoreResult struct {
	Score          int               `json:"score"`
	Passed         bool              `json:"passed"`
	PointsEarned   int               `json:"points_earned"`
	PointsPossible int               `json:"points_possible"`
	Questions      []*QuestionResult `json:"questions"`
}

// QuizAttemptModel one scored pass through a quiz, open while CompletedAt is nil
type QuizAttemptModel struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	QuizID         string     `json:"quiz_id"`
	FormationID    string     `json:"formation_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Answers        Submission `json:"answers,omitempty"`
	Score          int        `json:"score"`
	PointsEarned   int        `json:"points_earned"`
	PointsPossible int        `json:"points_possible"`
	Passed         bool       `json:"passed"`
	ElapsedTime    int64      `json:"elapsed_time"`
	Key            *AnswerKey `json:"-"`
}

// Closed an attempt is closed once scored
func (a *QuizAttemptModel) Closed() bool {
	return a.CompletedAt != nil
}

// QuizAttemptView attempt handed to the learner when it starts, questions carry no correctness flags
type QuizAttemptView struct {
	Attempt *QuizAttemptModel `json:"attempt"`
	Quiz    *QuizModel        `json:"quiz"`
	Resumed bool              `json:"resumed"`
}

// SubmitAttemptInput learner's submission
type SubmitAttemptInput struct {
	Answers     Submission `json:"answers"`
	ElapsedTime int64      `json:"elapsed_time" validate:"min=0"`
}

// QuizRepository quiz content and attempt storage
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (*QuizModel, error)
	GetQuizByFormation(ctx context.Context, formationID string) (*QuizModel, error)
	// CreateAttempt insert an open attempt, fails with ErrConflict when the user already has one on that quiz
	CreateAttempt(ctx context.Context, attempt *QuizAttemptModel) error
	GetOpenAttempt(ctx context.Context, userID, quizID string) (*QuizAttemptModel, error)
	GetAttempt(ctx context.Context, attemptID string) (*QuizAttemptModel, error)
	// CloseAttempt store the verdict if the attempt is still open, fails with ErrAttemptClosed otherwise
	CloseAttempt(ctx context.Context, attempt *QuizAttemptModel, results []*QuestionResult) error
	ListClosedAttemptsByUser(ctx context.Context, userID string) ([]*QuizAttemptModel, error)
	ListClosedAttemptsByQuiz(ctx context.Context, quizID string) ([]*QuizAttemptModel, error)
	// BestPassingScore best score of the user's passed attempts, ok is false when none passed
	BestPassingScore(ctx context.Context, userID, quizID string) (score int, ok bool, err error)
}

// QuizUseCase Quiz Scoring Engine
type QuizUseCase interface {
	StartAttempt(ctx context.Context, userID, quizID string) (*QuizAttemptView, error)
	SubmitAttempt(ctx context.Context, userID, attemptID string, input *SubmitAttemptInput) (*ScoreResult, error)
	GetAttempt(ctx context.Context, userID, attemptID string) (*QuizAttemptModel, error)
}
