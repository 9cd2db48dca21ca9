package quiz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"github.com/pot-code/progress-engine/internal/infrastructure/uuid"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

var nowFunc = time.Now

// QuizUseCaseImpl starts, scores and closes quiz attempts
type QuizUseCaseImpl struct {
	QuizRepository domain.QuizRepository
	Listener       domain.CompletionListener
	Notifier       domain.Notifier
	UUIDGenerator  uuid.Generator
	Validator      validate.Validator
}

var _ domain.QuizUseCase = &QuizUseCaseImpl{}

// NewQuizUseCase ...
func NewQuizUseCase(
	QuizRepository domain.QuizRepository,
	Listener domain.CompletionListener,
	Notifier domain.Notifier,
	UUIDGenerator uuid.Generator,
	Validator validate.Validator,
) *QuizUseCaseImpl {
	return &QuizUseCaseImpl{QuizRepository, Listener, Notifier, UUIDGenerator, Validator}
}

// StartAttempt open an attempt on quiz, or resume the user's open one
func (qu *QuizUseCaseImpl) StartAttempt(ctx context.Context, userID, quizID string) (*domain.QuizAttemptView, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "QuizUseCaseImpl.StartAttempt", "service")
	defer apmSpan.End()

	if errs := qu.Validator.Identifiers(validate.ID("user_id", userID), validate.ID("quiz_id", quizID)); errs != nil {
		return nil, domain.NewValidationError(errs...)
	}
	quiz, err := qu.QuizRepository.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	open, err := qu.QuizRepository.GetOpenAttempt(ctx, userID, quizID)
	if err == nil {
		return &domain.QuizAttemptView{Attempt: open, Quiz: quiz, Resumed: true}, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	id, err := qu.UUIDGenerator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attempt id: %w", err)
	}
	attempt := &domain.QuizAttemptModel{
		ID:          id,
		UserID:      userID,
		QuizID:      quiz.ID,
		FormationID: quiz.FormationID,
		StartedAt:   nowFunc().UTC().Truncate(time.Millisecond),
		Key:         domain.AnswerKeyOf(quiz),
	}
	if err := qu.QuizRepository.CreateAttempt(ctx, attempt); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		// lost the race against a concurrent start, hand out the winner
		open, err := qu.QuizRepository.GetOpenAttempt(ctx, userID, quizID)
		if err != nil {
			return nil, err
		}
		return &domain.QuizAttemptView{Attempt: open, Quiz: quiz, Resumed: true}, nil
	}
	return &domain.QuizAttemptView{Attempt: attempt, Quiz: quiz}, nil
}

// SubmitAttempt score the submission against the attempt's answer key and close the attempt
func (qu *QuizUseCaseImpl) SubmitAttempt(
	ctx context.Context,
	userID, attemptID string,
	input *domain.SubmitAttemptInput,
) (*domain.ScoreResult, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "QuizUseCaseImpl.SubmitAttempt", "service")
	defer apmSpan.End()

	if input == nil {
		input = new(domain.SubmitAttemptInput)
	}
	if errs := qu.Validator.Identifiers(validate.ID("user_id", userID), validate.ID("attempt_id", attemptID)); errs != nil {
		return nil, domain.NewValidationError(errs...)
	}
	if errs := qu.Validator.Struct(input); errs != nil {
		return nil, domain.NewValidationError(errs...)
	}

	attempt, err := qu.getOwnAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Closed() {
		return nil, domain.ErrAttemptClosed
	}
	if attempt.Key == nil {
		return nil, fmt.Errorf("attempt %s has no answer key", attempt.ID)
	}

	result := Score(attempt.Key, input.Answers)
	now := nowFunc().UTC().Truncate(time.Millisecond)
	attempt.CompletedAt = &now
	attempt.Answers = input.Answers
	attempt.Score = result.Score
	attempt.PointsEarned = result.PointsEarned
	attempt.PointsPossible = result.PointsPossible
	attempt.Passed = result.Passed
	attempt.ElapsedTime = input.ElapsedTime
	if err := qu.QuizRepository.CloseAttempt(ctx, attempt, result.Questions); err != nil {
		return nil, err
	}

	qu.notifyVerdict(ctx, attempt)
	if attempt.Passed {
		if _, err := qu.Listener.OnQuizPassed(ctx, userID, attempt.FormationID); err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("failed to handle passed quiz",
				zap.String("user.id", userID),
				zap.String("attempt.id", attempt.ID),
				zap.Error(err))
		}
	}
	return result, nil
}

// GetAttempt attempts of other users are reported as missing
func (qu *QuizUseCaseImpl) GetAttempt(ctx context.Context, userID, attemptID string) (*domain.QuizAttemptModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "QuizUseCaseImpl.GetAttempt", "service")
	defer apmSpan.End()

	return qu.getOwnAttempt(ctx, userID, attemptID)
}

func (qu *QuizUseCaseImpl) getOwnAttempt(ctx context.Context, userID, attemptID string) (*domain.QuizAttemptModel, error) {
	attempt, err := qu.QuizRepository.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, domain.NewNotFoundError("attempt", attemptID)
	}
	return attempt, nil
}

func (qu *QuizUseCaseImpl) notifyVerdict(ctx context.Context, attempt *domain.QuizAttemptModel) {
	n := &domain.Notification{
		UserID:    attempt.UserID,
		Kind:      domain.NotifyQuizFailed,
		Title:     "Quiz failed",
		Message:   fmt.Sprintf("You scored %d%%, the quiz is not passed yet.", attempt.Score),
		CreatedAt: *attempt.CompletedAt,
		Payload: map[string]string{
			"attempt_id":   attempt.ID,
			"quiz_id":      attempt.QuizID,
			"formation_id": attempt.FormationID,
			"score":        strconv.Itoa(attempt.Score),
		},
	}
	if attempt.Passed {
		n.Kind = domain.NotifyQuizPassed
		n.Title = "Quiz passed"
		n.Message = fmt.Sprintf("Congratulations, you passed with %d%%.", attempt.Score)
	}
	if err := qu.Notifier.Notify(ctx, n); err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to send quiz notification",
			zap.String("user.id", attempt.UserID),
			zap.String("attempt.id", attempt.ID),
			zap.Error(err))
	}
}
