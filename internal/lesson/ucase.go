package lesson

import (
	"context"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"github.com/pot-code/progress-engine/internal/infrastructure/validate"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

var nowFunc = time.Now

// LessonProgressUseCaseImpl records lesson progress and fires formation completion
type LessonProgressUseCaseImpl struct {
	ProgressRepository domain.LessonProgressRepository
	Catalog            domain.CatalogRepository
	Aggregator         domain.FormationProgressUseCase
	Listener           domain.CompletionListener
	Validator          validate.Validator
}

var _ domain.LessonProgressUseCase = &LessonProgressUseCaseImpl{}

// NewLessonProgressUseCase ...
func NewLessonProgressUseCase(
	ProgressRepository domain.LessonProgressRepository,
	Catalog domain.CatalogRepository,
	Aggregator domain.FormationProgressUseCase,
	Listener domain.CompletionListener,
	Validator validate.Validator,
) *LessonProgressUseCaseImpl {
	return &LessonProgressUseCaseImpl{ProgressRepository, Catalog, Aggregator, Listener, Validator}
}

// RecordProgress persist one progress observation of (user, lesson). formationID may be empty, the
// lesson's formation is used then.
func (lu *LessonProgressUseCaseImpl) RecordProgress(
	ctx context.Context,
	userID, lessonID, formationID string,
	obs *domain.ProgressObservation,
) (*domain.ProgressRecordResult, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonProgressUseCaseImpl.RecordProgress", "service")
	defer apmSpan.End()

	if obs == nil {
		obs = new(domain.ProgressObservation)
	}
	if errs := lu.Validator.Identifiers(validate.ID("user_id", userID), validate.ID("lesson_id", lessonID)); errs != nil {
		return nil, domain.NewValidationError(errs...)
	}
	if errs := lu.Validator.Struct(obs); errs != nil {
		return nil, domain.NewValidationError(errs...)
	}

	lesson, err := lu.Catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if formationID == "" {
		formationID = lesson.FormationID
	} else if formationID != lesson.FormationID {
		return nil, domain.NewNotFoundError("lesson", lessonID+" in formation "+formationID)
	}

	existing, err := lu.ProgressRepository.GetLessonProgress(ctx, userID, lessonID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	now := nowFunc().UTC().Truncate(time.Millisecond)
	stored, err := lu.ProgressRepository.UpsertLessonProgress(ctx,
		buildProgress(existing, lesson, userID, formationID, obs, now))
	if err != nil {
		return nil, err
	}

	result := &domain.ProgressRecordResult{
		Progress: stored,
		// the write stamped completed_at, so this call made the transition
		CompletedNow: stored.CompletedAt != nil && stored.CompletedAt.Equal(now) &&
			(existing == nil || existing.CompletedAt == nil),
	}
	formation, err := lu.Aggregator.GetFormationProgress(ctx, userID, formationID)
	if err != nil {
		return nil, err
	}
	result.Formation = formation

	// issuance is idempotent, every report on a complete formation retries a failed one
	if formation.Complete {
		if _, err := lu.Listener.OnFormationComplete(ctx, userID, formationID); err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("failed to handle formation completion",
				zap.String("user.id", userID),
				zap.String("formation.id", formationID),
				zap.Error(err))
		}
	}
	return result, nil
}

// GetUserLessonProgress get learning progress for each lesson, most recent first
func (lu *LessonProgressUseCaseImpl) GetUserLessonProgress(ctx context.Context, userID string) ([]*domain.LessonProgressModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonProgressUseCaseImpl.GetUserLessonProgress", "service")
	defer apmSpan.End()

	return lu.ProgressRepository.ListLessonProgressByUser(ctx, userID)
}
