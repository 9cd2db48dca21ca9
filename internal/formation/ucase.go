package formation

import (
	"context"

	"github.com/pot-code/progress-engine/internal/domain"
	"go.elastic.co/apm"
)

// FormationProgressUseCaseImpl read-only aggregation, every call re-reads the store
type FormationProgressUseCaseImpl struct {
	Catalog            domain.CatalogRepository
	ProgressRepository domain.LessonProgressRepository
}

var _ domain.FormationProgressUseCase = &FormationProgressUseCaseImpl{}

// NewFormationProgressUseCase ...
func NewFormationProgressUseCase(
	Catalog domain.CatalogRepository,
	ProgressRepository domain.LessonProgressRepository,
) *FormationProgressUseCaseImpl {
	return &FormationProgressUseCaseImpl{Catalog, ProgressRepository}
}

// GetFormationProgress ...
func (fu *FormationProgressUseCaseImpl) GetFormationProgress(ctx context.Context, userID, formationID string) (*domain.FormationProgressModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "FormationProgressUseCaseImpl.GetFormationProgress", "service")
	defer apmSpan.End()

	formation, err := fu.Catalog.GetFormation(ctx, formationID)
	if err != nil {
		return nil, err
	}
	records, err := fu.ProgressRepository.ListLessonProgressByUserFormation(ctx, userID, formationID)
	if err != nil {
		return nil, err
	}
	return Aggregate(userID, formation, records), nil
}
