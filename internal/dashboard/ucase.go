package dashboard

import (
	"context"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"go.elastic.co/apm"
	"golang.org/x/sync/errgroup"
)

var nowFunc = time.Now

// maxParallelReads bounds the formation progress reads of one projection
const maxParallelReads = 8

// DashboardUseCaseImpl read-only projections, nothing is cached between calls
type DashboardUseCaseImpl struct {
	Catalog               domain.CatalogRepository
	Aggregator            domain.FormationProgressUseCase
	ProgressRepository    domain.LessonProgressRepository
	QuizRepository        domain.QuizRepository
	CertificateRepository domain.CertificateRepository
}

var _ domain.DashboardUseCase = &DashboardUseCaseImpl{}

// NewDashboardUseCase ...
func NewDashboardUseCase(
	Catalog domain.CatalogRepository,
	Aggregator domain.FormationProgressUseCase,
	ProgressRepository domain.LessonProgressRepository,
	QuizRepository domain.QuizRepository,
	CertificateRepository domain.CertificateRepository,
) *DashboardUseCaseImpl {
	return &DashboardUseCaseImpl{Catalog, Aggregator, ProgressRepository, QuizRepository, CertificateRepository}
}

// GetUserDashboard summary of a learner, a user without assignments gets all zeros
func (du *DashboardUseCaseImpl) GetUserDashboard(ctx context.Context, userID string, passingOnly bool) (*domain.DashboardModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "DashboardUseCaseImpl.GetUserDashboard", "service")
	defer apmSpan.End()

	assignments, err := du.Catalog.ListAssignmentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		formations   = make([]*domain.FormationProgressModel, len(assignments))
		records      []*domain.LessonProgressModel
		attempts     []*domain.QuizAttemptModel
		certificates []*domain.CertificateModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	g.Go(func() (err error) {
		records, err = du.ProgressRepository.ListLessonProgressByUser(gctx, userID)
		return
	})
	g.Go(func() (err error) {
		attempts, err = du.QuizRepository.ListClosedAttemptsByUser(gctx, userID)
		return
	})
	g.Go(func() (err error) {
		certificates, err = du.CertificateRepository.ListCertificatesByUser(gctx, userID)
		return
	})
	for i, a := range assignments {
		i, formationID := i, a.FormationID
		g.Go(func() (err error) {
			formations[i], err = du.Aggregator.GetFormationProgress(gctx, userID, formationID)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return projectUser(userID, nowFunc(), assignments, formations, records, attempts, certificates, passingOnly), nil
}

// GetFormationStats cohort statistics over every holder of an assignment to the formation
func (du *DashboardUseCaseImpl) GetFormationStats(ctx context.Context, formationID string) (*domain.FormationStatsModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "DashboardUseCaseImpl.GetFormationStats", "service")
	defer apmSpan.End()

	if _, err := du.Catalog.GetFormation(ctx, formationID); err != nil {
		return nil, err
	}
	assignments, err := du.Catalog.ListAssignmentsByFormation(ctx, formationID)
	if err != nil {
		return nil, err
	}

	var (
		progress     = make([]*domain.FormationProgressModel, len(assignments))
		attempts     []*domain.QuizAttemptModel
		certificates []*domain.CertificateModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	g.Go(func() error {
		quiz, err := du.QuizRepository.GetQuizByFormation(gctx, formationID)
		if err != nil {
			if domain.IsNotFound(err) {
				return nil
			}
			return err
		}
		attempts, err = du.QuizRepository.ListClosedAttemptsByQuiz(gctx, quiz.ID)
		return err
	})
	g.Go(func() (err error) {
		certificates, err = du.CertificateRepository.ListCertificatesByFormation(gctx, formationID)
		return
	})
	for i, a := range assignments {
		i, userID := i, a.UserID
		g.Go(func() (err error) {
			progress[i], err = du.Aggregator.GetFormationProgress(gctx, userID, formationID)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return projectFormation(formationID, progress, attempts, certificates), nil
}
