package certificate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/progress-engine/internal/catalog"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/formation"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
	"github.com/pot-code/progress-engine/internal/lesson"
	"github.com/pot-code/progress-engine/internal/quiz"
	"github.com/pot-code/progress-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rivalRepository reports no certificate on its first lookup after storing a rival one,
// the way a concurrent issuance lands between the read and the insert
type rivalRepository struct {
	domain.CertificateRepository
	once  sync.Once
	rival *domain.CertificateModel
}

func (rr *rivalRepository) GetCertificate(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	raced := false
	var err error
	rr.once.Do(func() {
		raced = true
		_, err = rr.CertificateRepository.InsertCertificate(ctx, rr.rival)
	})
	if err != nil {
		return nil, err
	}
	if raced {
		return nil, domain.NewNotFoundError("certificate", userID+"/"+formationID)
	}
	return rr.CertificateRepository.GetCertificate(ctx, userID, formationID)
}

func newSQLCertificateUseCase(t *testing.T, repo func(domain.CertificateRepository) domain.CertificateRepository) (*CertificateUseCaseImpl, driver.ITransactionalDB, *testutil.RecordingNotifier) {
	nowFunc = func() time.Time { return issuedAt }
	t.Cleanup(func() { nowFunc = time.Now })

	conn := testutil.OpenDB(t)
	f := testutil.NewFormation("f1", 2)
	testutil.SeedFormation(t, conn, f)

	progress := lesson.NewLessonProgressRepository(conn)
	ctx := testutil.Context(t)
	for i, l := range f.Lessons() {
		at := issuedAt.Add(-time.Duration(len(f.Lessons())-i) * time.Hour)
		_, err := progress.UpsertLessonProgress(ctx, &domain.LessonProgressModel{
			UserID: "u1", LessonID: l.ID, FormationID: f.ID, Percentage: 100, Completed: true,
			StartedAt: at, LastAccessedAt: at, CompletedAt: &at,
		})
		require.NoError(t, err)
	}

	catalogRepo := catalog.NewCatalogRepository(conn)
	var certificates domain.CertificateRepository = NewCertificateRepository(conn)
	if repo != nil {
		certificates = repo(certificates)
	}
	notifier := new(testutil.RecordingNotifier)
	uc := NewCertificateUseCase(certificates, catalogRepo,
		formation.NewFormationProgressUseCase(catalogRepo, progress), quiz.NewQuizRepository(conn), notifier,
		&testutil.SequenceGenerator{Prefix: "cert"}, testSecret, 3)
	return uc, conn, notifier
}

func TestOnFormationComplete_Concurrent(t *testing.T) {
	uc, conn, notifier := newSQLCertificateUseCase(t, nil)
	ctx := testutil.Context(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*domain.CertificateModel, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = uc.OnFormationComplete(ctx, "u1", "f1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID)
		assert.Equal(t, results[0].Number, results[i].Number)
	}

	stored, err := NewCertificateRepository(conn).ListCertificatesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, results[0].Number, stored[0].Number)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyCertificateIssued}, notifier.Kinds())
}

func TestOnFormationComplete_LostRace(t *testing.T) {
	rival := newCertificate("rival", "CERT-20240301-RRRRRRRR", "u1", "f1", issuedAt)
	uc, conn, notifier := newSQLCertificateUseCase(t, func(repo domain.CertificateRepository) domain.CertificateRepository {
		return &rivalRepository{CertificateRepository: repo, rival: rival}
	})
	ctx := testutil.Context(t)

	c, err := uc.OnFormationComplete(ctx, "u1", "f1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "rival", c.ID, "the certificate that won the insert")
	assert.Equal(t, rival.Number, c.Number)
	assert.Empty(t, notifier.Kinds(), "the winner announced it")

	stored, err := NewCertificateRepository(conn).ListCertificatesByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
