package certificate

import (
	"context"
	"fmt"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"github.com/pot-code/progress-engine/internal/infrastructure/uuid"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

var nowFunc = time.Now

// QuizResults the part of quiz storage eligibility depends on
type QuizResults interface {
	GetQuizByFormation(ctx context.Context, formationID string) (*domain.QuizModel, error)
	BestPassingScore(ctx context.Context, userID, quizID string) (score int, ok bool, err error)
}

type issueOutcome int

const (
	outcomeIssued issueOutcome = iota
	outcomeExisting
	outcomeIneligible
)

// CertificateUseCaseImpl issues at most one certificate per (user, formation)
type CertificateUseCaseImpl struct {
	CertificateRepository domain.CertificateRepository
	Catalog               domain.CatalogRepository
	Aggregator            domain.FormationProgressUseCase
	Quizzes               QuizResults
	Notifier              domain.Notifier
	Numbers               *NumberGenerator
	UUIDGenerator         uuid.Generator
	Secret                []byte
	NumberRetries         int
}

var _ domain.CertificateUseCase = &CertificateUseCaseImpl{}

// NewCertificateUseCase ...
func NewCertificateUseCase(
	CertificateRepository domain.CertificateRepository,
	Catalog domain.CatalogRepository,
	Aggregator domain.FormationProgressUseCase,
	Quizzes QuizResults,
	Notifier domain.Notifier,
	UUIDGenerator uuid.Generator,
	secret string,
	numberRetries int,
) *CertificateUseCaseImpl {
	if numberRetries < 1 {
		numberRetries = 1
	}
	return &CertificateUseCaseImpl{
		CertificateRepository: CertificateRepository,
		Catalog:               Catalog,
		Aggregator:            Aggregator,
		Quizzes:               Quizzes,
		Notifier:              Notifier,
		Numbers:               NewNumberGenerator(),
		UUIDGenerator:         UUIDGenerator,
		Secret:                []byte(secret),
		NumberRetries:         numberRetries,
	}
}

// OnFormationComplete issue the certificate if the quiz condition holds too, nil when not eligible
func (cu *CertificateUseCaseImpl) OnFormationComplete(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CertificateUseCaseImpl.OnFormationComplete", "service")
	defer apmSpan.End()

	c, _, err := cu.issue(ctx, userID, formationID)
	return c, err
}

// OnQuizPassed issue the certificate if every lesson is completed too, nil when not eligible
func (cu *CertificateUseCaseImpl) OnQuizPassed(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CertificateUseCaseImpl.OnQuizPassed", "service")
	defer apmSpan.End()

	c, _, err := cu.issue(ctx, userID, formationID)
	return c, err
}

// IssueForFormation run the issuance path for every holder of an assignment, one failing user does
// not stop the others
func (cu *CertificateUseCaseImpl) IssueForFormation(ctx context.Context, formationID string) (*domain.BulkIssueReport, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CertificateUseCaseImpl.IssueForFormation", "service")
	defer apmSpan.End()

	if _, err := cu.Catalog.GetFormation(ctx, formationID); err != nil {
		return nil, err
	}
	assignments, err := cu.Catalog.ListAssignmentsByFormation(ctx, formationID)
	if err != nil {
		return nil, err
	}

	report := &domain.BulkIssueReport{
		FormationID: formationID,
		Issued:      []*domain.CertificateModel{},
		Skipped:     []string{},
		Ineligible:  []string{},
		Failed:      map[string]string{},
	}
	for _, a := range assignments {
		c, outcome, err := cu.issue(ctx, a.UserID, formationID)
		if err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("failed to issue certificate",
				zap.String("user.id", a.UserID),
				zap.String("formation.id", formationID),
				zap.Error(err))
			report.Failed[a.UserID] = "internal error"
			if domain.IsNotFound(err) {
				report.Failed[a.UserID] = err.Error()
			}
			continue
		}
		switch outcome {
		case outcomeIssued:
			report.Issued = append(report.Issued, c)
		case outcomeExisting:
			report.Skipped = append(report.Skipped, a.UserID)
		case outcomeIneligible:
			report.Ineligible = append(report.Ineligible, a.UserID)
		}
	}
	return report, nil
}

// ListUserCertificates most recently issued first
func (cu *CertificateUseCaseImpl) ListUserCertificates(ctx context.Context, userID string) ([]*domain.CertificateModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CertificateUseCaseImpl.ListUserCertificates", "service")
	defer apmSpan.End()

	return cu.CertificateRepository.ListCertificatesByUser(ctx, userID)
}

// VerifyCertificate public lookup. code is optional, when given it must match the certificate.
func (cu *CertificateUseCaseImpl) VerifyCertificate(ctx context.Context, number, code string) (*domain.CertificateVerification, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CertificateUseCaseImpl.VerifyCertificate", "service")
	defer apmSpan.End()

	c, err := cu.CertificateRepository.GetCertificateByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	v := &domain.CertificateVerification{
		Number:      c.Number,
		FormationID: c.FormationID,
		IssuedAt:    c.IssuedAt,
		ExpiresAt:   c.ExpiresAt,
		Expired:     c.Expired(nowFunc()),
		CodeChecked: code != "",
	}
	if v.CodeChecked {
		v.CodeValid = CodeMatches(c.VerificationCode, code)
	}
	v.Valid = !v.Expired && (!v.CodeChecked || v.CodeValid)
	return v, nil
}

func (cu *CertificateUseCaseImpl) issue(ctx context.Context, userID, formationID string) (*domain.CertificateModel, issueOutcome, error) {
	existing, err := cu.CertificateRepository.GetCertificate(ctx, userID, formationID)
	if err == nil {
		return existing, outcomeExisting, nil
	}
	if !domain.IsNotFound(err) {
		return nil, 0, err
	}

	formation, err := cu.Catalog.GetFormation(ctx, formationID)
	if err != nil {
		return nil, 0, err
	}
	progress, err := cu.Aggregator.GetFormationProgress(ctx, userID, formationID)
	if err != nil {
		return nil, 0, err
	}
	if !progress.Complete || progress.CompletedAt == nil {
		return nil, outcomeIneligible, nil
	}

	score, hasQuiz, err := cu.quizScore(ctx, userID, formationID)
	if err != nil {
		return nil, 0, err
	}
	if formation.QuizRequired && hasQuiz && score == nil {
		return nil, outcomeIneligible, nil
	}

	now := nowFunc().UTC().Truncate(time.Millisecond)
	c := &domain.CertificateModel{
		UserID:      userID,
		FormationID: formationID,
		IssuedAt:    now,
		CompletedAt: *progress.CompletedAt,
		Score:       score,
	}
	if formation.CertificateValidityDays > 0 {
		expiresAt := now.AddDate(0, 0, formation.CertificateValidityDays)
		c.ExpiresAt = &expiresAt
	}

	for i := 0; i < cu.NumberRetries; i++ {
		if c.ID, err = cu.UUIDGenerator.Generate(); err != nil {
			return nil, 0, fmt.Errorf("failed to generate certificate id: %w", err)
		}
		if c.Number, err = cu.Numbers.Generate(now); err != nil {
			return nil, 0, fmt.Errorf("failed to generate certificate number: %w", err)
		}
		c.VerificationCode = VerificationCode(cu.Secret, c.Number, userID, formationID)

		inserted, err := cu.CertificateRepository.InsertCertificate(ctx, c)
		if err != nil {
			return nil, 0, err
		}
		if inserted {
			cu.notifyIssued(ctx, c)
			return c, outcomeIssued, nil
		}

		// either a concurrent issuance won, or the number is taken
		existing, err := cu.CertificateRepository.GetCertificate(ctx, userID, formationID)
		if err == nil {
			return existing, outcomeExisting, nil
		}
		if !domain.IsNotFound(err) {
			return nil, 0, err
		}
	}
	return nil, 0, fmt.Errorf("no free certificate number after %d attempts", cu.NumberRetries)
}

// quizScore best passing score of the formation's quiz, nil when nothing passed
func (cu *CertificateUseCaseImpl) quizScore(ctx context.Context, userID, formationID string) (score *int, hasQuiz bool, err error) {
	quiz, err := cu.Quizzes.GetQuizByFormation(ctx, formationID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	best, ok, err := cu.Quizzes.BestPassingScore(ctx, userID, quiz.ID)
	if err != nil {
		return nil, true, err
	}
	if !ok {
		return nil, true, nil
	}
	return &best, true, nil
}

func (cu *CertificateUseCaseImpl) notifyIssued(ctx context.Context, c *domain.CertificateModel) {
	err := cu.Notifier.Notify(ctx, &domain.Notification{
		UserID:    c.UserID,
		Kind:      domain.NotifyCertificateIssued,
		Title:     "Certificate issued",
		Message:   fmt.Sprintf("Your certificate %s is available.", c.Number),
		CreatedAt: c.IssuedAt,
		Payload: map[string]string{
			"certificate_id":     c.ID,
			"certificate_number": c.Number,
			"formation_id":       c.FormationID,
		},
	})
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to send certificate notification",
			zap.String("user.id", c.UserID),
			zap.String("certificate.number", c.Number),
			zap.Error(err))
	}
}
