package certificate

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
)

const certificateColumns = `id, number, user_id, formation_id, issued_at, completed_at, score, expires_at, verification_code`

// CertificateRepository SQL certificate storage
type CertificateRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ domain.CertificateRepository = &CertificateRepository{}

// NewCertificateRepository ...
func NewCertificateRepository(Conn driver.ITransactionalDB) *CertificateRepository {
	return &CertificateRepository{
		Conn: Conn,
	}
}

// InsertCertificate relies on the unique constraints, a clash inserts nothing
func (repo *CertificateRepository) InsertCertificate(ctx context.Context, c *domain.CertificateModel) (bool, error) {
	var score *int64
	if c.Score != nil {
		s := int64(*c.Score)
		score = &s
	}
	res, err := repo.Conn.ExecContext(ctx, `
INSERT INTO certificates (`+certificateColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT DO NOTHING
	`, c.ID, c.Number, c.UserID, c.FormationID, driver.Millis(c.IssuedAt), driver.Millis(c.CompletedAt),
		score, driver.NullMillis(c.ExpiresAt), c.VerificationCode)
	if err != nil {
		return false, errors.Wrap(err, "insert certificate")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "insert certificate")
	}
	return affected > 0, nil
}

func (repo *CertificateRepository) GetCertificate(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+certificateColumns+`
FROM
    certificates
WHERE
    user_id = $1 AND formation_id = $2
	`, userID, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "get certificate")
	}
	result, err := scanCertificates(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("certificate of formation", formationID)
	}
	return result[0], nil
}

func (repo *CertificateRepository) GetCertificateByNumber(ctx context.Context, number string) (*domain.CertificateModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+certificateColumns+`
FROM
    certificates
WHERE
    number = $1
	`, number)
	if err != nil {
		return nil, errors.Wrap(err, "get certificate by number")
	}
	result, err := scanCertificates(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("certificate", number)
	}
	return result[0], nil
}

func (repo *CertificateRepository) ListCertificatesByUser(ctx context.Context, userID string) ([]*domain.CertificateModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+certificateColumns+`
FROM
    certificates
WHERE
    user_id = $1
ORDER BY issued_at DESC, number ASC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list certificates by user")
	}
	return scanCertificates(rows)
}

func (repo *CertificateRepository) ListCertificatesByFormation(ctx context.Context, formationID string) ([]*domain.CertificateModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT `+certificateColumns+`
FROM
    certificates
WHERE
    formation_id = $1
ORDER BY issued_at ASC, number ASC
	`, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "list certificates by formation")
	}
	return scanCertificates(rows)
}

func scanCertificates(rows driver.ISQLRows) ([]*domain.CertificateModel, error) {
	defer rows.Close()

	var result []*domain.CertificateModel
	for rows.Next() {
		var (
			item        = new(domain.CertificateModel)
			issuedAt    int64
			completedAt int64
			score       *int64
			expiresAt   *int64
		)
		err := rows.Scan(&item.ID, &item.Number, &item.UserID, &item.FormationID, &issuedAt, &completedAt,
			&score, &expiresAt, &item.VerificationCode)
		if err != nil {
			return nil, errors.Wrap(err, "scan certificate")
		}
		item.IssuedAt = driver.FromMillis(issuedAt)
		item.CompletedAt = driver.FromMillis(completedAt)
		item.ExpiresAt = driver.FromNullMillis(expiresAt)
		if score != nil {
			s := int(*score)
			item.Score = &s
		}
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "scan certificate")
}
