package inmemdb

import (
	"context"
	"sort"

	"github.com/pot-code/progress-engine/internal/domain"
)

type certificateRepository struct {
	db *DB
}

// NewCertificateRepository ...
func NewCertificateRepository(db *DB) domain.CertificateRepository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) InsertCertificate(ctx context.Context, c *domain.CertificateModel) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, stored := range repo.db.certificates {
		if stored.Number == c.Number || (stored.UserID == c.UserID && stored.FormationID == c.FormationID) {
			return false, nil
		}
	}
	clone := *c
	repo.db.certificates[c.ID] = &clone
	return true, nil
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, userID, formationID string) (*domain.CertificateModel, error) {
	result := repo.filter(func(c *domain.CertificateModel) bool {
		return c.UserID == userID && c.FormationID == formationID
	})
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("certificate of formation", formationID)
	}
	return result[0], nil
}

func (repo *certificateRepository) GetCertificateByNumber(ctx context.Context, number string) (*domain.CertificateModel, error) {
	result := repo.filter(func(c *domain.CertificateModel) bool { return c.Number == number })
	if len(result) == 0 {
		return nil, domain.NewNotFoundError("certificate", number)
	}
	return result[0], nil
}

func (repo *certificateRepository) ListCertificatesByUser(ctx context.Context, userID string) ([]*domain.CertificateModel, error) {
	result := repo.filter(func(c *domain.CertificateModel) bool { return c.UserID == userID })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IssuedAt.After(result[j].IssuedAt)
	})
	return result, nil
}

func (repo *certificateRepository) ListCertificatesByFormation(ctx context.Context, formationID string) ([]*domain.CertificateModel, error) {
	result := repo.filter(func(c *domain.CertificateModel) bool { return c.FormationID == formationID })
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IssuedAt.Before(result[j].IssuedAt)
	})
	return result, nil
}

func (repo *certificateRepository) filter(keep func(*domain.CertificateModel) bool) []*domain.CertificateModel {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var result []*domain.CertificateModel
	for _, c := range repo.db.certificates {
		if keep(c) {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result
}
