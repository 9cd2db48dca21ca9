package domain

import (
	"context"
	"time"
)

// CertificateModel proof of completion, at most one per (user, formation)
type CertificateModel struct {
	ID               string     `json:"id"`
	Number           string     `json:"number"`
	UserID           string     `json:"user_id"`
	FormationID      string     `json:"formation_id"`
	IssuedAt         time.Time  `json:"issued_at"`
	CompletedAt      time.Time  `json:"completed_at"`
	Score            *int       `json:"score,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	VerificationCode string     `json:"verification_code"`
}

// Expired reports whether the certificate is past its expiry at t
func (c *CertificateModel) Expired(t time.Time) bool {
	return c.ExpiresAt != nil && !t.Before(*c.ExpiresAt)
}

// CertificateVerification public view of a certificate lookup
type CertificateVerification struct {
	Number      string     `json:"number"`
	FormationID string     `json:"formation_id"`
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
	// CodeChecked a verification code was supplied, CodeValid tells whether it matched
	CodeChecked bool `json:"code_checked"`
	CodeValid   bool `json:"code_valid"`
	Valid       bool `json:"valid"`
}

// BulkIssueReport outcome of issuing certificates for every assignment holder of a formation
type BulkIssueReport struct {
	FormationID string              `json:"formation_id"`
	Issued      []*CertificateModel `json:"issued"`
	Skipped     []string            `json:"skipped"`    // already certified
	Ineligible  []string            `json:"ineligible"` // completion predicate not met
	Failed      map[string]string   `json:"failed"`     // user id -> error
}

// CertificateRepository certificate storage, (user, formation) and number are unique
type CertificateRepository interface {
	// InsertCertificate store certificate unless it violates a uniqueness constraint, inserted is false then
	InsertCertificate(ctx context.Context, certificate *CertificateModel) (inserted bool, err error)
	GetCertificate(ctx context.Context, userID, formationID string) (*CertificateModel, error)
	GetCertificateByNumber(ctx context.Context, number string) (*CertificateModel, error)
	ListCertificatesByUser(ctx context.Context, userID string) ([]*CertificateModel, error)
	ListCertificatesByFormation(ctx context.Context, formationID string) ([]*CertificateModel, error)
}

// CompletionListener reacts to completion events
type CompletionListener interface {
	OnFormationComplete(ctx context.Context, userID, formationID string) (*CertificateModel, error)
	OnQuizPassed(ctx context.Context, userID, formationID string) (*CertificateModel, error)
}

// CertificateUseCase Completion & Certification Coordinator
type CertificateUseCase interface {
	CompletionListener
	IssueForFormation(ctx context.Context, formationID string) (*BulkIssueReport, error)
	ListUserCertificates(ctx context.Context, userID string) ([]*CertificateModel, error)
	VerifyCertificate(ctx context.Context, number, code string) (*CertificateVerification, error)
}
