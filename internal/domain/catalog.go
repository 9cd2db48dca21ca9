package domain

import (
	"context"
	"time"
)

// LessonModel atomic content unit of a formation
type LessonModel struct {
	ID            string  `json:"id"`
	FormationID   string  `json:"formation_id"`
	SectionID     string  `json:"section_id"`
	Title         string  `json:"title"`
	Position      int     `json:"position"`
	NominalExtent float64 `json:"nominal_extent"` // duration in seconds or page count
}

// SectionModel ordered group of lessons
type SectionModel struct {
	ID          string         `json:"id"`
	FormationID string         `json:"formation_id"`
	Title       string         `json:"title"`
	Position    int            `json:"position"`
	Lessons     []*LessonModel `json:"lessons"`
}

// FormationModel a course made of sections, optionally closed by one quiz
type FormationModel struct {
	ID                      string          `json:"id"`
	Title                   string          `json:"title"`
	QuizRequired            bool            `json:"quiz_required"`
	CertificateValidityDays int             `json:"certificate_validity_days"` // 0 means certificates never expire
	Sections                []*SectionModel `json:"sections"`
}

// Lessons published lessons in section order, then lesson order
func (f *FormationModel) Lessons() []*LessonModel {
	var lessons []*LessonModel
	for _, s := range f.Sections {
		lessons = append(lessons, s.Lessons...)
	}
	return lessons
}

// AssignmentModel grants a user access to (and the obligation to complete) a formation
type AssignmentModel struct {
	UserID      string     `json:"user_id"`
	FormationID string     `json:"formation_id"`
	BankID      string     `json:"bank_id,omitempty"` // set when assigned through bank membership
	Mandatory   bool       `json:"mandatory"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	AssignedAt  time.Time  `json:"assigned_at"`
}

// CatalogRepository read-only view of the content catalog
type CatalogRepository interface {
	// GetFormation returns the formation with its published sections and lessons in order
	GetFormation(ctx context.Context, formationID string) (*FormationModel, error)
	GetLesson(ctx context.Context, lessonID string) (*LessonModel, error)
	ListAssignmentsByUser(ctx context.Context, userID string) ([]*AssignmentModel, error)
	ListAssignmentsByFormation(ctx context.Context, formationID string) ([]*AssignmentModel, error)
}
