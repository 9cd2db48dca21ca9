package catalog

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
)

// CatalogRepository SQL view over formations, sections, lessons and assignments
type CatalogRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ domain.CatalogRepository = &CatalogRepository{}

// NewCatalogRepository ...
func NewCatalogRepository(Conn driver.ITransactionalDB) *CatalogRepository {
	return &CatalogRepository{
		Conn: Conn,
	}
}

func (repo *CatalogRepository) GetFormation(ctx context.Context, formationID string) (*domain.FormationModel, error) {
	formation, err := repo.getFormationRow(ctx, formationID)
	if err != nil {
		return nil, err
	}
	sections, err := repo.listSections(ctx, formationID)
	if err != nil {
		return nil, err
	}
	lessons, err := repo.listLessons(ctx, formationID)
	if err != nil {
		return nil, err
	}

	bySection := make(map[string]*domain.SectionModel, len(sections))
	for _, s := range sections {
		bySection[s.ID] = s
	}
	for _, l := range lessons {
		if s, ok := bySection[l.SectionID]; ok {
			s.Lessons = append(s.Lessons, l)
		}
	}
	formation.Sections = sections
	return formation, nil
}

func (repo *CatalogRepository) getFormationRow(ctx context.Context, formationID string) (*domain.FormationModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, title, quiz_required, certificate_validity_days
FROM
    formations
WHERE
    id = $1
	`, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "get formation")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "get formation")
		}
		return nil, domain.NewNotFoundError("formation", formationID)
	}
	item := new(domain.FormationModel)
	if err := rows.Scan(&item.ID, &item.Title, &item.QuizRequired, &item.CertificateValidityDays); err != nil {
		return nil, errors.Wrap(err, "get formation")
	}
	return item, nil
}

func (repo *CatalogRepository) listSections(ctx context.Context, formationID string) ([]*domain.SectionModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, formation_id, title, position
FROM
    sections
WHERE
    formation_id = $1
ORDER BY position ASC, id ASC
	`, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "list sections")
	}
	defer rows.Close()

	var result []*domain.SectionModel
	for rows.Next() {
		item := new(domain.SectionModel)
		if err := rows.Scan(&item.ID, &item.FormationID, &item.Title, &item.Position); err != nil {
			return nil, errors.Wrap(err, "list sections")
		}
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "list sections")
}

func (repo *CatalogRepository) listLessons(ctx context.Context, formationID string) ([]*domain.LessonModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, formation_id, section_id, title, position, nominal_extent
FROM
    lessons
WHERE
    formation_id = $1 AND published = TRUE
ORDER BY position ASC, id ASC
	`, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "list lessons")
	}
	return scanLessons(rows)
}

func (repo *CatalogRepository) GetLesson(ctx context.Context, lessonID string) (*domain.LessonModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, formation_id, section_id, title, position, nominal_extent
FROM
    lessons
WHERE
    id = $1 AND published = TRUE
	`, lessonID)
	if err != nil {
		return nil, errors.Wrap(err, "get lesson")
	}
	lessons, err := scanLessons(rows)
	if err != nil {
		return nil, err
	}
	if len(lessons) == 0 {
		return nil, domain.NewNotFoundError("lesson", lessonID)
	}
	return lessons[0], nil
}

func scanLessons(rows driver.ISQLRows) ([]*domain.LessonModel, error) {
	defer rows.Close()

	var result []*domain.LessonModel
	for rows.Next() {
		item := new(domain.LessonModel)
		if err := rows.Scan(&item.ID, &item.FormationID, &item.SectionID, &item.Title, &item.Position, &item.NominalExtent); err != nil {
			return nil, errors.Wrap(err, "scan lesson")
		}
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "scan lesson")
}

// ListAssignmentsByUser direct assignments and assignments inherited from bank membership
func (repo *CatalogRepository) ListAssignmentsByUser(ctx context.Context, userID string) ([]*domain.AssignmentModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    user_id, formation_id, '' AS bank_id, mandatory, due_at, assigned_at
FROM
    formation_assignments
WHERE
    user_id = $1
UNION ALL
SELECT
    bm.user_id, bf.formation_id, bf.bank_id, bf.mandatory, bf.due_at, bf.assigned_at
FROM
    bank_members bm
        JOIN
    bank_formations bf ON (bf.bank_id = bm.bank_id)
WHERE
    bm.user_id = $1
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments by user")
	}
	assignments, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	return dedupeAssignments(assignments, func(a *domain.AssignmentModel) string { return a.FormationID }), nil
}

// ListAssignmentsByFormation every holder of formation, direct or through a bank
func (repo *CatalogRepository) ListAssignmentsByFormation(ctx context.Context, formationID string) ([]*domain.AssignmentModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    user_id, formation_id, '' AS bank_id, mandatory, due_at, assigned_at
FROM
    formation_assignments
WHERE
    formation_id = $1
UNION ALL
SELECT
    bm.user_id, bf.formation_id, bf.bank_id, bf.mandatory, bf.due_at, bf.assigned_at
FROM
    bank_formations bf
        JOIN
    bank_members bm ON (bm.bank_id = bf.bank_id)
WHERE
    bf.formation_id = $1
	`, formationID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments by formation")
	}
	assignments, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	return dedupeAssignments(assignments, func(a *domain.AssignmentModel) string { return a.UserID }), nil
}

func scanAssignments(rows driver.ISQLRows) ([]*domain.AssignmentModel, error) {
	defer rows.Close()

	var result []*domain.AssignmentModel
	for rows.Next() {
		var (
			item       = new(domain.AssignmentModel)
			dueAt      *int64
			assignedAt int64
		)
		if err := rows.Scan(&item.UserID, &item.FormationID, &item.BankID, &item.Mandatory, &dueAt, &assignedAt); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		item.DueAt = driver.FromNullMillis(dueAt)
		item.AssignedAt = driver.FromMillis(assignedAt)
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "scan assignment")
}

// dedupeAssignments keep one assignment per key, a direct assignment wins over a bank one
func dedupeAssignments(assignments []*domain.AssignmentModel, key func(*domain.AssignmentModel) string) []*domain.AssignmentModel {
	picked := make(map[string]*domain.AssignmentModel, len(assignments))
	for _, a := range assignments {
		k := key(a)
		if prev, ok := picked[k]; ok && (prev.BankID == "" || a.BankID != "") {
			continue
		}
		picked[k] = a
	}

	result := make([]*domain.AssignmentModel, 0, len(picked))
	for _, a := range picked {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].AssignedAt.Equal(result[j].AssignedAt) {
			return result[i].AssignedAt.Before(result[j].AssignedAt)
		}
		return key(result[i]) < key(result[j])
	})
	return result
}
