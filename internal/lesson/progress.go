package lesson

import (
	"math"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
)

// derivePercentage position over extent as a percentage rounded to two decimals, clamped to [0, 100]
func derivePercentage(position, extent float64) float64 {
	if extent <= 0 {
		return 0
	}
	return clampPercentage(math.Round(position/extent*10000) / 100)
}

func clampPercentage(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// buildProgress the record one observation asks to store. existing may be nil. Merging with
// concurrent writers is left to the storage upsert.
func buildProgress(
	existing *domain.LessonProgressModel,
	lesson *domain.LessonModel,
	userID, formationID string,
	obs *domain.ProgressObservation,
	now time.Time,
) *domain.LessonProgressModel {
	p := &domain.LessonProgressModel{
		UserID:         userID,
		LessonID:       lesson.ID,
		FormationID:    formationID,
		TotalExtent:    lesson.NominalExtent,
		StartedAt:      now,
		LastAccessedAt: now,
	}
	if existing != nil {
		p.StartedAt = existing.StartedAt
		p.Percentage = existing.Percentage
		p.CurrentPosition = existing.CurrentPosition
		p.AccumulatedTime = existing.AccumulatedTime
		if existing.TotalExtent > 0 {
			p.TotalExtent = existing.TotalExtent
		}
	}

	if obs.TotalExtent != nil {
		p.TotalExtent = *obs.TotalExtent
	}
	if obs.CurrentPosition != nil {
		p.CurrentPosition = *obs.CurrentPosition
	}
	if obs.ElapsedTime != nil {
		p.AccumulatedTime = *obs.ElapsedTime
	}

	switch {
	case obs.Percentage != nil:
		p.Percentage = clampPercentage(*obs.Percentage)
	case obs.CurrentPosition != nil && p.TotalExtent > 0:
		p.Percentage = derivePercentage(p.CurrentPosition, p.TotalExtent)
	}

	// completion follows the stored value, 99.6 stays in progress
	explicit := obs.Completed != nil && *obs.Completed
	if explicit || p.Percentage >= 100 {
		p.Completed = true
		p.Percentage = 100
		p.CompletedAt = &now
	}
	return p
}
