package formation

import (
	"math"

	"github.com/pot-code/progress-engine/internal/domain"
)

// Aggregate derive formation progress from its published lessons and the learner's lesson records.
// Untouched lessons count as 0 %, records of lessons no longer published are ignored.
func Aggregate(userID string, formation *domain.FormationModel, records []*domain.LessonProgressModel) *domain.FormationProgressModel {
	byLesson := make(map[string]*domain.LessonProgressModel, len(records))
	for _, r := range records {
		byLesson[r.LessonID] = r
	}

	lessons := formation.Lessons()
	result := &domain.FormationProgressModel{
		UserID:       userID,
		FormationID:  formation.ID,
		TotalLessons: len(lessons),
		Lessons:      make([]*domain.LessonProgressSummary, 0, len(lessons)),
	}

	sum := 0.0
	for _, l := range lessons {
		summary := &domain.LessonProgressSummary{
			LessonID:  l.ID,
			SectionID: l.SectionID,
			Title:     l.Title,
		}
		if r, ok := byLesson[l.ID]; ok {
			summary.Percentage = r.Percentage
			summary.Completed = r.Completed
			lastAccessed := r.LastAccessedAt
			summary.LastAccessedAt = &lastAccessed

			result.Started = true
			if result.LastAccessedAt == nil || lastAccessed.After(*result.LastAccessedAt) {
				result.LastAccessedAt = &lastAccessed
			}
			if r.Completed {
				result.CompletedLessons++
				if r.CompletedAt != nil && (result.CompletedAt == nil || r.CompletedAt.After(*result.CompletedAt)) {
					completedAt := *r.CompletedAt
					result.CompletedAt = &completedAt
				}
			}
		}
		sum += summary.Percentage
		result.Lessons = append(result.Lessons, summary)
	}

	if result.TotalLessons > 0 {
		avg := sum / float64(result.TotalLessons)
		result.AveragePercentage = math.Round(avg*100) / 100
	}
	result.Complete = result.TotalLessons > 0 && result.CompletedLessons == result.TotalLessons
	if !result.Complete {
		result.CompletedAt = nil
	}
	return result
}
