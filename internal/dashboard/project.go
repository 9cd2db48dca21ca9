package dashboard

import (
	"fmt"
	"math"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
)

// round2 two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// meanScore average of closed attempt scores, passing-only keeps passed attempts. Zero when nothing counts.
func meanScore(attempts []*domain.QuizAttemptModel, passingOnly bool) (count int, mean float64) {
	sum := 0
	for _, a := range attempts {
		if !a.Closed() || (passingOnly && !a.Passed) {
			continue
		}
		count++
		sum += a.Score
	}
	if count == 0 {
		return 0, 0
	}
	return count, round2(float64(sum) / float64(count))
}

// FormatTimeSpent render seconds as "2h 05m", or "12m" below one hour
func FormatTimeSpent(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// projectUser fold formation progress, lesson records, attempts and certificates into one dashboard
func projectUser(
	userID string,
	now time.Time,
	assignments []*domain.AssignmentModel,
	formations []*domain.FormationProgressModel,
	records []*domain.LessonProgressModel,
	attempts []*domain.QuizAttemptModel,
	certificates []*domain.CertificateModel,
	passingOnly bool,
) *domain.DashboardModel {
	d := &domain.DashboardModel{
		UserID:          userID,
		TotalFormations: len(assignments),
		Certificates:    len(certificates),
	}
	for i, fp := range formations {
		switch {
		case fp.Complete:
			d.CompletedFormations++
		case fp.Started:
			d.InProgressFormations++
		default:
			d.PendingFormations++
		}
		if due := assignments[i].DueAt; !fp.Complete && due != nil && due.Before(now) {
			d.OverdueFormations++
		}
	}

	for _, r := range records {
		d.TimeSpent += r.AccumulatedTime
		if d.LastActivity == nil || r.LastAccessedAt.After(*d.LastActivity) {
			last := r.LastAccessedAt
			d.LastActivity = &last
		}
	}
	d.TimeSpentDisplay = FormatTimeSpent(d.TimeSpent)
	d.ClosedAttempts, d.AverageQuizScore = meanScore(attempts, passingOnly)
	return d
}

// projectFormation cohort statistics of one formation
func projectFormation(
	formationID string,
	progress []*domain.FormationProgressModel,
	attempts []*domain.QuizAttemptModel,
	certificates []*domain.CertificateModel,
) *domain.FormationStatsModel {
	s := &domain.FormationStatsModel{
		FormationID:  formationID,
		Assigned:     len(progress),
		Certificates: len(certificates),
	}
	sum := 0.0
	for _, fp := range progress {
		switch {
		case fp.Complete:
			s.Completed++
		case fp.Started:
			s.InProgress++
		default:
			s.NotStarted++
		}
		sum += fp.AveragePercentage
	}
	if s.Assigned > 0 {
		s.AveragePercentage = round2(sum / float64(s.Assigned))
	}

	s.ClosedAttempts, s.AverageQuizScore = meanScore(attempts, false)
	if s.ClosedAttempts > 0 {
		passed, _ := meanScore(attempts, true)
		s.PassRate = round2(float64(passed) * 100 / float64(s.ClosedAttempts))
	}
	return s
}
