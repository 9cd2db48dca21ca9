package domain

import (
	"context"
	"time"
)

// DashboardModel per user summary statistics
type DashboardModel struct {
	UserID               string     `json:"user_id"`
	TotalFormations      int        `json:"total_formations"`
	CompletedFormations  int        `json:"completed_formations"`
	InProgressFormations int        `json:"in_progress_formations"`
	PendingFormations    int        `json:"pending_formations"`
	OverdueFormations    int        `json:"overdue_formations"`
	ClosedAttempts       int        `json:"closed_attempts"`
	AverageQuizScore     float64    `json:"average_quiz_score"`
	TimeSpent            int64      `json:"time_spent"` // seconds
	TimeSpentDisplay     string     `json:"time_spent_display"`
	LastActivity         *time.Time `json:"last_activity,omitempty"`
	Certificates         int        `json:"certificates"`
}

// FormationStatsModel per cohort statistics of one formation
type FormationStatsModel struct {
	FormationID       string  `json:"formation_id"`
	Assigned          int     `json:"assigned"`
	Completed         int     `json:"completed"`
	InProgress        int     `json:"in_progress"`
	NotStarted        int     `json:"not_started"`
	AveragePercentage float64 `json:"average_percentage"`
	ClosedAttempts    int     `json:"closed_attempts"`
	AverageQuizScore  float64 `json:"average_quiz_score"`
	PassRate          float64 `json:"pass_rate"`
	Certificates      int     `json:"certificates"`
}

// DashboardUseCase Dashboard/Statistics Projector
type DashboardUseCase interface {
	GetUserDashboard(ctx context.Context, userID string, passingOnly bool) (*DashboardModel, error)
	GetFormationStats(ctx context.Context, formationID string) (*FormationStatsModel, error)
}
