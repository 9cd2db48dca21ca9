package domain

import (
	"context"
	"time"
)

// LessonProgressModel a learner's advancement through one lesson
type LessonProgressModel struct {
	UserID          string     `json:"user_id"`
	LessonID        string     `json:"lesson_id"`
	FormationID     string     `json:"formation_id"`
	Percentage      float64    `json:"percentage"`
	CurrentPosition float64    `json:"current_position"`
	TotalExtent     float64    `json:"total_extent"`
	AccumulatedTime int64      `json:"accumulated_time"` // seconds
	Completed       bool       `json:"completed"`
	StartedAt       time.Time  `json:"started_at"`
	LastAccessedAt  time.Time  `json:"last_accessed_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ProgressObservation one progress report sent by a client, every field is optional
type ProgressObservation struct {
	Percentage      *float64 `json:"percentage,omitempty" validate:"omitempty,min=0,max=100"`
	CurrentPosition *float64 `json:"current_position,omitempty" validate:"omitempty,min=0"`
	TotalExtent     *float64 `json:"total_extent,omitempty" validate:"omitempty,gt=0"`
	ElapsedTime     *int64   `json:"elapsed_time,omitempty" validate:"omitempty,min=0"` // running total for the lesson, in seconds
	Completed       *bool    `json:"completed,omitempty"`
}

// ProgressRecordResult outcome of recording one observation
type ProgressRecordResult struct {
	Progress *LessonProgressModel `json:"progress"`
	// CompletedNow this call moved the lesson from not completed to completed
	CompletedNow bool                    `json:"completed_now"`
	Formation    *FormationProgressModel `json:"-"`
}

// LessonProgressRepository lesson progress storage
type LessonProgressRepository interface {
	GetLessonProgress(ctx context.Context, userID, lessonID string) (*LessonProgressModel, error)
	// UpsertLessonProgress create or merge the record keyed by (user, lesson) in one atomic write and
	// return the stored state
	UpsertLessonProgress(ctx context.Context, progress *LessonProgressModel) (*LessonProgressModel, error)
	ListLessonProgressByUser(ctx context.Context, userID string) ([]*LessonProgressModel, error)
	ListLessonProgressByUserFormation(ctx context.Context, userID, formationID string) ([]*LessonProgressModel, error)
}

// LessonProgressUseCase Lesson Progress Recorder
type LessonProgressUseCase interface {
	RecordProgress(ctx context.Context, userID, lessonID, formationID string, observation *ProgressObservation) (*ProgressRecordResult, error)
	GetUserLessonProgress(ctx context.Context, userID string) ([]*LessonProgressModel, error)
}

// LessonProgressSummary one line of a formation progress report
type LessonProgressSummary struct {
	LessonID       string     `json:"lesson_id"`
	SectionID      string     `json:"section_id"`
	Title          string     `json:"title"`
	Percentage     float64    `json:"percentage"`
	Completed      bool       `json:"completed"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// FormationProgressModel formation level completion derived from lesson progress
type FormationProgressModel struct {
	UserID            string                   `json:"user_id"`
	FormationID       string                   `json:"formation_id"`
	TotalLessons      int                      `json:"total_lessons"`
	CompletedLessons  int                      `json:"completed_lessons"`
	AveragePercentage float64                  `json:"average_percentage"`
	Complete          bool                     `json:"complete"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	Started           bool                     `json:"started"`
	LastAccessedAt    *time.Time               `json:"last_accessed_at,omitempty"`
	Lessons           []*LessonProgressSummary `json:"lessons"`
}

// FormationProgressUseCase Formation Progress Aggregator
type FormationProgressUseCase interface {
	GetFormationProgress(ctx context.Context, userID, formationID string) (*FormationProgressModel, error)
}
