package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pot-code/progress-engine/internal/domain"
)

// NewFormation formation id with one section holding lessons id-l1 ... id-lN, each 100 units long
func NewFormation(id string, lessons int) *domain.FormationModel {
	section := &domain.SectionModel{ID: id + "-s1", FormationID: id, Title: "Section 1", Position: 1}
	for i := 1; i <= lessons; i++ {
		section.Lessons = append(section.Lessons, &domain.LessonModel{
			ID:            fmt.Sprintf("%s-l%d", id, i),
			FormationID:   id,
			SectionID:     section.ID,
			Title:         fmt.Sprintf("Lesson %d", i),
			Position:      i,
			NominalExtent: 100,
		})
	}
	return &domain.FormationModel{ID: id, Title: "Formation " + id, Sections: []*domain.SectionModel{section}}
}

// NewSingleChoiceQuiz quiz of formationID with one single choice question q1 worth points, a1 is right
// and a2 is wrong
func NewSingleChoiceQuiz(id, formationID string, points, passingScore int) *domain.QuizModel {
	return &domain.QuizModel{
		ID:           id,
		FormationID:  formationID,
		Title:        "Quiz " + id,
		PassingScore: passingScore,
		Questions: []*domain.QuestionModel{
			{
				ID: id + "-q1", QuizID: id, Prompt: "Pick the right one", Kind: domain.SingleChoice, Points: points, Position: 1,
				Answers: []*domain.AnswerModel{
					{ID: id + "-a1", QuestionID: id + "-q1", Label: "right", Position: 1, Correct: true},
					{ID: id + "-a2", QuestionID: id + "-q1", Label: "wrong", Position: 2},
				},
			},
		},
	}
}

// RecordingNotifier keeps every notification in memory
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []*domain.Notification
}

func (rn *RecordingNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.Sent = append(rn.Sent, n)
	return nil
}

// Kinds kinds of the recorded notifications, in order
func (rn *RecordingNotifier) Kinds() []domain.NotificationKind {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	kinds := make([]domain.NotificationKind, 0, len(rn.Sent))
	for _, n := range rn.Sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// FailingNotifier always fails
type FailingNotifier struct{}

func (FailingNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	return errors.New("sink unavailable")
}

// SequenceGenerator hands out prefix-1, prefix-2 ...
type SequenceGenerator struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

func (sg *SequenceGenerator) Generate() (string, error) {
	sg.mu.Lock()
	defer sg.mu.Unlock()
	sg.n++
	return fmt.Sprintf("%s-%d", sg.Prefix, sg.n), nil
}

// FixedGenerator returns the same ids in a cycle, used to force collisions
type FixedGenerator struct {
	mu  sync.Mutex
	IDs []string
	n   int
}

func (fg *FixedGenerator) Generate() (string, error) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	id := fg.IDs[fg.n%len(fg.IDs)]
	fg.n++
	return id, nil
}
