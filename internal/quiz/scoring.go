package quiz

import (
	"math"

	"github.com/pot-code/progress-engine/internal/domain"
)

// Strategy grades a single answered question, returning whether it earns its points
type Strategy interface {
	Grade(q domain.KeyedQuestion, picked []string) bool
}

type singleChoiceStrategy struct{}

// Grade the picked id must be the unique correct id
func (singleChoiceStrategy) Grade(q domain.KeyedQuestion, picked []string) bool {
	return len(q.Correct) == 1 && len(picked) == 1 && picked[0] == q.Correct[0]
}

type multipleChoiceStrategy struct{}

// Grade all or nothing: the picked set must equal the correct set
func (multipleChoiceStrategy) Grade(q domain.KeyedQuestion, picked []string) bool {
	return setEqual(toSet(q.Correct), toSet(picked))
}

var strategies = map[domain.QuestionKind]Strategy{
	domain.SingleChoice:   singleChoiceStrategy{},
	domain.TrueFalse:      singleChoiceStrategy{},
	domain.MultipleChoice: multipleChoiceStrategy{},
}

// Score evaluate a submission against a frozen answer key. Unanswered questions and questions of
// unknown kind earn nothing. The result only depends on its inputs.
func Score(key *domain.AnswerKey, submission domain.Submission) *domain.ScoreResult {
	result := &domain.ScoreResult{
		Questions: make([]*domain.QuestionResult, 0, len(key.Questions)),
	}
	for _, q := range key.Questions {
		qr := &domain.QuestionResult{
			QuestionID:     q.QuestionID,
			PointsPossible: q.Points,
		}
		result.PointsPossible += q.Points

		if choice, ok := submission[q.QuestionID]; ok && len(choice.IDs) > 0 {
			if s, ok := strategies[q.Kind]; ok && s.Grade(q, choice.IDs) {
				qr.Correct = true
				qr.PointsEarned = q.Points
			}
		}
		result.PointsEarned += qr.PointsEarned
		result.Questions = append(result.Questions, qr)
	}

	result.Score = percentOf(result.PointsEarned, result.PointsPossible)
	result.Passed = result.Score >= key.PassingScore
	return result
}

func percentOf(earned, possible int) int {
	if possible <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(possible) * 100))
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
