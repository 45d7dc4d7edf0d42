package app

import (
	"fmt"

	"sgd-certification-service/internal/domain"
)

// ScoreResult is the output of the scoring engine.
type ScoreResult struct {
	Score  int
	Total  int
	Passed bool
}

// Score compares each answer with the correct index of the question at the same
// position. Unanswered or out-of-range answers count as incorrect. It has no side effects.
func Score(answers []int, questions []domain.Question, policy domain.Policy) (ScoreResult, error) {
	if len(questions) == 0 {
		return ScoreResult{}, fmt.Errorf("%w: no questions to score", domain.ErrInvalidQuestionSet)
	}
	if len(answers) != len(questions) {
		return ScoreResult{}, fmt.Errorf("%w: %d answers for %d questions", domain.ErrInvalidQuestionSet, len(answers), len(questions))
	}

	score := 0
	for i, q := range questions {
		if answers[i] != domain.Unanswered && answers[i] == q.CorrectIndex {
			score++
		}
	}
	total := len(questions)
	return ScoreResult{
		Score:  score,
		Total:  total,
		Passed: score >= policy.PassThreshold(total),
	}, nil
}
