package app_test

import (
	"errors"
	"math/rand"
	"testing"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/domain"
)

func TestScorePassThreshold(t *testing.T) {
	policy := domain.DefaultPolicy()
	questions := bank(10)

	cases := []struct {
		name    string
		correct int
		passed  bool
	}{
		{"eight of ten passes", 8, true},
		{"seven of ten fails", 7, false},
		{"all correct", 10, true},
		{"none correct", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := app.Score(answersWithCorrect(questions, tc.correct), questions, policy)
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if got.Score != tc.correct || got.Total != 10 || got.Passed != tc.passed {
				t.Fatalf("expected %d/10 passed=%v, got %+v", tc.correct, tc.passed, got)
			}
		})
	}
}

func TestScoreUnansweredCountsAsIncorrect(t *testing.T) {
	questions := bank(4)
	answers := []int{questions[0].CorrectIndex, domain.Unanswered, domain.Unanswered, questions[3].CorrectIndex}

	got, err := app.Score(answers, questions, domain.DefaultPolicy())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// threshold for 4 questions is ceil(3.2) = 4
	if got.Score != 2 || got.Passed {
		t.Fatalf("expected 2 and not passed, got %+v", got)
	}
}

func TestScoreRejectsInvalidInput(t *testing.T) {
	policy := domain.DefaultPolicy()
	if _, err := app.Score(nil, nil, policy); !errors.Is(err, domain.ErrInvalidQuestionSet) {
		t.Fatalf("expected invalid question set for empty bank, got %v", err)
	}
	if _, err := app.Score([]int{0}, bank(2), policy); !errors.Is(err, domain.ErrInvalidQuestionSet) {
		t.Fatalf("expected invalid question set for length mismatch, got %v", err)
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	policy := domain.DefaultPolicy()
	questions := bank(10)
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		answers := make([]int, len(questions))
		for j := range answers {
			answers[j] = rnd.Intn(5) - 1
		}
		first, err := app.Score(answers, questions, policy)
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		second, _ := app.Score(answers, questions, policy)
		if first != second {
			t.Fatalf("non-deterministic score: %+v vs %+v", first, second)
		}
		if first.Score < 0 || first.Score > len(questions) {
			t.Fatalf("score out of range: %+v", first)
		}
		if first.Passed != (first.Score >= 8) {
			t.Fatalf("passed flag disagrees with threshold: %+v", first)
		}
	}
}

func TestPassThresholdRoundsUp(t *testing.T) {
	policy := domain.DefaultPolicy()
	for total, want := range map[int]int{10: 8, 4: 4, 5: 4, 1: 1, 20: 16, 7: 6} {
		if got := policy.PassThreshold(total); got != want {
			t.Fatalf("threshold(%d) = %d, want %d", total, got, want)
		}
	}
}
