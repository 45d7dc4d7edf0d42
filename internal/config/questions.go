package config

import (
	"fmt"
	"os"

	"sgd-certification-service/internal/domain"

	"gopkg.in/yaml.v3"
)

type questionFile struct {
	Questions []struct {
		ID       int64    `yaml:"id"`
		Prompt   string   `yaml:"prompt"`
		Category string   `yaml:"category"`
		Options  []string `yaml:"options"`
		Correct  int      `yaml:"correct"`
	} `yaml:"questions"`
}

// LoadQuestionFile reads a seed file and validates every question against the
// expected option count.
func LoadQuestionFile(path string, optionsPerQuestion int) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question file %s: %w", path, err)
	}
	out := make([]domain.Question, 0, len(file.Questions))
	for i, q := range file.Questions {
		question := domain.Question{
			ID:           q.ID,
			Prompt:       q.Prompt,
			Options:      q.Options,
			CorrectIndex: q.Correct,
			Category:     q.Category,
		}
		if question.Prompt == "" {
			return nil, fmt.Errorf("%w: question #%d has no prompt", domain.ErrInvalidQuestionSet, i+1)
		}
		if err := question.Validate(optionsPerQuestion); err != nil {
			return nil, fmt.Errorf("question #%d: %w", i+1, err)
		}
		out = append(out, question)
	}
	return out, nil
}
