package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"sgd-certification-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads the published question bank straight from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

const publishedQuestionsSQL = `SELECT id, prompt, options, correct_index, category
FROM questions
WHERE published
ORDER BY id`

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, publishedQuestionsSQL)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			options string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &options, &q.CorrectIndex, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}
