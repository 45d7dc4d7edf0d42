package app

import (
	"context"
	"fmt"
	"time"

	"sgd-certification-service/internal/domain"
)

// ResultService exposes exam results to the surrounding application.
type ResultService struct {
	results ResultRepository
	policy  domain.Policy
	now     func() time.Time
}

func NewResultService(results ResultRepository, policy domain.Policy) *ResultService {
	return &ResultService{results: results, policy: policy, now: time.Now}
}

// Record stores an externally computed result. Admin only; the passed flag must agree
// with the pass threshold for the given score.
func (s *ResultService) Record(ctx context.Context, actor domain.Actor, result domain.ExamResult) (domain.ExamResult, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.ExamResult{}, domain.ErrUnauthorized
	}
	if result.UserID <= 0 {
		return domain.ExamResult{}, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}
	if result.TotalQuestions <= 0 || result.Score < 0 || result.Score > result.TotalQuestions {
		return domain.ExamResult{}, fmt.Errorf("%w: score %d out of %d", domain.ErrValidation, result.Score, result.TotalQuestions)
	}
	if want := result.Score >= s.policy.PassThreshold(result.TotalQuestions); want != result.Passed {
		return domain.ExamResult{}, fmt.Errorf("%w: passed=%t disagrees with score %d/%d", domain.ErrValidation, result.Passed, result.Score, result.TotalQuestions)
	}
	result.ID = 0
	result.CertificateCode = ""
	if result.CompletedAt.IsZero() {
		result.CompletedAt = s.now()
	}
	result.CompletedAt = result.CompletedAt.UTC()

	created, err := s.results.CreateResult(ctx, result)
	if err != nil {
		return domain.ExamResult{}, fmt.Errorf("%w: save exam result: %w", domain.ErrPersistence, err)
	}
	return created, nil
}

// ListForUser returns the user's results newest first. Candidates see only their own.
func (s *ResultService) ListForUser(ctx context.Context, actor domain.Actor, userID int64) ([]domain.ExamResult, error) {
	if actor.Role != domain.RoleAdmin && actor.ID != userID {
		return nil, domain.ErrUnauthorized
	}
	return s.results.ListResultsByUser(ctx, userID)
}

func (s *ResultService) Get(ctx context.Context, actor domain.Actor, id int64) (domain.ExamResult, error) {
	result, err := s.results.GetResult(ctx, id)
	if err != nil {
		return domain.ExamResult{}, err
	}
	if actor.Role != domain.RoleAdmin && actor.ID != result.UserID {
		return domain.ExamResult{}, domain.ErrUnauthorized
	}
	return result, nil
}
