package app

import (
	"context"

	"sgd-certification-service/internal/domain"
)

// StatsService serves the admin dashboard.
type StatsService struct {
	stats StatsRepository
}

func NewStatsService(stats StatsRepository) *StatsService {
	return &StatsService{stats: stats}
}

func (s *StatsService) Dashboard(ctx context.Context, actor domain.Actor) (domain.Stats, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Stats{}, domain.ErrUnauthorized
	}
	return s.stats.Stats(ctx)
}
