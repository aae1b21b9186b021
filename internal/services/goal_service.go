package services

import (
	"context"
	"errors"
	"time"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

const maxDailyKcal = 20000

type GoalService interface {
	Get(ctx context.Context, userID string) (*models.Goal, error)
	Set(ctx context.Context, userID string, dailyKcal float64) (*models.Goal, error)
}

type goalService struct {
	goals pgrepo.GoalRepository
}

func NewGoalService(goals pgrepo.GoalRepository) GoalService {
	return &goalService{goals: goals}
}

func (s *goalService) Get(ctx context.Context, userID string) (*models.Goal, error) {
	const op = "GoalService.Get"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	g, err := s.goals.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "goal not set", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get goal", err)
	}
	return g, nil
}

func (s *goalService) Set(ctx context.Context, userID string, dailyKcal float64) (*models.Goal, error) {
	const op = "GoalService.Set"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if dailyKcal <= 0 || dailyKcal > maxDailyKcal {
		return nil, utils.E(utils.CodeInvalidArgument, op, "daily kcal out of range", nil)
	}
	g := &models.Goal{
		UserID:    userID,
		DailyKcal: dailyKcal,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.goals.Upsert(ctx, g); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save goal", err)
	}
	return g, nil
}
