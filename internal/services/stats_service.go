package services

import (
	"context"
	"errors"
	"time"

	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// DailyStats is one day's consumption against the user's goal. Goal and
// Remaining are zero when no goal is set.
type DailyStats struct {
	Date      time.Time `json:"date"`
	Kcal      float64   `json:"kcal"`
	Protein   float64   `json:"protein"`
	Carbs     float64   `json:"carbs"`
	Fats      float64   `json:"fats"`
	MealCount int       `json:"meal_count"`
	GoalKcal  float64   `json:"goal_kcal,omitempty"`
	Remaining float64   `json:"remaining_kcal,omitempty"`
}

type SummaryStats struct {
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Days    []DailyStats `json:"days"`
	AvgKcal float64      `json:"avg_kcal"`
}

const maxSummaryDays = 90

type StatsService interface {
	Daily(ctx context.Context, userID string, day time.Time) (*DailyStats, error)
	// Summary covers the `days` days ending on `end` (default 7).
	Summary(ctx context.Context, userID string, end time.Time, days int) (*SummaryStats, error)
}

type statsService struct {
	meals pgrepo.MealRepository
	goals pgrepo.GoalRepository
}

func NewStatsService(meals pgrepo.MealRepository, goals pgrepo.GoalRepository) StatsService {
	return &statsService{meals: meals, goals: goals}
}

func (s *statsService) Daily(ctx context.Context, userID string, day time.Time) (*DailyStats, error) {
	const op = "StatsService.Daily"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	day = midnightUTC(day)

	totals, err := s.meals.DailyTotals(ctx, userID, day, day)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to aggregate meals", err)
	}

	out := &DailyStats{Date: day}
	for _, t := range totals {
		if midnightUTC(t.MealDate).Equal(day) {
			out.Kcal = t.Kcal
			out.Protein = t.Protein
			out.Carbs = t.Carbs
			out.Fats = t.Fats
			out.MealCount = int(t.MealCount)
		}
	}

	goal, err := s.goals.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to get goal", err)
	}
	if goal != nil {
		out.GoalKcal = goal.DailyKcal
		out.Remaining = goal.DailyKcal - out.Kcal
	}
	return out, nil
}

func (s *statsService) Summary(ctx context.Context, userID string, end time.Time, days int) (*SummaryStats, error) {
	const op = "StatsService.Summary"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if days <= 0 {
		days = 7
	}
	if days > maxSummaryDays {
		return nil, utils.E(utils.CodeInvalidArgument, op, "summary range too large", nil)
	}
	end = midnightUTC(end)
	start := end.AddDate(0, 0, -(days - 1))

	totals, err := s.meals.DailyTotals(ctx, userID, start, end)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to aggregate meals", err)
	}
	byDay := make(map[time.Time]pgrepo.DailyTotal, len(totals))
	for _, t := range totals {
		byDay[midnightUTC(t.MealDate)] = t
	}

	out := &SummaryStats{From: start, To: end, Days: make([]DailyStats, 0, days)}
	var sum float64
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := DailyStats{Date: d}
		if t, ok := byDay[d]; ok {
			day.Kcal = t.Kcal
			day.Protein = t.Protein
			day.Carbs = t.Carbs
			day.Fats = t.Fats
			day.MealCount = int(t.MealCount)
		}
		sum += day.Kcal
		out.Days = append(out.Days, day)
	}
	out.AvgKcal = sum / float64(days)

	return out, nil
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
