package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type SLATargets struct {
	AckTargetMS          int64   `json:"ack_target_ms"`
	ResultTargetMS       int64   `json:"result_target_ms"`
	AccuracyTolerancePct float64 `json:"accuracy_tolerance_pct"`
}

// AnalyticsSummary aggregates daily rollup rows over a date range and
// reports them against the inline delivery SLA targets.
type AnalyticsSummary struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	ChatType string    `json:"chat_type,omitempty"`

	Requests          int64 `json:"requests"`
	Delivered         int64 `json:"delivered"`
	Failed            int64 `json:"failed"`
	PermissionBlocked int64 `json:"permission_blocked"`

	Days []models.InlineAnalyticsDaily `json:"days"`
	SLA  SLATargets                    `json:"sla"`
}

type AnalyticsService interface {
	// Record folds one terminal inline outcome into the day's rollup
	// row, creating the row on first use.
	Record(ctx context.Context, outcome models.InlineOutcome) error
	Summary(ctx context.Context, from, to time.Time, chatType string) (*AnalyticsSummary, error)
}

type analyticsService struct {
	repo pgrepo.InlineAnalyticsRepository
	log  *logrus.Logger
}

func NewAnalyticsService(repo pgrepo.InlineAnalyticsRepository, log *logrus.Logger) AnalyticsService {
	if log == nil {
		log = logrus.New()
	}
	return &analyticsService{repo: repo, log: log}
}

func (s *analyticsService) Record(ctx context.Context, outcome models.InlineOutcome) error {
	const op = "AnalyticsService.Record"

	date := outcome.Date
	if date.IsZero() {
		date = time.Now()
	}
	date = midnightUTC(date)

	chatType := outcome.ChatType
	if chatType == "" {
		chatType = models.ChatTypePrivate
	}

	row, err := s.repo.Get(ctx, date, chatType)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeInternal, op, "failed to load analytics row", err)
		}
		row = &models.InlineAnalyticsDaily{Date: date, ChatType: chatType}
	}

	row.Apply(outcome)
	row.UpdatedAt = time.Now().UTC()

	if err := s.repo.Upsert(ctx, row); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save analytics row", err)
	}
	return nil
}

func (s *analyticsService) Summary(ctx context.Context, from, to time.Time, chatType string) (*AnalyticsSummary, error) {
	const op = "AnalyticsService.Summary"

	if to.IsZero() {
		to = time.Now()
	}
	to = midnightUTC(to)
	if from.IsZero() {
		from = to.AddDate(0, 0, -6)
	}
	from = midnightUTC(from)
	if to.Before(from) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "date range end precedes start", nil)
	}
	switch chatType {
	case "", models.ChatTypePrivate, models.ChatTypeGroup:
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown chat type", nil)
	}

	days, err := s.repo.FetchRange(ctx, from, to, chatType)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to fetch analytics range", err)
	}

	out := &AnalyticsSummary{
		From:     from,
		To:       to,
		ChatType: chatType,
		Days:     days,
		SLA: SLATargets{
			AckTargetMS:          models.SLAAckTargetMS,
			ResultTargetMS:       models.SLAResultTargetMS,
			AccuracyTolerancePct: models.SLAAccuracyTolerancePct,
		},
	}
	for _, d := range days {
		out.Requests += d.Requests
		out.Delivered += d.Delivered
		out.Failed += d.Failed
		out.PermissionBlocked += d.PermissionBlocked
	}
	return out, nil
}
