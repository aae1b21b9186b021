package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type InlineAnalyticsRepository interface {
	Get(ctx context.Context, date time.Time, chatType string) (*models.InlineAnalyticsDaily, error)
	Upsert(ctx context.Context, row *models.InlineAnalyticsDaily) error
	FetchRange(ctx context.Context, from, to time.Time, chatType string) ([]models.InlineAnalyticsDaily, error)
}

type inlineAnalyticsRepo struct {
	db *gorm.DB
}

func NewInlineAnalyticsRepo(db *gorm.DB) InlineAnalyticsRepository {
	return &inlineAnalyticsRepo{db: db}
}

func (r *inlineAnalyticsRepo) Get(ctx context.Context, date time.Time, chatType string) (*models.InlineAnalyticsDaily, error) {
	var row models.InlineAnalyticsDaily
	err := r.db.WithContext(ctx).
		Where("date = ? AND chat_type = ?", date, chatType).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *inlineAnalyticsRepo) Upsert(ctx context.Context, row *models.InlineAnalyticsDaily) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}, {Name: "chat_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"requests", "delivered", "failed", "permission_blocked",
				"trigger_counts", "failure_reasons",
				"avg_ack_latency_ms", "avg_result_latency_ms", "p95_result_latency_ms",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *inlineAnalyticsRepo) FetchRange(ctx context.Context, from, to time.Time, chatType string) ([]models.InlineAnalyticsDaily, error) {
	q := r.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", from, to)
	if chatType != "" {
		q = q.Where("chat_type = ?", chatType)
	}

	var rows []models.InlineAnalyticsDaily
	err := q.Order("date, chat_type").Find(&rows).Error
	return rows, err
}
