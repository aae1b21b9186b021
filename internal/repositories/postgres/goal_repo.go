package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type GoalRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Goal, error)
	Upsert(ctx context.Context, g *models.Goal) error
}

type goalRepo struct {
	db *gorm.DB
}

func NewGoalRepo(db *gorm.DB) GoalRepository {
	return &goalRepo{db: db}
}

func (r *goalRepo) GetByUserID(ctx context.Context, userID string) (*models.Goal, error) {
	var g models.Goal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &g, err
}

func (r *goalRepo) Upsert(ctx context.Context, g *models.Goal) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"daily_kcal", "updated_at"}),
		}).
		Create(g).Error
}
