package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type EstimateRepository interface {
	Insert(ctx context.Context, e *models.Estimate) error
	GetByID(ctx context.Context, id string) (*models.Estimate, error)
	// GetByPhotoID matches either the primary photo or any member of
	// the batch.
	GetByPhotoID(ctx context.Context, photoID string) (*models.Estimate, error)
}

type estimateRepo struct {
	db *gorm.DB
}

func NewEstimateRepo(db *gorm.DB) EstimateRepository {
	return &estimateRepo{db: db}
}

func (r *estimateRepo) Insert(ctx context.Context, e *models.Estimate) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *estimateRepo) GetByID(ctx context.Context, id string) (*models.Estimate, error) {
	var e models.Estimate
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &e, err
}

func (r *estimateRepo) GetByPhotoID(ctx context.Context, photoID string) (*models.Estimate, error) {
	var e models.Estimate
	err := r.db.WithContext(ctx).
		Where("photo_id = ? OR ? = ANY(photo_ids)", photoID, photoID).
		Order("created_at DESC").
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &e, err
}
