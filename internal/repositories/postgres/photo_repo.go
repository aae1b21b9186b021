package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type PhotoRepository interface {
	Insert(ctx context.Context, p *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	// ListByIDs returns the photos in the order the ids were given;
	// unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []string) ([]models.Photo, error)
	SetStatus(ctx context.Context, id, status string) error
}

type photoRepo struct {
	db *gorm.DB
}

func NewPhotoRepo(db *gorm.DB) PhotoRepository {
	return &photoRepo{db: db}
}

func (r *photoRepo) Insert(ctx context.Context, p *models.Photo) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *photoRepo) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	var p models.Photo
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

func (r *photoRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.Photo
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]models.Photo, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}

	ordered := make([]models.Photo, 0, len(rows))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *photoRepo) SetStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Photo{}).
		Where("id = ?", id).
		Update("status", status).Error
}
