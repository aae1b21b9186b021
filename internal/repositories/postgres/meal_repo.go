package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// DailyTotal is one day's consumed sums for a user.
type DailyTotal struct {
	MealDate  time.Time `json:"meal_date"`
	Kcal      float64   `json:"kcal"`
	Protein   float64   `json:"protein_g"`
	Carbs     float64   `json:"carbs_g"`
	Fats      float64   `json:"fats_g"`
	MealCount int64     `json:"meal_count"`
}

type MealRepository interface {
	Insert(ctx context.Context, m *models.Meal) error
	GetByID(ctx context.Context, id string) (*models.Meal, error)
	ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]models.Meal, error)
	Update(ctx context.Context, m *models.Meal) error
	Delete(ctx context.Context, id string) error
	DailyTotals(ctx context.Context, userID string, from, to time.Time) ([]DailyTotal, error)
}

type mealRepo struct {
	db *gorm.DB
}

func NewMealRepo(db *gorm.DB) MealRepository {
	return &mealRepo{db: db}
}

func (r *mealRepo) Insert(ctx context.Context, m *models.Meal) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *mealRepo) GetByID(ctx context.Context, id string) (*models.Meal, error) {
	var m models.Meal
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &m, err
}

func (r *mealRepo) ListByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]models.Meal, error) {
	var rows []models.Meal
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND meal_date BETWEEN ? AND ?", userID, from, to).
		Order("meal_date DESC, created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *mealRepo) Update(ctx context.Context, m *models.Meal) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *mealRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Meal{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *mealRepo) DailyTotals(ctx context.Context, userID string, from, to time.Time) ([]DailyTotal, error) {
	var rows []DailyTotal
	err := r.db.WithContext(ctx).
		Model(&models.Meal{}).
		Select("meal_date, COALESCE(SUM(kcal),0) AS kcal, COALESCE(SUM(protein_g),0) AS protein, COALESCE(SUM(carbs_g),0) AS carbs, COALESCE(SUM(fats_g),0) AS fats, COUNT(*) AS meal_count").
		Where("user_id = ? AND meal_date BETWEEN ? AND ?", userID, from, to).
		Group("meal_date").
		Order("meal_date").
		Scan(&rows).Error
	return rows, err
}
