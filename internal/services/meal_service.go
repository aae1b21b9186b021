package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// MealUpdate carries the mutable meal fields. Nil pointers leave the
// stored value unchanged.
type MealUpdate struct {
	MealDate    *time.Time
	MealType    *string
	Kcal        *float64
	Protein     *float64
	Carbs       *float64
	Fats        *float64
	Description *string
}

type MealService interface {
	Create(ctx context.Context, meal *models.Meal) error
	// CreateFromEstimate records a snack meal for today from a finished
	// estimate, attributed to the owner of the estimate's first photo.
	// A non-empty requireOwner must match that owner.
	CreateFromEstimate(ctx context.Context, estimateID, requireOwner string) (*models.Meal, error)
	Get(ctx context.Context, userID, mealID string) (*models.Meal, error)
	List(ctx context.Context, userID string, from, to time.Time) ([]models.Meal, error)
	Update(ctx context.Context, userID, mealID string, upd MealUpdate) (*models.Meal, error)
	Delete(ctx context.Context, userID, mealID string) error
}

type mealService struct {
	meals     pgrepo.MealRepository
	estimates pgrepo.EstimateRepository
	photos    pgrepo.PhotoRepository
	log       *logrus.Logger
}

func NewMealService(meals pgrepo.MealRepository, estimates pgrepo.EstimateRepository, photos pgrepo.PhotoRepository, log *logrus.Logger) MealService {
	if log == nil {
		log = logrus.New()
	}
	return &mealService{meals: meals, estimates: estimates, photos: photos, log: log}
}

func (s *mealService) Create(ctx context.Context, meal *models.Meal) error {
	const op = "MealService.Create"

	if meal == nil {
		return utils.E(utils.CodeInvalidArgument, op, "meal is required", nil)
	}
	if meal.UserID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if !models.ValidMealType(meal.MealType) {
		return utils.E(utils.CodeInvalidArgument, op, "invalid meal type", nil)
	}
	if meal.Kcal < 0 {
		return utils.E(utils.CodeInvalidArgument, op, "kcal must not be negative", nil)
	}

	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	if meal.MealDate.IsZero() {
		meal.MealDate = todayUTC()
	}
	now := time.Now().UTC()
	meal.CreatedAt = now
	meal.UpdatedAt = now

	if err := s.meals.Insert(ctx, meal); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create meal", err)
	}
	return nil
}

func (s *mealService) CreateFromEstimate(ctx context.Context, estimateID, requireOwner string) (*models.Meal, error) {
	const op = "MealService.CreateFromEstimate"

	if estimateID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "estimate id is required", nil)
	}
	est, err := s.estimates.GetByID(ctx, estimateID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "estimate not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load estimate", err)
	}
	photo, err := s.photos.GetByID(ctx, est.PhotoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "photo not found for estimate", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load photo", err)
	}
	if requireOwner != "" && photo.UserID != requireOwner {
		return nil, utils.E(utils.CodeForbidden, op, "estimate belongs to another user", nil)
	}

	now := time.Now().UTC()
	meal := &models.Meal{
		ID:         uuid.NewString(),
		UserID:     photo.UserID,
		MealDate:   todayUTC(),
		MealType:   models.MealTypeSnack,
		Kcal:       est.KcalMean,
		Protein:    est.Protein,
		Carbs:      est.Carbs,
		Fats:       est.Fats,
		EstimateID: &est.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.meals.Insert(ctx, meal); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create meal", err)
	}
	return meal, nil
}

func (s *mealService) Get(ctx context.Context, userID, mealID string) (*models.Meal, error) {
	const op = "MealService.Get"

	meal, err := s.loadOwned(ctx, op, userID, mealID)
	if err != nil {
		return nil, err
	}
	return meal, nil
}

func (s *mealService) List(ctx context.Context, userID string, from, to time.Time) ([]models.Meal, error) {
	const op = "MealService.List"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if to.Before(from) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "date range end precedes start", nil)
	}
	meals, err := s.meals.ListByUserAndRange(ctx, userID, from, to)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list meals", err)
	}
	return meals, nil
}

func (s *mealService) Update(ctx context.Context, userID, mealID string, upd MealUpdate) (*models.Meal, error) {
	const op = "MealService.Update"

	meal, err := s.loadOwned(ctx, op, userID, mealID)
	if err != nil {
		return nil, err
	}

	if upd.MealDate != nil {
		meal.MealDate = midnightUTC(*upd.MealDate)
	}
	if upd.MealType != nil {
		if !models.ValidMealType(*upd.MealType) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid meal type", nil)
		}
		meal.MealType = *upd.MealType
	}
	if upd.Kcal != nil {
		if *upd.Kcal < 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "kcal must not be negative", nil)
		}
		meal.Kcal = *upd.Kcal
	}
	if upd.Protein != nil {
		meal.Protein = *upd.Protein
	}
	if upd.Carbs != nil {
		meal.Carbs = *upd.Carbs
	}
	if upd.Fats != nil {
		meal.Fats = *upd.Fats
	}
	if upd.Description != nil {
		meal.Description = *upd.Description
	}
	meal.UpdatedAt = time.Now().UTC()

	if err := s.meals.Update(ctx, meal); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update meal", err)
	}
	return meal, nil
}

func (s *mealService) Delete(ctx context.Context, userID, mealID string) error {
	const op = "MealService.Delete"

	if _, err := s.loadOwned(ctx, op, userID, mealID); err != nil {
		return err
	}
	if err := s.meals.Delete(ctx, mealID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "meal not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete meal", err)
	}
	return nil
}

func (s *mealService) loadOwned(ctx context.Context, op, userID, mealID string) (*models.Meal, error) {
	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if mealID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "meal id is required", nil)
	}
	meal, err := s.meals.GetByID(ctx, mealID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "meal not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get meal", err)
	}
	if meal.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "meal belongs to another user", nil)
	}
	return meal, nil
}

func todayUTC() time.Time {
	return midnightUTC(time.Now())
}
