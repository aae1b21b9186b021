package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type UserService interface {
	CreateOrGet(ctx context.Context, telegramID int64, username, language string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

type userService struct {
	users pgrepo.UserRepository
}

func NewUserService(users pgrepo.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) CreateOrGet(ctx context.Context, telegramID int64, username, language string) (*models.User, error) {
	const op = "UserService.CreateOrGet"

	if telegramID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "telegram_id is required", nil)
	}

	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up user", err)
	}

	fresh := &models.User{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		Username:   username,
		Language:   language,
		CreatedAt:  time.Now().UTC(),
	}
	if cerr := s.users.Create(ctx, fresh); cerr != nil {
		// Lost a create race: another webhook call inserted the row
		// for this telegram id first.
		if u, gerr := s.users.GetByTelegramID(ctx, telegramID); gerr == nil {
			return u, nil
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", cerr)
	}
	return fresh, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*models.User, error) {
	const op = "UserService.GetByID"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}

func (s *userService) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "UserService.GetByTelegramID"

	if telegramID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "telegram_id is required", nil)
	}
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}
