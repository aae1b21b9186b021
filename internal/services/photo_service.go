package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/storage"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// PresignedPhoto is a created photo row plus the one-time upload URL
// the mini-app PUTs the image to.
type PresignedPhoto struct {
	Photo     *models.Photo `json:"photo"`
	UploadURL string        `json:"upload_url"`
}

type PhotoService interface {
	// CreatePresigned registers a photo and returns a signed PUT URL
	// for client-side upload.
	CreatePresigned(ctx context.Context, userID, contentType string) (*PresignedPhoto, error)
	// Ingest stores photo bytes the bot downloaded from Telegram.
	Ingest(ctx context.Context, userID string, data []byte, contentType string, displayOrder int, mediaGroupID string) (*models.Photo, error)
	Get(ctx context.Context, id string) (*models.Photo, error)
}

type photoService struct {
	photos   pgrepo.PhotoRepository
	uploader storage.Uploader
	signer   storage.Signer
}

func NewPhotoService(photos pgrepo.PhotoRepository, uploader storage.Uploader, signer storage.Signer) PhotoService {
	return &photoService{photos: photos, uploader: uploader, signer: signer}
}

func (s *photoService) CreatePresigned(ctx context.Context, userID, contentType string) (*PresignedPhoto, error) {
	const op = "PhotoService.CreatePresigned"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, utils.E(utils.CodeInvalidArgument, op, "content_type must be an image type", nil)
	}

	key := storage.MealPhotoPrefix + uuid.NewString() + storage.ExtForContentType(contentType)
	url, err := s.signer.SignedPutURL(ctx, key, contentType, storage.PresignTTL)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to presign upload", err)
	}

	photo := &models.Photo{
		ID:          uuid.NewString(),
		UserID:      userID,
		ObjectKey:   key,
		ContentType: contentType,
		Status:      models.PhotoStatusUploaded,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.photos.Insert(ctx, photo); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create photo", err)
	}

	return &PresignedPhoto{Photo: photo, UploadURL: url}, nil
}

func (s *photoService) Ingest(ctx context.Context, userID string, data []byte, contentType string, displayOrder int, mediaGroupID string) (*models.Photo, error) {
	const op = "PhotoService.Ingest"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user id is required", nil)
	}
	if len(data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty photo data", nil)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := storage.MealPhotoPrefix + uuid.NewString() + storage.ExtForContentType(contentType)
	if _, err := s.uploader.Upload(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store photo", err)
	}

	photo := &models.Photo{
		ID:           uuid.NewString(),
		UserID:       userID,
		ObjectKey:    key,
		ContentType:  contentType,
		DisplayOrder: displayOrder,
		MediaGroupID: mediaGroupID,
		Status:       models.PhotoStatusUploaded,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.photos.Insert(ctx, photo); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create photo", err)
	}
	return photo, nil
}

func (s *photoService) Get(ctx context.Context, id string) (*models.Photo, error) {
	const op = "PhotoService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "photo id is required", nil)
	}
	p, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "photo not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get photo", err)
	}
	return p, nil
}
