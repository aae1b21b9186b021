package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
	"github.com/gofrolist/calorie-track-ai-bot/internal/queue"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/storage"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type EstimateService interface {
	// Dispatch enqueues one estimation job for the whole batch and
	// returns the first photo id as the job handle.
	Dispatch(ctx context.Context, photoIDs []string, description string) (string, error)
	// EstimateFromPhotos runs the combined vision call over the batch
	// and persists the estimate. Photos that cannot be prepared are
	// skipped; the call fails only when none survive.
	EstimateFromPhotos(ctx context.Context, photoIDs []string, description string) (*models.Estimate, error)
	GetByID(ctx context.Context, id string) (*models.Estimate, error)
	GetByPhotoID(ctx context.Context, photoID string) (*models.Estimate, error)
}

type estimateService struct {
	photos    pgrepo.PhotoRepository
	estimates pgrepo.EstimateRepository
	queue     queue.Queue
	signer    storage.Signer
	vision    vision.Provider
	bucket    string
	log       *logrus.Logger
}

func NewEstimateService(
	photos pgrepo.PhotoRepository,
	estimates pgrepo.EstimateRepository,
	q queue.Queue,
	signer storage.Signer,
	provider vision.Provider,
	bucket string,
	log *logrus.Logger,
) EstimateService {
	if log == nil {
		log = logrus.New()
	}
	return &estimateService{
		photos:    photos,
		estimates: estimates,
		queue:     q,
		signer:    signer,
		vision:    provider,
		bucket:    bucket,
		log:       log,
	}
}

func (s *estimateService) Dispatch(ctx context.Context, photoIDs []string, description string) (string, error) {
	const op = "EstimateService.Dispatch"

	if len(photoIDs) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "photo_ids must not be empty", nil)
	}

	job := &models.EstimateJob{
		PhotoIDs:    photoIDs,
		Description: description,
		QueuedAt:    time.Now().UTC(),
	}
	if err := s.queue.EnqueueEstimate(ctx, job); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to enqueue estimation job", err)
	}
	return photoIDs[0], nil
}

func (s *estimateService) EstimateFromPhotos(ctx context.Context, photoIDs []string, description string) (*models.Estimate, error) {
	const op = "EstimateService.EstimateFromPhotos"

	if len(photoIDs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "photo_ids must not be empty", nil)
	}

	rows, err := s.photos.ListByIDs(ctx, photoIDs)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load photos", err)
	}

	refs := make([]vision.ImageRef, 0, len(rows))
	usedIDs := make([]string, 0, len(rows))
	for _, p := range rows {
		url, serr := s.signer.SignedGetURL(ctx, p.ObjectKey, storage.PresignTTL)
		if serr != nil {
			s.log.WithError(serr).WithField("photo_id", p.ID).Warn("skipping photo: presign failed")
			continue
		}
		refs = append(refs, vision.ImageRef{
			SignedURL: url,
			GSURI:     fmt.Sprintf("gs://%s/%s", s.bucket, p.ObjectKey),
		})
		usedIDs = append(usedIDs, p.ID)
	}
	if len(refs) == 0 {
		return nil, utils.E(utils.CodeUnavailable, op, "no photos could be prepared for estimation", nil)
	}

	res, err := s.vision.EstimateMeal(ctx, refs, description)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "vision estimation failed", err)
	}

	items, _ := json.Marshal(res.Items)
	est := &models.Estimate{
		ID:         uuid.NewString(),
		PhotoID:    usedIDs[0],
		PhotoIDs:   usedIDs,
		KcalMin:    res.KcalMin,
		KcalMax:    res.KcalMax,
		KcalMean:   res.KcalMean,
		Confidence: res.Confidence,
		Protein:    res.Protein,
		Carbs:      res.Carbs,
		Fats:       res.Fats,
		Items:      datatypes.JSON(items),
		Status:     models.EstimateStatusDone,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.estimates.Insert(ctx, est); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save estimate", err)
	}

	for _, id := range usedIDs {
		if uerr := s.photos.SetStatus(ctx, id, models.PhotoStatusEstimated); uerr != nil {
			s.log.WithError(uerr).WithField("photo_id", id).Warn("failed to update photo status")
		}
	}
	return est, nil
}

func (s *estimateService) GetByID(ctx context.Context, id string) (*models.Estimate, error) {
	const op = "EstimateService.GetByID"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "estimate id is required", nil)
	}
	e, err := s.estimates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "estimate not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get estimate", err)
	}
	return e, nil
}

func (s *estimateService) GetByPhotoID(ctx context.Context, photoID string) (*models.Estimate, error) {
	const op = "EstimateService.GetByPhotoID"

	if photoID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "photo id is required", nil)
	}
	e, err := s.estimates.GetByPhotoID(ctx, photoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "estimate not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get estimate", err)
	}
	return e, nil
}
