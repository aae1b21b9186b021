package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
	"github.com/gofrolist/calorie-track-ai-bot/internal/queue"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/telegram"
)

// EstimateWorkerPool consumes batched photo-estimation jobs. A job that
// fails before its estimate is saved is logged and abandoned, never
// requeued; meal creation and DM delivery failures do not fail the job.
type EstimateWorkerPool struct {
	Queue     queue.Queue
	Estimates services.EstimateService
	Meals     services.MealService
	Users     services.UserService
	Photos    services.PhotoService
	Sender    telegram.Sender

	Redis      *redis.Client
	NumWorkers int
	Logger     *logrus.Logger

	ConsumerPrefix string
}

func (p *EstimateWorkerPool) Start(ctx context.Context) error {
	if p.Queue == nil || p.Estimates == nil || p.Meals == nil || p.Users == nil || p.Photos == nil || p.Sender == nil {
		return errors.New("EstimateWorkerPool missing dependency: Queue/Estimates/Meals/Users/Photos/Sender must be set")
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "estimate"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *EstimateWorkerPool) runConsumer(ctx context.Context, consumer string) {
	log := p.Logger.WithField("consumer", consumer)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.Queue.DequeueEstimate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("estimate dequeue failed, dropping payload")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if job == nil {
			continue // idle poll
		}
		p.handleJob(ctx, job)
	}
}

func (p *EstimateWorkerPool) handleJob(ctx context.Context, job *models.EstimateJob) {
	ids := job.AllPhotoIDs()
	if len(ids) == 0 {
		p.Logger.Warn("estimate job without photo ids, dropping")
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"job_id": ids[0],
		"photos": len(ids),
	})
	statusCh := "estimate:" + ids[0] + ":status"
	p.publishStatus(ctx, statusCh, "processing", "")

	est, err := p.Estimates.EstimateFromPhotos(ctx, ids, job.Description)
	if err != nil {
		log.WithError(err).Error("estimation failed, job abandoned")
		p.publishStatus(ctx, statusCh, "failed", "")
		return
	}
	log = log.WithField("estimate_id", est.ID)
	p.publishStatus(ctx, statusCh, "done", est.ID)

	if _, err := p.Meals.CreateFromEstimate(ctx, est.ID, ""); err != nil {
		log.WithError(err).Warn("meal creation failed, estimate still available")
	}

	p.deliverResult(ctx, log, est, len(ids))
}

// deliverResult DMs the formatted estimate to the batch owner. Any
// failure along the way is logged; the job already succeeded.
func (p *EstimateWorkerPool) deliverResult(ctx context.Context, log *logrus.Entry, est *models.Estimate, photoCount int) {
	photo, err := p.Photos.Get(ctx, est.PhotoID)
	if err != nil {
		log.WithError(err).Warn("result delivery skipped: photo lookup failed")
		return
	}
	user, err := p.Users.GetByID(ctx, photo.UserID)
	if err != nil {
		log.WithError(err).Warn("result delivery skipped: user lookup failed")
		return
	}

	var items []vision.FoodItem
	if len(est.Items) > 0 {
		_ = json.Unmarshal(est.Items, &items)
	}
	text := telegram.FormatEstimate(est, items, photoCount)
	if _, err := p.Sender.SendMessage(user.TelegramID, 0, 0, text); err != nil {
		log.WithError(err).Warn("result delivery failed")
	}
}

func (p *EstimateWorkerPool) publishStatus(ctx context.Context, channel, status, estimateID string) {
	if p.Redis == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"type":        "status",
		"status":      status,
		"estimate_id": estimateID,
	})
	_ = p.Redis.Publish(ctx, channel, string(payload)).Err()
}
