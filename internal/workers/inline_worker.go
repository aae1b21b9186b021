package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/cache"
	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
	"github.com/gofrolist/calorie-track-ai-bot/internal/queue"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/storage"
	"github.com/gofrolist/calorie-track-ai-bot/internal/telegram"
)

// Failure reason codes recorded in the analytics histogram.
const (
	reasonDownloadFailed    = "download_failed"
	reasonUploadFailed      = "upload_failed"
	reasonEstimationFailed  = "estimation_failed"
	reasonPermissionBlocked = "permission_blocked"
	reasonDeliveryFailed    = "delivery_failed"
)

var errNoDeliveryTarget = errors.New("inline job has no delivery target")

// InlineWorkerPool runs inline jobs through
// received, downloading, uploading, estimating, delivering. Inline
// uploads land under the transient prefix so the purger can reclaim
// them. Every terminal outcome is folded into the daily analytics
// rollup; analytics failures never fail the job.
type InlineWorkerPool struct {
	Queue     queue.Queue
	Cache     cache.Cache
	Uploader  storage.Uploader
	Signer    storage.Signer
	Vision    vision.Provider
	Sender    telegram.Sender
	Throttle  services.NotifyThrottle
	Analytics services.AnalyticsService

	Bucket     string
	NumWorkers int
	Logger     *logrus.Logger

	ConsumerPrefix string
}

func (p *InlineWorkerPool) Start(ctx context.Context) error {
	if p.Queue == nil || p.Uploader == nil || p.Signer == nil || p.Vision == nil || p.Sender == nil || p.Throttle == nil || p.Analytics == nil {
		return errors.New("InlineWorkerPool missing dependency: Queue/Uploader/Signer/Vision/Sender/Throttle/Analytics must be set")
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "inline"
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

func (p *InlineWorkerPool) runConsumer(ctx context.Context, consumer string) {
	log := p.Logger.WithField("consumer", consumer)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.Queue.DequeueInline(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("inline dequeue failed, dropping payload")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if job == nil {
			continue // idle poll
		}
		p.handleJob(ctx, job)
	}
}

func (p *InlineWorkerPool) handleJob(ctx context.Context, job *models.InlineJob) {
	log := p.Logger.WithFields(logrus.Fields{
		"job_id":    job.JobID,
		"trigger":   job.TriggerType,
		"chat_type": job.ChatType,
	})

	res, failReason := p.process(ctx, job, log)

	text := telegram.GenericFailureMessage
	if failReason == "" {
		text = telegram.FormatInlineResult(res)
	}

	outcome := models.InlineOutcome{
		ChatType:     job.ChatType,
		TriggerType:  job.TriggerType,
		AckLatencyMS: job.AckLatencyMS,
	}

	derr := p.deliver(ctx, job, text)
	switch {
	case errors.Is(derr, errNoDeliveryTarget):
		// Malformed job: nowhere to send either a result or an
		// apology. Logged and dropped without a rollup entry.
		log.Error("inline job dropped: no delivery target")
		return

	case derr == nil && failReason == "":
		outcome.Delivered = true
		outcome.ResultLatencyMS = resultLatencyMS(job.RequestedAt)
		log.WithField("result_latency_ms", outcome.ResultLatencyMS).Info("inline job delivered")

	case derr == nil:
		outcome.FailureReason = failReason
		log.WithField("reason", failReason).Info("inline job failed, user notified")

	case telegram.IsPermissionError(derr):
		if failReason == "" {
			failReason = reasonPermissionBlocked
		}
		outcome.FailureReason = failReason
		outcome.PermissionBlocked = true
		log.WithError(derr).WithField("reason", failReason).Warn("inline delivery blocked by permissions")
		p.permissionFallback(ctx, job, log)

	default:
		if failReason == "" {
			failReason = reasonDeliveryFailed
		}
		outcome.FailureReason = failReason
		log.WithError(derr).WithField("reason", failReason).Error("inline delivery failed")
	}

	if err := p.Analytics.Record(ctx, outcome); err != nil {
		log.WithError(err).Warn("analytics update failed")
	}
}

// process walks the pre-delivery states and returns the estimation
// result, or the failure reason for the state that broke.
func (p *InlineWorkerPool) process(ctx context.Context, job *models.InlineJob, log *logrus.Entry) (*vision.Result, string) {
	data, contentType, err := p.Sender.DownloadFile(ctx, job.FileID)
	if err != nil {
		log.WithError(err).WithField("state", "downloading").Warn("inline photo download failed")
		return nil, reasonDownloadFailed
	}

	key := storage.InlinePrefix + job.JobID + storage.ExtForContentType(contentType)
	if _, err := p.Uploader.Upload(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		log.WithError(err).WithField("state", "uploading").Warn("inline photo upload failed")
		return nil, reasonUploadFailed
	}

	url, err := p.Signer.SignedGetURL(ctx, key, storage.PresignTTL)
	if err != nil {
		log.WithError(err).WithField("state", "estimating").Warn("inline photo presign failed")
		return nil, reasonEstimationFailed
	}
	ref := vision.ImageRef{
		SignedURL: url,
		GSURI:     fmt.Sprintf("gs://%s/%s", p.Bucket, key),
	}
	res, err := p.Vision.EstimateMeal(ctx, []vision.ImageRef{ref}, job.Caption)
	if err != nil {
		log.WithError(err).WithField("state", "estimating").Warn("inline estimation failed")
		return nil, reasonEstimationFailed
	}
	return res, ""
}

// deliver resolves the output channel: a known inline message id, a
// chosen-result upgrade recorded after enqueue, or a chat reply.
func (p *InlineWorkerPool) deliver(ctx context.Context, job *models.InlineJob, text string) error {
	if job.InlineMessageID != "" {
		return p.Sender.EditInlineMessage(job.InlineMessageID, text)
	}
	if p.Cache != nil && job.TriggerType == models.TriggerInlineQuery {
		var upgraded string
		if hit, err := p.Cache.GetJSON(ctx, telegram.InlineTargetKey(job.JobID), &upgraded); err == nil && hit && upgraded != "" {
			return p.Sender.EditInlineMessage(upgraded, text)
		}
	}
	if job.ChatID != 0 {
		_, err := p.Sender.SendMessage(job.ChatID, job.ThreadID, job.ReplyToMessageID, text)
		return err
	}
	return errNoDeliveryTarget
}

// permissionFallback DMs the originating user about the blocked chat,
// at most once per (chat, user) pair per notice TTL.
func (p *InlineWorkerPool) permissionFallback(ctx context.Context, job *models.InlineJob, log *logrus.Entry) {
	if !job.MetaBool("failure_dm_required") {
		return
	}
	chatKey := services.ResolveSubject(job.ChatIDHash, job.ChatID)
	userKey := services.ResolveSubject(job.UserIDHash, job.UserID)
	if !p.Throttle.Due(ctx, chatKey, userKey) {
		log.Debug("permission notice suppressed by throttle")
		return
	}
	if job.UserID == 0 {
		log.Warn("permission notice skipped: no user id to DM")
		return
	}
	if _, err := p.Sender.SendMessage(job.UserID, 0, 0, telegram.NoPermissionDM); err != nil {
		log.WithError(err).Warn("permission notice DM failed")
		return
	}
	if err := p.Throttle.Mark(ctx, chatKey, userKey); err != nil {
		log.WithError(err).Warn("failed to mark permission notice")
	}
}

func resultLatencyMS(requestedAt time.Time) int64 {
	if requestedAt.IsZero() {
		return 0
	}
	ms := time.Since(requestedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
