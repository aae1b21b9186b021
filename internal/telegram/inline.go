package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/cache"
	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/queue"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// inlineTargetTTL bounds how long a chosen-result upgrade mapping
// stays resolvable; the worker normally consumes it within seconds.
const inlineTargetTTL = time.Hour

// InlineTargetKey is the cache key holding a job's upgraded delivery
// target (the inline message id reported by chosen_inline_result).
func InlineTargetKey(jobID string) string { return "inline:target:" + jobID }

// InlineAck is the synchronous webhook response for inline triggers.
type InlineAck struct {
	Status      string `json:"status"`
	JobID       string `json:"job_id"`
	TriggerType string `json:"trigger_type"`
}

// InlineHandler normalizes inline queries, reply-mentions, and tagged
// photos into inline jobs, enqueues them, and acknowledges the user.
type InlineHandler struct {
	queue       queue.Queue
	cache       cache.Cache
	sender      Sender
	hasher      *services.SubjectHasher
	botUsername string
	log         *logrus.Logger
}

func NewInlineHandler(q queue.Queue, c cache.Cache, sender Sender, hasher *services.SubjectHasher, botUsername string, log *logrus.Logger) *InlineHandler {
	if log == nil {
		log = logrus.New()
	}
	return &InlineHandler{
		queue:       q,
		cache:       c,
		sender:      sender,
		hasher:      hasher,
		botUsername: botUsername,
		log:         log,
	}
}

// NormalizeChatType collapses every group-like chat subtype into the
// group bucket. "sender" is the private chat with the query author.
func NormalizeChatType(raw string) string {
	switch raw {
	case "private", "sender", "":
		return models.ChatTypePrivate
	default:
		return models.ChatTypeGroup
	}
}

// HandleInlineQuery enqueues a job for the query and answers it with a
// placeholder article whose id doubles as the job id.
func (h *InlineHandler) HandleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) (*InlineAck, error) {
	const op = "InlineHandler.HandleInlineQuery"

	fileID, caption := splitQuery(q.Query)
	chatType := NormalizeChatType(q.ChatType)
	now := time.Now().UTC()

	job := &models.InlineJob{
		JobID:       uuid.NewString(),
		TriggerType: models.TriggerInlineQuery,
		ChatType:    chatType,
		FileID:      fileID,
		Caption:     caption,
		RequestedAt: now,
		Metadata:    map[string]any{},
	}
	if q.From != nil {
		job.UserID = q.From.ID
		job.UserIDHash = h.hasher.HashID(q.From.ID)
		// Until a chosen-result upgrade arrives, the author's private
		// chat is the delivery target.
		job.ChatID = q.From.ID
		job.ChatIDHash = job.UserIDHash
	}
	placeholder := InlinePlaceholderIntro
	if chatType == models.ChatTypePrivate {
		job.Metadata["privacy_notice"] = true
		job.Metadata["consent_scope"] = "inline_private"
		placeholder = InlinePrivatePlaceholder()
	}
	job.AckLatencyMS = time.Since(now).Milliseconds()

	if err := h.queue.EnqueueInline(ctx, job); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue inline job", err)
	}

	article := tgbotapi.NewInlineQueryResultArticle(job.JobID, InlineResultTitle, placeholder)
	if err := h.sender.AnswerInlineQuery(q.ID, []any{article}, 0, true); err != nil {
		h.log.WithError(err).WithField("job_id", job.JobID).Warn("failed to answer inline query")
	}
	return &InlineAck{Status: "ok", JobID: job.JobID, TriggerType: job.TriggerType}, nil
}

// HandleChosenInlineResult upgrades the job's delivery target to an
// in-place inline edit when the platform reports the posted result.
func (h *InlineHandler) HandleChosenInlineResult(ctx context.Context, r *tgbotapi.ChosenInlineResult) error {
	if r.InlineMessageID == "" || r.ResultID == "" {
		return nil
	}
	return h.cache.SetJSON(ctx, InlineTargetKey(r.ResultID), r.InlineMessageID, inlineTargetTTL)
}

// BuildReplyMention handles a reply that mentions the bot under a
// photo message: the replied-to photo is the analysis subject.
func (h *InlineHandler) BuildReplyMention(ctx context.Context, msg *tgbotapi.Message, threadID int) (*InlineAck, error) {
	const op = "InlineHandler.BuildReplyMention"

	if msg.ReplyToMessage == nil || len(msg.ReplyToMessage.Photo) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "reply target has no photo", nil)
	}
	caption := h.stripMention(msg.Text)
	if caption == "" {
		caption = msg.ReplyToMessage.Caption
	}
	job := h.buildChatJob(msg, models.TriggerReplyMention, LargestPhoto(msg.ReplyToMessage.Photo), caption, threadID)
	job.ReplyToMessageID = msg.ReplyToMessage.MessageID

	return h.enqueueWithPlaceholder(ctx, op, job)
}

// BuildTaggedPhoto handles a photo post whose caption mentions the
// bot; the posted photo itself is the analysis subject.
func (h *InlineHandler) BuildTaggedPhoto(ctx context.Context, msg *tgbotapi.Message, threadID int) (*InlineAck, error) {
	const op = "InlineHandler.BuildTaggedPhoto"

	if len(msg.Photo) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message has no photo", nil)
	}
	job := h.buildChatJob(msg, models.TriggerTaggedPhoto, LargestPhoto(msg.Photo), h.stripMention(msg.Caption), threadID)
	job.ReplyToMessageID = msg.MessageID

	return h.enqueueWithPlaceholder(ctx, op, job)
}

func (h *InlineHandler) buildChatJob(msg *tgbotapi.Message, trigger, fileID, caption string, threadID int) *models.InlineJob {
	job := &models.InlineJob{
		JobID:           uuid.NewString(),
		TriggerType:     trigger,
		ChatType:        NormalizeChatType(msg.Chat.Type),
		ChatID:          msg.Chat.ID,
		ChatIDHash:      h.hasher.HashID(msg.Chat.ID),
		ThreadID:        threadID,
		OriginMessageID: msg.MessageID,
		FileID:          fileID,
		Caption:         caption,
		RequestedAt:     time.Unix(int64(msg.Date), 0).UTC(),
		Metadata:        map[string]any{},
	}
	if msg.From != nil {
		job.UserID = msg.From.ID
		job.UserIDHash = h.hasher.HashID(msg.From.ID)
	}
	if job.ChatType == models.ChatTypeGroup && trigger == models.TriggerReplyMention {
		job.Metadata["failure_dm_required"] = true
	}
	return job
}

func (h *InlineHandler) enqueueWithPlaceholder(ctx context.Context, op string, job *models.InlineJob) (*InlineAck, error) {
	job.AckLatencyMS = time.Since(job.RequestedAt).Milliseconds()
	if job.AckLatencyMS < 0 {
		job.AckLatencyMS = 0
	}
	if err := h.queue.EnqueueInline(ctx, job); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue inline job", err)
	}
	if _, err := h.sender.SendMessage(job.ChatID, job.ThreadID, job.ReplyToMessageID, AnalyzingPlaceholder); err != nil {
		h.log.WithError(err).WithField("job_id", job.JobID).Warn("failed to send placeholder")
	}
	return &InlineAck{Status: "ok", JobID: job.JobID, TriggerType: job.TriggerType}, nil
}

// LargestPhoto picks the highest-resolution variant's file id.
func LargestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := ""
	bestArea := -1
	for _, s := range sizes {
		if area := s.Width * s.Height; area > bestArea {
			bestArea = area
			best = s.FileID
		}
	}
	return best
}

func (h *InlineHandler) stripMention(text string) string {
	if h.botUsername == "" {
		return strings.TrimSpace(text)
	}
	mention := "@" + h.botUsername
	out := make([]string, 0, 4)
	for _, f := range strings.Fields(text) {
		if strings.EqualFold(f, mention) {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// splitQuery treats the first token of an inline query as a photo file
// id and the remainder as a free-text meal description.
func splitQuery(q string) (fileID, caption string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ""
	}
	parts := strings.SplitN(q, " ", 2)
	fileID = parts[0]
	if len(parts) == 2 {
		caption = strings.TrimSpace(parts[1])
	}
	return fileID, caption
}
