package telegram

import (
	"context"
	"encoding/json"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
)

// UpdateHandler routes one webhook update to the aggregator, the
// inline pipeline, or a command reply. Processing errors never
// propagate to the webhook response; the platform retries hard on
// non-200 and the retries would replay the same failure.
type UpdateHandler struct {
	users       services.UserService
	photos      services.PhotoService
	estimates   services.EstimateService
	inline      *InlineHandler
	agg         *Aggregator
	sender      Sender
	botUsername string
	log         *logrus.Logger
}

func NewUpdateHandler(
	ctx context.Context,
	users services.UserService,
	photos services.PhotoService,
	estimates services.EstimateService,
	inline *InlineHandler,
	sender Sender,
	botUsername string,
	log *logrus.Logger,
) *UpdateHandler {
	if log == nil {
		log = logrus.New()
	}
	h := &UpdateHandler{
		users:       users,
		photos:      photos,
		estimates:   estimates,
		inline:      inline,
		sender:      sender,
		botUsername: botUsername,
		log:         log,
	}
	h.agg = NewAggregator(ctx, h.ProcessBatch, log)
	return h
}

// Aggregator exposes the photo grouper, mainly so tests can shorten
// its debounce windows.
func (h *UpdateHandler) Aggregator() *Aggregator { return h.agg }

func okResponse() map[string]any { return map[string]any{"status": "ok"} }

// Handle processes one parsed update. raw is the original payload,
// kept around because the typed update drops the thread id.
func (h *UpdateHandler) Handle(ctx context.Context, upd *tgbotapi.Update, raw []byte) any {
	switch {
	case upd.InlineQuery != nil:
		ack, err := h.inline.HandleInlineQuery(ctx, upd.InlineQuery)
		if err != nil {
			h.log.WithError(err).Error("inline query handling failed")
			return okResponse()
		}
		return ack

	case upd.ChosenInlineResult != nil:
		if err := h.inline.HandleChosenInlineResult(ctx, upd.ChosenInlineResult); err != nil {
			h.log.WithError(err).Error("chosen inline result handling failed")
		}
		return okResponse()

	case upd.Message != nil:
		return h.handleMessage(ctx, upd.Message, threadIDFromRaw(raw))

	default:
		return okResponse()
	}
}

func (h *UpdateHandler) handleMessage(ctx context.Context, msg *tgbotapi.Message, threadID int) any {
	if msg.From == nil || msg.From.IsBot {
		return okResponse()
	}

	if _, err := h.users.CreateOrGet(ctx, msg.From.ID, msg.From.UserName, msg.From.LanguageCode); err != nil {
		h.log.WithError(err).WithField("telegram_id", msg.From.ID).Error("failed to ensure user")
	}

	isPrivate := msg.Chat != nil && msg.Chat.IsPrivate()

	switch {
	case msg.IsCommand():
		h.handleCommand(msg, threadID)
		return okResponse()

	case len(msg.Photo) > 0:
		if !isPrivate {
			if h.mentionsBot(msg.Caption) {
				return h.inlineAck(h.inline.BuildTaggedPhoto(ctx, msg, threadID))
			}
			return okResponse()
		}
		photo := PhotoRef{FileID: LargestPhoto(msg.Photo), MessageID: msg.MessageID}
		if warn := h.agg.OnPhoto(msg.Chat.ID, msg.From.ID, msg.MediaGroupID, photo, msg.Caption); warn {
			if _, err := h.sender.SendMessage(msg.Chat.ID, threadID, 0, PhotoLimitWarning); err != nil {
				h.log.WithError(err).Warn("failed to send photo limit warning")
			}
		}
		return okResponse()

	case msg.ReplyToMessage != nil && len(msg.ReplyToMessage.Photo) > 0 && h.mentionsBot(msg.Text):
		return h.inlineAck(h.inline.BuildReplyMention(ctx, msg, threadID))

	case isPrivate && msg.Text != "":
		if _, err := h.sender.SendMessage(msg.Chat.ID, 0, 0, UnknownMessageReply); err != nil {
			h.log.WithError(err).Warn("failed to send fallback reply")
		}
		return okResponse()

	default:
		return okResponse()
	}
}

func (h *UpdateHandler) handleCommand(msg *tgbotapi.Message, threadID int) {
	var reply string
	switch msg.Command() {
	case "start":
		reply = StartMessage
	case "help":
		reply = HelpMessage
	default:
		reply = UnknownMessageReply
	}
	if _, err := h.sender.SendMessage(msg.Chat.ID, threadID, 0, reply); err != nil {
		h.log.WithError(err).WithField("command", msg.Command()).Warn("failed to send command reply")
	}
}

// ProcessBatch is the aggregator's dispatch target: it downloads each
// photo, stores it, and enqueues one estimation job for the batch.
// Individual photo failures are tolerated; only a fully empty batch
// aborts with a user-facing failure message.
func (h *UpdateHandler) ProcessBatch(ctx context.Context, b Batch) {
	log := h.log.WithFields(logrus.Fields{
		"chat_id":     b.ChatID,
		"media_group": b.MediaGroupID,
		"photos":      len(b.Photos),
	})

	user, err := h.users.CreateOrGet(ctx, b.UserID, "", "")
	if err != nil {
		log.WithError(err).Error("batch aborted: user lookup failed")
		h.sendFailure(b.ChatID)
		return
	}
	if err := h.sender.SendChatAction(b.ChatID, "typing"); err != nil {
		log.WithError(err).Debug("chat action failed")
	}

	photoIDs := make([]string, 0, len(b.Photos))
	for i, ref := range b.Photos {
		data, contentType, derr := h.sender.DownloadFile(ctx, ref.FileID)
		if derr != nil {
			log.WithError(derr).WithField("file_id", ref.FileID).Warn("photo download failed")
			continue
		}
		photo, ierr := h.photos.Ingest(ctx, user.ID, data, contentType, i, b.MediaGroupID)
		if ierr != nil {
			log.WithError(ierr).WithField("file_id", ref.FileID).Warn("photo ingest failed")
			continue
		}
		photoIDs = append(photoIDs, photo.ID)
	}
	if len(photoIDs) == 0 {
		log.Error("batch aborted: no photos survived ingest")
		h.sendFailure(b.ChatID)
		return
	}

	jobID, err := h.estimates.Dispatch(ctx, photoIDs, b.Caption)
	if err != nil {
		log.WithError(err).Error("batch aborted: dispatch failed")
		h.sendFailure(b.ChatID)
		return
	}
	log.WithField("job_id", jobID).Info("estimation job dispatched")

	if _, err := h.sender.SendMessage(b.ChatID, 0, 0, AnalyzingPlaceholder); err != nil {
		log.WithError(err).Warn("failed to send analyzing placeholder")
	}
}

func (h *UpdateHandler) sendFailure(chatID int64) {
	if _, err := h.sender.SendMessage(chatID, 0, 0, GenericFailureMessage); err != nil {
		h.log.WithError(err).Warn("failed to send failure message")
	}
}

func (h *UpdateHandler) inlineAck(ack *InlineAck, err error) any {
	if err != nil {
		h.log.WithError(err).Error("inline trigger handling failed")
		return okResponse()
	}
	return ack
}

func (h *UpdateHandler) mentionsBot(text string) bool {
	if h.botUsername == "" || text == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(h.botUsername))
}

// threadIDFromRaw digs message_thread_id out of the raw update; the
// typed message struct predates forum topics and drops the field.
func threadIDFromRaw(raw []byte) int {
	var overlay struct {
		Message struct {
			MessageThreadID int `json:"message_thread_id"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return 0
	}
	return overlay.Message.MessageThreadID
}
