package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/telegram"
)

const maxUpdateBytes = 2 << 20

// WebhookHandler receives Telegram updates. Handled updates always get
// HTTP 200 whatever happened internally; a non-200 would make the
// platform redeliver the same update in a retry storm. Only a payload
// that fails top-level parsing returns 500.
type WebhookHandler struct {
	updates *telegram.UpdateHandler
	secret  string
	log     *logrus.Logger
}

func NewWebhookHandler(updates *telegram.UpdateHandler, secret string, log *logrus.Logger) *WebhookHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WebhookHandler{updates: updates, secret: secret, log: log}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.secret != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "unauthorized"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes))
	if err != nil {
		h.log.WithError(err).Error("webhook body read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	var upd tgbotapi.Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		h.log.WithError(err).Error("webhook payload parse failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, h.updates.Handle(c.Request.Context(), &upd, raw))
}
