package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// API is the slice of the Bot API client the app depends on,
// satisfied by *tgbotapi.BotAPI.
type API interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Sender is the outbound surface handlers and workers use; *Client
// implements it.
type Sender interface {
	SendMessage(chatID int64, threadID, replyToMessageID int, text string) (int, error)
	EditInlineMessage(inlineMessageID, text string) error
	AnswerInlineQuery(inlineQueryID string, results []any, cacheTime int, isPersonal bool) error
	SendChatAction(chatID int64, action string) error
	DownloadFile(ctx context.Context, fileID string) (data []byte, contentType string, err error)
}

const maxFileDownload = 20 << 20 // Bot API file size ceiling

type Client struct {
	api   API
	httpc *http.Client
	log   *logrus.Logger
}

func NewClient(api API, log *logrus.Logger) *Client {
	return &Client{
		api:   api,
		httpc: &http.Client{Timeout: 60 * time.Second},
		log:   log,
	}
}

// SendMessage posts text into a chat, optionally as a threaded reply.
// Thread sends go through the raw endpoint because the typed config
// has no message_thread_id field.
func (c *Client) SendMessage(chatID int64, threadID, replyToMessageID int, text string) (int, error) {
	if threadID != 0 {
		params := tgbotapi.Params{}
		params.AddNonZero64("chat_id", chatID)
		params.AddNonEmpty("text", text)
		params.AddNonEmpty("parse_mode", tgbotapi.ModeMarkdown)
		params.AddNonZero("message_thread_id", threadID)
		params.AddNonZero("reply_to_message_id", replyToMessageID)

		resp, err := c.api.MakeRequest("sendMessage", params)
		if err != nil {
			return 0, err
		}
		var sent struct {
			MessageID int `json:"message_id"`
		}
		_ = json.Unmarshal(resp.Result, &sent)
		return sent.MessageID, nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyToMessageID = replyToMessageID

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditInlineMessage(inlineMessageID, text string) error {
	edit := tgbotapi.EditMessageTextConfig{
		BaseEdit: tgbotapi.BaseEdit{InlineMessageID: inlineMessageID},
		Text:     text,
	}
	edit.ParseMode = tgbotapi.ModeMarkdown

	_, err := c.api.Request(edit)
	return err
}

func (c *Client) AnswerInlineQuery(inlineQueryID string, results []any, cacheTime int, isPersonal bool) error {
	_, err := c.api.Request(tgbotapi.InlineConfig{
		InlineQueryID: inlineQueryID,
		Results:       results,
		CacheTime:     cacheTime,
		IsPersonal:    isPersonal,
	})
	return err
}

func (c *Client) SendChatAction(chatID int64, action string) error {
	_, err := c.api.Request(tgbotapi.NewChatAction(chatID, action))
	return err
}

// DownloadFile fetches photo bytes via the file API.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("file download http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileDownload))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty file download")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = contentTypeFromPath(url)
	}
	return data, ct, nil
}

func contentTypeFromPath(p string) string {
	switch {
	case strings.HasSuffix(p, ".png"):
		return "image/png"
	case strings.HasSuffix(p, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// IsPermissionError reports whether delivery failed because the bot
// lacks rights in the target chat (blocked, kicked, or restricted),
// as opposed to a transient API failure.
func IsPermissionError(err error) bool {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return false
	}
	if tgErr.Code == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(tgErr.Message)
	for _, marker := range []string{
		"bot was blocked",
		"bot was kicked",
		"not enough rights",
		"have no rights",
		"chat_write_forbidden",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
