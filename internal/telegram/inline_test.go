package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type fakeQueue struct {
	mu         sync.Mutex
	inline     []*models.InlineJob
	estimate   []*models.EstimateJob
	enqueueErr error
}

func (q *fakeQueue) EnqueueEstimate(ctx context.Context, job *models.EstimateJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.estimate = append(q.estimate, job)
	return nil
}

func (q *fakeQueue) DequeueEstimate(ctx context.Context) (*models.EstimateJob, error) {
	return nil, nil
}

func (q *fakeQueue) EnqueueInline(ctx context.Context, job *models.InlineJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.inline = append(q.inline, job)
	return nil
}

func (q *fakeQueue) DequeueInline(ctx context.Context) (*models.InlineJob, error) {
	return nil, nil
}

func (q *fakeQueue) inlineJobs() []*models.InlineJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*models.InlineJob(nil), q.inline...)
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		delete(c.ttls, k)
	}
	return nil
}

type sentMessage struct {
	chatID  int64
	thread  int
	replyTo int
	text    string
}

type inlineAnswer struct {
	queryID string
	results []any
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	answers []inlineAnswer
	edits   map[string]string
	actions []int64

	sendErr   error
	answerErr error
	editErr   error

	downloadData []byte
	downloadCT   string
	downloadErr  error
}

func newFakeSender() *fakeSender {
	return &fakeSender{edits: map[string]string{}}
}

func (s *fakeSender) SendMessage(chatID int64, threadID, replyToMessageID int, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, thread: threadID, replyTo: replyToMessageID, text: text})
	return 1000 + len(s.sent), nil
}

func (s *fakeSender) EditInlineMessage(inlineMessageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editErr != nil {
		return s.editErr
	}
	s.edits[inlineMessageID] = text
	return nil
}

func (s *fakeSender) AnswerInlineQuery(inlineQueryID string, results []any, cacheTime int, isPersonal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answerErr != nil {
		return s.answerErr
	}
	s.answers = append(s.answers, inlineAnswer{queryID: inlineQueryID, results: results})
	return nil
}

func (s *fakeSender) SendChatAction(chatID int64, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, chatID)
	return nil
}

func (s *fakeSender) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	if s.downloadErr != nil {
		return nil, "", s.downloadErr
	}
	return s.downloadData, s.downloadCT, nil
}

func (s *fakeSender) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func newTestInlineHandler() (*InlineHandler, *fakeQueue, *fakeCache, *fakeSender) {
	q := &fakeQueue{}
	c := newFakeCache()
	s := newFakeSender()
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewInlineHandler(q, c, s, services.NewSubjectHasher("test-secret"), "calbot", log)
	return h, q, c, s
}

func TestNormalizeChatType(t *testing.T) {
	cases := map[string]string{
		"private":    models.ChatTypePrivate,
		"sender":     models.ChatTypePrivate,
		"":           models.ChatTypePrivate,
		"group":      models.ChatTypeGroup,
		"supergroup": models.ChatTypeGroup,
		"channel":    models.ChatTypeGroup,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeChatType(raw), "chat type %q", raw)
	}
}

func TestHandleInlineQueryPrivateCarriesPrivacyNotice(t *testing.T) {
	h, q, _, s := newTestInlineHandler()

	ack, err := h.HandleInlineQuery(context.Background(), &tgbotapi.InlineQuery{
		ID:       "q1",
		From:     &tgbotapi.User{ID: 42},
		Query:    "file123 pasta with pesto",
		ChatType: "private",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", ack.Status)
	assert.Equal(t, models.TriggerInlineQuery, ack.TriggerType)

	jobs := q.inlineJobs()
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, ack.JobID, job.JobID)
	assert.Equal(t, "file123", job.FileID)
	assert.Equal(t, "pasta with pesto", job.Caption)
	assert.Equal(t, models.ChatTypePrivate, job.ChatType)
	assert.Equal(t, int64(42), job.UserID)
	assert.Equal(t, int64(42), job.ChatID, "author DM is the default delivery target")
	assert.NotEmpty(t, job.UserIDHash)
	assert.Equal(t, true, job.Metadata["privacy_notice"])
	assert.Equal(t, "inline_private", job.Metadata["consent_scope"])

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.answers, 1)
	assert.Equal(t, "q1", s.answers[0].queryID)
	require.Len(t, s.answers[0].results, 1)

	article, ok := s.answers[0].results[0].(tgbotapi.InlineQueryResultArticle)
	require.True(t, ok)
	assert.Equal(t, job.JobID, article.ID, "result id doubles as the job id")

	content, ok := article.InputMessageContent.(tgbotapi.InputTextMessageContent)
	require.True(t, ok)
	assert.Contains(t, content.Text, PrivacyNotice)
	assert.Contains(t, content.Text, UsageGuidePointer)
}

func TestHandleInlineQueryGroupSkipsPrivacyNotice(t *testing.T) {
	h, q, _, s := newTestInlineHandler()

	_, err := h.HandleInlineQuery(context.Background(), &tgbotapi.InlineQuery{
		ID:       "q2",
		From:     &tgbotapi.User{ID: 42},
		Query:    "file123",
		ChatType: "supergroup",
	})
	require.NoError(t, err)

	job := q.inlineJobs()[0]
	assert.Equal(t, models.ChatTypeGroup, job.ChatType)
	assert.NotContains(t, job.Metadata, "privacy_notice")
	assert.NotContains(t, job.Metadata, "consent_scope")

	s.mu.Lock()
	defer s.mu.Unlock()
	article := s.answers[0].results[0].(tgbotapi.InlineQueryResultArticle)
	content := article.InputMessageContent.(tgbotapi.InputTextMessageContent)
	assert.Equal(t, InlinePlaceholderIntro, content.Text)
}

func TestHandleInlineQueryEnqueueFailure(t *testing.T) {
	h, q, _, s := newTestInlineHandler()
	q.enqueueErr = errors.New("redis down")

	ack, err := h.HandleInlineQuery(context.Background(), &tgbotapi.InlineQuery{
		ID:    "q3",
		From:  &tgbotapi.User{ID: 42},
		Query: "file123",
	})
	require.Error(t, err)
	assert.Nil(t, ack)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Empty(t, s.answers)
}

func TestHandleChosenInlineResultStoresUpgradeTarget(t *testing.T) {
	h, _, c, _ := newTestInlineHandler()

	err := h.HandleChosenInlineResult(context.Background(), &tgbotapi.ChosenInlineResult{
		ResultID:        "job-1",
		InlineMessageID: "im-9",
	})
	require.NoError(t, err)

	var target string
	hit, err := c.GetJSON(context.Background(), InlineTargetKey("job-1"), &target)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "im-9", target)

	// Results posted without an inline message id leave no mapping.
	require.NoError(t, h.HandleChosenInlineResult(context.Background(), &tgbotapi.ChosenInlineResult{ResultID: "job-2"}))
	hit, _ = c.GetJSON(context.Background(), InlineTargetKey("job-2"), &target)
	assert.False(t, hit)
}

func TestBuildReplyMentionTargetsRepliedPhoto(t *testing.T) {
	h, q, _, s := newTestInlineHandler()

	msg := &tgbotapi.Message{
		MessageID: 55,
		Date:      int(time.Now().Unix()),
		Text:      "@calbot how many calories?",
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: -100123, Type: "supergroup"},
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 44,
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "big", Width: 800, Height: 600},
			},
		},
	}

	ack, err := h.BuildReplyMention(context.Background(), msg, 17)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerReplyMention, ack.TriggerType)

	job := q.inlineJobs()[0]
	assert.Equal(t, "big", job.FileID, "highest-resolution variant wins")
	assert.Equal(t, "how many calories?", job.Caption)
	assert.Equal(t, models.ChatTypeGroup, job.ChatType)
	assert.Equal(t, int64(-100123), job.ChatID)
	assert.Equal(t, 17, job.ThreadID)
	assert.Equal(t, 44, job.ReplyToMessageID, "result replies to the photo message")
	assert.True(t, job.MetaBool("failure_dm_required"))

	sent := s.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, AnalyzingPlaceholder, sent[0].text)
	assert.Equal(t, int64(-100123), sent[0].chatID)
	assert.Equal(t, 17, sent[0].thread)
}

func TestBuildReplyMentionFallsBackToPhotoCaption(t *testing.T) {
	h, q, _, _ := newTestInlineHandler()

	msg := &tgbotapi.Message{
		MessageID: 56,
		Date:      int(time.Now().Unix()),
		Text:      "@calbot",
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 45,
			Caption:   "leftover curry",
			Photo:     []tgbotapi.PhotoSize{{FileID: "f1", Width: 100, Height: 100}},
		},
	}

	_, err := h.BuildReplyMention(context.Background(), msg, 0)
	require.NoError(t, err)

	job := q.inlineJobs()[0]
	assert.Equal(t, "leftover curry", job.Caption)
	assert.False(t, job.MetaBool("failure_dm_required"), "private chats never need the DM fallback")
}

func TestBuildReplyMentionRequiresPhoto(t *testing.T) {
	h, q, _, _ := newTestInlineHandler()

	msg := &tgbotapi.Message{
		MessageID:      57,
		Text:           "@calbot",
		From:           &tgbotapi.User{ID: 42},
		Chat:           &tgbotapi.Chat{ID: 42, Type: "private"},
		ReplyToMessage: &tgbotapi.Message{MessageID: 46, Text: "no photo here"},
	}

	_, err := h.BuildReplyMention(context.Background(), msg, 0)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.Empty(t, q.inlineJobs())
}

func TestBuildTaggedPhotoUsesOwnPhoto(t *testing.T) {
	h, q, _, _ := newTestInlineHandler()

	msg := &tgbotapi.Message{
		MessageID: 60,
		Date:      int(time.Now().Unix()),
		Caption:   "breakfast @calbot oatmeal",
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: -100123, Type: "group"},
		Photo:     []tgbotapi.PhotoSize{{FileID: "photo-f", Width: 640, Height: 480}},
	}

	ack, err := h.BuildTaggedPhoto(context.Background(), msg, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerTaggedPhoto, ack.TriggerType)

	job := q.inlineJobs()[0]
	assert.Equal(t, "photo-f", job.FileID)
	assert.Equal(t, "breakfast oatmeal", job.Caption, "mention stripped from the caption")
	assert.Equal(t, 60, job.ReplyToMessageID, "result replies to the tagged post")
	assert.False(t, job.MetaBool("failure_dm_required"), "tagged posts keep failures in the chat")
}

func TestLargestPhoto(t *testing.T) {
	sizes := []tgbotapi.PhotoSize{
		{FileID: "a", Width: 320, Height: 240},
		{FileID: "b", Width: 1280, Height: 720},
		{FileID: "c", Width: 800, Height: 600},
	}
	assert.Equal(t, "b", LargestPhoto(sizes))
	assert.Equal(t, "", LargestPhoto(nil))
}

func TestStripMentionIsCaseInsensitive(t *testing.T) {
	h, _, _, _ := newTestInlineHandler()

	assert.Equal(t, "lunch bowl", h.stripMention("@CalBot lunch bowl"))
	assert.Equal(t, "lunch bowl", h.stripMention("lunch @calbot bowl"))
	assert.Equal(t, "", h.stripMention("@calbot"))
	assert.Equal(t, "keep @other mentions", h.stripMention("keep @other mentions"))
}

func TestSplitQuery(t *testing.T) {
	fileID, caption := splitQuery("  file123  pasta lunch ")
	assert.Equal(t, "file123", fileID)
	assert.Equal(t, "pasta lunch", caption)

	fileID, caption = splitQuery("file123")
	assert.Equal(t, "file123", fileID)
	assert.Empty(t, caption)

	fileID, caption = splitQuery("   ")
	assert.Empty(t, fileID)
	assert.Empty(t, caption)
}
