package workers

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
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
	"github.com/gofrolist/calorie-track-ai-bot/internal/telegram"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type inlinePoolFixture struct {
	pool      *InlineWorkerPool
	sender    *stubSender
	store     *stubStore
	vision    *stubVision
	throttle  *stubThrottle
	analytics *stubAnalytics
	cache     *memCache
}

func newInlinePoolFixture() *inlinePoolFixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &inlinePoolFixture{
		sender:    newStubSender(),
		store:     newStubStore(),
		vision:    &stubVision{res: &vision.Result{KcalMean: 500, KcalMin: 420, KcalMax: 580, Confidence: 0.8}},
		throttle:  &stubThrottle{due: true},
		analytics: &stubAnalytics{},
		cache:     newMemCache(),
	}
	f.pool = &InlineWorkerPool{
		Cache:     f.cache,
		Uploader:  f.store,
		Signer:    f.store,
		Vision:    f.vision,
		Sender:    f.sender,
		Throttle:  f.throttle,
		Analytics: f.analytics,
		Bucket:    "meals-bucket",
		Logger:    log,
	}
	return f
}

func groupReplyJob() *models.InlineJob {
	return &models.InlineJob{
		JobID:            "job-1",
		TriggerType:      models.TriggerReplyMention,
		ChatType:         models.ChatTypeGroup,
		ChatID:           -100500,
		ChatIDHash:       "chat-hash",
		ThreadID:         7,
		ReplyToMessageID: 44,
		UserID:           42,
		UserIDHash:       "user-hash",
		FileID:           "file-1",
		RequestedAt:      time.Now().Add(-2 * time.Second).UTC(),
		AckLatencyMS:     150,
		Metadata:         map[string]any{"failure_dm_required": true},
	}
}

func TestInlineWorkerDeliversChatReply(t *testing.T) {
	f := newInlinePoolFixture()
	job := groupReplyJob()

	f.pool.handleJob(context.Background(), job)

	sends := f.sender.sentTo(-100500)
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].Text, "Meal estimate")
	assert.Contains(t, sends[0].Text, "500 kcal")
	assert.Equal(t, 7, sends[0].Thread)
	assert.Equal(t, 44, sends[0].ReplyTo)

	assert.Contains(t, f.store.uploads, "inline/job-1.jpg", "upload lands under the transient prefix")

	require.Len(t, f.analytics.outcomes, 1)
	o := f.analytics.outcomes[0]
	assert.True(t, o.Delivered)
	assert.Empty(t, o.FailureReason)
	assert.False(t, o.PermissionBlocked)
	assert.Equal(t, int64(150), o.AckLatencyMS)
	assert.GreaterOrEqual(t, o.ResultLatencyMS, int64(2000), "latency measured from the originating request")
}

func TestInlineWorkerUsesChosenResultUpgrade(t *testing.T) {
	f := newInlinePoolFixture()

	job := &models.InlineJob{
		JobID:       "job-2",
		TriggerType: models.TriggerInlineQuery,
		ChatType:    models.ChatTypePrivate,
		ChatID:      42,
		UserID:      42,
		FileID:      "file-2",
		RequestedAt: time.Now().UTC(),
	}
	require.NoError(t, f.cache.SetJSON(context.Background(), telegram.InlineTargetKey("job-2"), "im-77", time.Hour))

	f.pool.handleJob(context.Background(), job)

	assert.Contains(t, f.sender.edits, "im-77", "upgraded target is edited in place")
	assert.Empty(t, f.sender.sentTo(42), "no DM once the posted result is editable")
	require.Len(t, f.analytics.outcomes, 1)
	assert.True(t, f.analytics.outcomes[0].Delivered)
}

func TestInlineWorkerFallsBackToAuthorDM(t *testing.T) {
	f := newInlinePoolFixture()

	job := &models.InlineJob{
		JobID:       "job-3",
		TriggerType: models.TriggerInlineQuery,
		ChatType:    models.ChatTypePrivate,
		ChatID:      42,
		UserID:      42,
		FileID:      "file-3",
		RequestedAt: time.Now().UTC(),
	}

	f.pool.handleJob(context.Background(), job)

	require.Len(t, f.sender.sentTo(42), 1, "no upgrade recorded, result goes to the author DM")
	assert.Empty(t, f.sender.edits)
}

func TestInlineWorkerEditsKnownInlineMessage(t *testing.T) {
	f := newInlinePoolFixture()

	job := &models.InlineJob{
		JobID:           "job-4",
		TriggerType:     models.TriggerInlineQuery,
		ChatType:        models.ChatTypeGroup,
		InlineMessageID: "im-88",
		FileID:          "file-4",
		RequestedAt:     time.Now().UTC(),
	}

	f.pool.handleJob(context.Background(), job)

	assert.Contains(t, f.sender.edits, "im-88")
}

func TestInlineWorkerDownloadFailureNotifiesUser(t *testing.T) {
	f := newInlinePoolFixture()
	f.sender.downloadErr = errors.New("file expired")
	job := groupReplyJob()

	f.pool.handleJob(context.Background(), job)

	sends := f.sender.sentTo(-100500)
	require.Len(t, sends, 1)
	assert.Equal(t, telegram.GenericFailureMessage, sends[0].Text)

	require.Len(t, f.analytics.outcomes, 1)
	o := f.analytics.outcomes[0]
	assert.False(t, o.Delivered)
	assert.Equal(t, "download_failed", o.FailureReason)
}

func TestInlineWorkerEstimationFailureNotifiesUser(t *testing.T) {
	f := newInlinePoolFixture()
	f.vision.err = errors.New("model overloaded")
	job := groupReplyJob()

	f.pool.handleJob(context.Background(), job)

	sends := f.sender.sentTo(-100500)
	require.Len(t, sends, 1)
	assert.Equal(t, telegram.GenericFailureMessage, sends[0].Text)
	assert.Equal(t, "estimation_failed", f.analytics.outcomes[0].FailureReason)
}

func TestInlineWorkerPermissionBlockedSendsOneDM(t *testing.T) {
	f := newInlinePoolFixture()
	f.sender.sendErrByChat[-100500] = &tgbotapi.Error{Code: 403, Message: "Forbidden: not enough rights to send text messages to the chat"}
	job := groupReplyJob()

	f.pool.handleJob(context.Background(), job)

	dms := f.sender.sentTo(42)
	require.Len(t, dms, 1, "author is told once via DM")
	assert.Equal(t, telegram.NoPermissionDM, dms[0].Text)

	require.Len(t, f.throttle.marks, 1, "throttle marked only after the DM went out")
	assert.Equal(t, [2]string{"chat-hash", "user-hash"}, f.throttle.marks[0])

	require.Len(t, f.analytics.outcomes, 1)
	o := f.analytics.outcomes[0]
	assert.False(t, o.Delivered)
	assert.True(t, o.PermissionBlocked)
	assert.Equal(t, "permission_blocked", o.FailureReason)
}

func TestInlineWorkerPermissionDMThrottled(t *testing.T) {
	f := newInlinePoolFixture()
	f.sender.sendErrByChat[-100500] = &tgbotapi.Error{Code: 403, Message: "Forbidden"}
	f.throttle.due = false
	job := groupReplyJob()

	f.pool.handleJob(context.Background(), job)

	assert.Empty(t, f.sender.sentTo(42), "suppressed notice sends nothing")
	assert.Empty(t, f.throttle.marks)
	assert.True(t, f.analytics.outcomes[0].PermissionBlocked, "outcome is still recorded")
}

func TestInlineWorkerFailedDMLeavesThrottleUnmarked(t *testing.T) {
	f := newInlinePoolFixture()
	f.sender.sendErrByChat[-100500] = &tgbotapi.Error{Code: 403, Message: "Forbidden"}
	f.sender.sendErrByChat[42] = errors.New("network error")
	job := groupReplyJob()

	f.pool.handleJob(context.Background(), job)

	assert.Empty(t, f.throttle.marks, "a failed DM must not suppress the next notice")
}

func TestInlineWorkerTaggedPhotoSkipsDMFallback(t *testing.T) {
	f := newInlinePoolFixture()
	f.sender.sendErrByChat[-100500] = &tgbotapi.Error{Code: 403, Message: "Forbidden"}

	job := groupReplyJob()
	job.TriggerType = models.TriggerTaggedPhoto
	job.Metadata = map[string]any{}

	f.pool.handleJob(context.Background(), job)

	assert.Empty(t, f.sender.sentTo(42))
	require.Len(t, f.analytics.outcomes, 1)
	assert.True(t, f.analytics.outcomes[0].PermissionBlocked)
}

func TestInlineWorkerDropsJobWithoutTarget(t *testing.T) {
	f := newInlinePoolFixture()

	job := &models.InlineJob{
		JobID:       "job-9",
		TriggerType: models.TriggerInlineQuery,
		ChatType:    models.ChatTypePrivate,
		FileID:      "file-9",
		RequestedAt: time.Now().UTC(),
	}

	f.pool.handleJob(context.Background(), job)

	assert.Empty(t, f.sender.sends)
	assert.Empty(t, f.sender.edits)
	assert.Empty(t, f.analytics.outcomes, "untargetable jobs never reach the rollup")
}

func TestInlineWorkerStartValidatesDependencies(t *testing.T) {
	p := &InlineWorkerPool{}
	err := p.Start(context.Background())
	require.Error(t, err)
}
