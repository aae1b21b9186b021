package telegram

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchCollector struct {
	mu      sync.Mutex
	batches []Batch
}

func (c *batchCollector) dispatch(ctx context.Context, b Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, b)
}

func (c *batchCollector) snapshot() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

func newTestAggregator(t *testing.T) (*Aggregator, *batchCollector) {
	t.Helper()
	col := &batchCollector{}
	log := logrus.New()
	log.SetOutput(io.Discard)

	a := NewAggregator(context.Background(), col.dispatch, log)
	a.MediaGroupDebounce = 40 * time.Millisecond
	a.WindowDebounce = 60 * time.Millisecond
	a.StaleGap = 150 * time.Millisecond
	return a, col
}

func TestAggregatorMediaGroupFlushesOneBatchInOrder(t *testing.T) {
	a, col := newTestAggregator(t)

	for i := 1; i <= 3; i++ {
		warn := a.OnPhoto(100, 7, "mg1", PhotoRef{FileID: "f" + strconv.Itoa(i), MessageID: i}, "")
		assert.False(t, warn)
	}

	require.Eventually(t, func() bool { return len(col.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	b := col.snapshot()[0]
	assert.Equal(t, int64(100), b.ChatID)
	assert.Equal(t, int64(7), b.UserID)
	assert.Equal(t, "mg1", b.MediaGroupID)
	require.Len(t, b.Photos, 3)
	for i, p := range b.Photos {
		assert.Equal(t, "f"+strconv.Itoa(i+1), p.FileID)
	}
}

func TestAggregatorCapKeepsFirstFiveAndWarnsOnce(t *testing.T) {
	a, col := newTestAggregator(t)

	warns := 0
	for i := 1; i <= 7; i++ {
		if a.OnPhoto(100, 7, "mg2", PhotoRef{FileID: "f" + strconv.Itoa(i), MessageID: i}, "") {
			warns++
		}
	}
	assert.Equal(t, 1, warns, "only the first photo past the cap warns")

	require.Eventually(t, func() bool { return len(col.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	b := col.snapshot()[0]
	require.Len(t, b.Photos, 5)
	assert.Equal(t, "f5", b.Photos[4].FileID)
}

func TestAggregatorCaptionComesFromAnyGroupMessage(t *testing.T) {
	a, col := newTestAggregator(t)

	a.OnPhoto(100, 7, "mg3", PhotoRef{FileID: "f1", MessageID: 1}, "")
	a.OnPhoto(100, 7, "mg3", PhotoRef{FileID: "f2", MessageID: 2}, "chicken salad with rice")
	a.OnPhoto(100, 7, "mg3", PhotoRef{FileID: "f3", MessageID: 3}, "")

	require.Eventually(t, func() bool { return len(col.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "chicken salad with rice", col.snapshot()[0].Caption)
}

func TestAggregatorWindowBatchesUngroupedPhotos(t *testing.T) {
	a, col := newTestAggregator(t)

	a.OnPhoto(200, 8, "", PhotoRef{FileID: "w1", MessageID: 1}, "")
	time.Sleep(20 * time.Millisecond)
	a.OnPhoto(200, 8, "", PhotoRef{FileID: "w2", MessageID: 2}, "")

	require.Eventually(t, func() bool { return len(col.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	b := col.snapshot()[0]
	assert.Empty(t, b.MediaGroupID)
	require.Len(t, b.Photos, 2)
	assert.Equal(t, "w1", b.Photos[0].FileID)
	assert.Equal(t, "w2", b.Photos[1].FileID)
}

func TestAggregatorWindowKeepsUsersSeparate(t *testing.T) {
	a, col := newTestAggregator(t)

	a.OnPhoto(200, 8, "", PhotoRef{FileID: "u8", MessageID: 1}, "")
	a.OnPhoto(200, 9, "", PhotoRef{FileID: "u9", MessageID: 2}, "")

	require.Eventually(t, func() bool { return len(col.snapshot()) == 2 }, time.Second, 10*time.Millisecond)

	users := map[int64]string{}
	for _, b := range col.snapshot() {
		require.Len(t, b.Photos, 1)
		users[b.UserID] = b.Photos[0].FileID
	}
	assert.Equal(t, map[int64]string{8: "u8", 9: "u9"}, users)
}

func TestAggregatorStaleGapForcesNewBatch(t *testing.T) {
	a, col := newTestAggregator(t)
	// Debounce longer than the gap so only the stale path can flush
	// the first photo before the second arrives.
	a.WindowDebounce = 400 * time.Millisecond

	a.OnPhoto(200, 9, "", PhotoRef{FileID: "w1", MessageID: 1}, "")
	time.Sleep(a.StaleGap + 50*time.Millisecond)
	a.OnPhoto(200, 9, "", PhotoRef{FileID: "w2", MessageID: 2}, "")

	// The stale group is flushed synchronously before the new photo
	// is buffered.
	first := col.snapshot()
	require.Len(t, first, 1)
	require.Len(t, first[0].Photos, 1)
	assert.Equal(t, "w1", first[0].Photos[0].FileID)

	require.Eventually(t, func() bool { return len(col.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	second := col.snapshot()[1]
	require.Len(t, second.Photos, 1)
	assert.Equal(t, "w2", second.Photos[0].FileID)
}

func TestAggregatorGuardAllowsExactlyOneFlush(t *testing.T) {
	a, col := newTestAggregator(t)

	a.mu.Lock()
	a.mediaGroups["mg4"] = &photoGroup{
		chatID: 300,
		userID: 10,
		photos: []PhotoRef{{FileID: "f1", MessageID: 1}},
	}
	a.guard["mg4"] = struct{}{}
	a.mu.Unlock()

	// A flush attempt while another holds the claim is a no-op and
	// leaves the group buffered.
	a.flushMediaGroup("mg4")
	assert.Empty(t, col.snapshot())

	a.mu.Lock()
	delete(a.guard, "mg4")
	a.mu.Unlock()

	a.flushMediaGroup("mg4")
	require.Len(t, col.snapshot(), 1)

	// The group is gone, so a late timer firing for the same key does
	// nothing.
	a.flushMediaGroup("mg4")
	assert.Len(t, col.snapshot(), 1)
}

func TestAggregatorLateArrivalExtendsDebounce(t *testing.T) {
	a, col := newTestAggregator(t)
	a.MediaGroupDebounce = 200 * time.Millisecond

	a.OnPhoto(100, 7, "mg5", PhotoRef{FileID: "f1", MessageID: 1}, "")
	time.Sleep(120 * time.Millisecond)
	a.OnPhoto(100, 7, "mg5", PhotoRef{FileID: "f2", MessageID: 2}, "")

	// Past the first photo's original deadline but inside the reset
	// window: nothing has flushed, both photos are still buffered.
	time.Sleep(90 * time.Millisecond)
	assert.Empty(t, col.snapshot())

	require.Eventually(t, func() bool { return len(col.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Len(t, col.snapshot()[0].Photos, 2)
}
