package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Debounce tuning. The time-window debounce is longer than the
// media-group one because ungrouped uploads see more delivery jitter;
// the stale gap bounds how long an idle window group can linger before
// a new arrival forces it out.
const (
	DefaultMediaGroupDebounce = 1500 * time.Millisecond
	DefaultWindowDebounce     = 2 * time.Second
	DefaultStaleGap           = 3 * time.Second
	DefaultMaxPhotos          = 5
	DefaultFlushTimeout       = 60 * time.Second
)

// PhotoRef is one inbound photo: the highest-resolution file id plus
// the message that carried it.
type PhotoRef struct {
	FileID    string
	MessageID int
}

// Batch is a flushed photo group handed to the dispatch callback.
type Batch struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Photos       []PhotoRef
	Caption      string
}

type DispatchFunc func(ctx context.Context, b Batch)

type photoGroup struct {
	chatID  int64
	userID  int64
	photos  []PhotoRef
	caption string
	warned  bool
	lastAt  time.Time
	flush   *time.Timer
}

// Aggregator buffers rapid-fire photo messages into one batch per
// meal. Messages with a media-group id batch under that id; ungrouped
// messages batch per user inside a rolling time window. All maps are
// mutex-guarded; flush timers race against late arrivals and the guard
// set makes sure exactly one flush wins per group.
type Aggregator struct {
	MediaGroupDebounce time.Duration
	WindowDebounce     time.Duration
	StaleGap           time.Duration
	MaxPhotos          int
	FlushTimeout       time.Duration

	mu          sync.Mutex
	mediaGroups map[string]*photoGroup
	userGroups  map[int64]*photoGroup
	guard       map[string]struct{}

	ctx      context.Context
	dispatch DispatchFunc
	log      *logrus.Logger
}

func NewAggregator(ctx context.Context, dispatch DispatchFunc, log *logrus.Logger) *Aggregator {
	if log == nil {
		log = logrus.New()
	}
	return &Aggregator{
		MediaGroupDebounce: DefaultMediaGroupDebounce,
		WindowDebounce:     DefaultWindowDebounce,
		StaleGap:           DefaultStaleGap,
		MaxPhotos:          DefaultMaxPhotos,
		FlushTimeout:       DefaultFlushTimeout,

		mediaGroups: make(map[string]*photoGroup),
		userGroups:  make(map[int64]*photoGroup),
		guard:       make(map[string]struct{}),

		ctx:      ctx,
		dispatch: dispatch,
		log:      log,
	}
}

// OnPhoto routes one photo into its group and returns true when the
// caller must send the photo-limit warning (exactly once per group, on
// the transition past the cap).
func (a *Aggregator) OnPhoto(chatID, userID int64, mediaGroupID string, photo PhotoRef, caption string) bool {
	if mediaGroupID != "" {
		return a.onMediaGroupPhoto(chatID, userID, mediaGroupID, photo, caption)
	}
	return a.onWindowPhoto(chatID, userID, photo, caption)
}

func (a *Aggregator) onMediaGroupPhoto(chatID, userID int64, mediaGroupID string, photo PhotoRef, caption string) bool {
	a.mu.Lock()

	g, ok := a.mediaGroups[mediaGroupID]
	if !ok {
		g = &photoGroup{chatID: chatID, userID: userID}
		a.mediaGroups[mediaGroupID] = g
	}

	if warn, rejected := a.appendLocked(g, photo, caption); rejected {
		// Oversized group: keep the first MaxPhotos, leave the
		// already-scheduled flush armed.
		a.mu.Unlock()
		return warn
	}

	if g.flush != nil {
		g.flush.Stop()
	}
	key := mediaGroupID
	g.flush = time.AfterFunc(a.MediaGroupDebounce, func() { a.flushMediaGroup(key) })

	a.mu.Unlock()
	return false
}

func (a *Aggregator) onWindowPhoto(chatID, userID int64, photo PhotoRef, caption string) bool {
	a.mu.Lock()

	// A new arrival after the stale gap forces the old group out
	// first, synchronously, so its batch never absorbs this photo.
	if g, ok := a.userGroups[userID]; ok && time.Since(g.lastAt) > a.StaleGap {
		if g.flush != nil {
			g.flush.Stop()
		}
		a.mu.Unlock()
		a.flushUserGroup(userID)
		a.mu.Lock()
	}

	g, ok := a.userGroups[userID]
	if !ok {
		g = &photoGroup{chatID: chatID, userID: userID}
		a.userGroups[userID] = g
	}

	if warn, rejected := a.appendLocked(g, photo, caption); rejected {
		a.mu.Unlock()
		return warn
	}

	if g.flush != nil {
		g.flush.Stop()
	}
	g.flush = time.AfterFunc(a.WindowDebounce, func() { a.flushUserGroup(userID) })

	a.mu.Unlock()
	return false
}

// appendLocked adds the photo unless the group is already at the cap.
// It returns (warn, rejected): warn is true only on the first photo
// past the cap.
func (a *Aggregator) appendLocked(g *photoGroup, photo PhotoRef, caption string) (bool, bool) {
	if len(g.photos) >= a.MaxPhotos {
		warn := !g.warned
		g.warned = true
		return warn, true
	}

	g.photos = append(g.photos, photo)
	g.lastAt = time.Now()
	if caption != "" && g.caption == "" {
		g.caption = caption
	}
	return false, false
}

func (a *Aggregator) flushMediaGroup(mediaGroupID string) {
	a.mu.Lock()
	g, ok := a.mediaGroups[mediaGroupID]
	if !ok {
		a.mu.Unlock()
		return
	}
	if _, busy := a.guard[mediaGroupID]; busy {
		a.mu.Unlock()
		return
	}
	a.guard[mediaGroupID] = struct{}{}
	delete(a.mediaGroups, mediaGroupID)
	a.mu.Unlock()

	a.dispatchGroup(mediaGroupID, mediaGroupID, g)
}

func (a *Aggregator) flushUserGroup(userID int64) {
	// Distinct guard namespace so a synthesized key can never collide
	// with a raw media-group id.
	key := "user_" + strconv.FormatInt(userID, 10)

	a.mu.Lock()
	g, ok := a.userGroups[userID]
	if !ok {
		a.mu.Unlock()
		return
	}
	if _, busy := a.guard[key]; busy {
		a.mu.Unlock()
		return
	}
	a.guard[key] = struct{}{}
	delete(a.userGroups, userID)
	a.mu.Unlock()

	a.dispatchGroup(key, "", g)
}

func (a *Aggregator) dispatchGroup(guardKey, mediaGroupID string, g *photoGroup) {
	defer func() {
		a.mu.Lock()
		delete(a.guard, guardKey)
		a.mu.Unlock()
	}()

	a.log.WithFields(logrus.Fields{
		"chat_id":        g.chatID,
		"user_id":        g.userID,
		"media_group_id": mediaGroupID,
		"photos":         len(g.photos),
	}).Debug("flushing photo group")

	ctx, cancel := context.WithTimeout(a.ctx, a.FlushTimeout)
	defer cancel()

	a.dispatch(ctx, Batch{
		ChatID:       g.chatID,
		UserID:       g.userID,
		MediaGroupID: mediaGroupID,
		Photos:       g.photos,
		Caption:      g.caption,
	})
}
