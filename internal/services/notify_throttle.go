package services

import (
	"context"
	"time"

	"github.com/gofrolist/calorie-track-ai-bot/internal/cache"
)

// NoticeTTL is how long one "bot lacks permission" notice suppresses
// repeats for the same (chat, user) pair.
const NoticeTTL = 24 * time.Hour

// NotifyThrottle rate-limits permission-failure DMs. Due fails open:
// with no usable identifiers, or a store error, a notice is allowed
// rather than silently suppressed.
type NotifyThrottle interface {
	Due(ctx context.Context, chatKey, userKey string) bool
	Mark(ctx context.Context, chatKey, userKey string) error
}

type permissionNotice struct {
	NotifiedAt time.Time `json:"notified_at"`
}

type notifyThrottle struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewNotifyThrottle(c cache.Cache) NotifyThrottle {
	return &notifyThrottle{cache: c, ttl: NoticeTTL}
}

func throttleKey(chatKey, userKey string) string {
	return "notify:perm:" + chatKey + ":" + userKey
}

func (t *notifyThrottle) Due(ctx context.Context, chatKey, userKey string) bool {
	if chatKey == "" && userKey == "" {
		return true
	}

	var rec permissionNotice
	hit, err := t.cache.GetJSON(ctx, throttleKey(chatKey, userKey), &rec)
	if err != nil {
		return true
	}
	return !hit
}

func (t *notifyThrottle) Mark(ctx context.Context, chatKey, userKey string) error {
	if chatKey == "" && userKey == "" {
		return nil
	}
	rec := permissionNotice{NotifiedAt: time.Now().UTC()}
	return t.cache.SetJSON(ctx, throttleKey(chatKey, userKey), rec, t.ttl)
}
