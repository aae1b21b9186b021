package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gofrolist/calorie-track-ai-bot/internal/storage"
)

// PurgeWorker periodically deletes transient inline uploads past their
// retention window. Meal photos live under a different prefix and are
// never touched.
type PurgeWorker struct {
	Store    storage.Purger
	Interval time.Duration
	Logger   *logrus.Logger
}

func (w *PurgeWorker) Start(ctx context.Context) error {
	if w.Store == nil {
		return errors.New("PurgeWorker missing dependency: Store must be set")
	}
	if w.Interval <= 0 {
		w.Interval = time.Hour
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	go w.run(ctx)
	return nil
}

func (w *PurgeWorker) run(ctx context.Context) {
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.purge(ctx)
		}
	}
}

func (w *PurgeWorker) purge(ctx context.Context) {
	cutoff := time.Now().Add(-storage.InlineRetention)
	n, err := w.Store.PurgeBefore(ctx, storage.InlinePrefix, cutoff)
	if err != nil {
		w.Logger.WithError(err).Warn("inline purge failed")
		return
	}
	if n > 0 {
		w.Logger.WithField("deleted", n).Info("purged transient inline uploads")
	}
}
