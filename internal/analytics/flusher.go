package analytics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"go.uber.org/zap"
)

// Flusher moves impression counters accumulated in the cache store into the
// analytics rows on a cron schedule. Each flush goes through the atomic
// impression update, so CTR is recomputed every time.
type Flusher struct {
	store    cache.Store
	service  *Service
	schedule string
	cron     *cron.Cron
}

// NewFlusher creates a flusher. schedule is a robfig/cron expression such as
// "@every 1m".
func NewFlusher(store cache.Store, service *Service, schedule string) *Flusher {
	return &Flusher{
		store:    store,
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the job and starts the scheduler.
func (f *Flusher) Start() error {
	if _, err := f.cron.AddFunc(f.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := f.Flush(ctx); err != nil {
			logger.ErrorWithFields("Impression flush failed", err)
		}
	}); err != nil {
		return err
	}
	f.cron.Start()
	logger.Log.Info("🕒 Impression flusher started", zap.String("schedule", f.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running flush.
func (f *Flusher) Stop() {
	<-f.cron.Stop().Done()
	logger.Log.Info("🕒 Impression flusher stopped")
}

// FlushResult counts what one pass moved.
type FlushResult struct {
	Posts      int
	Categories int
	Total      int64
}

// Flush drains every pending post and category impression counter once.
func (f *Flusher) Flush(ctx context.Context) (FlushResult, error) {
	var result FlushResult

	posts, n, err := f.drain(ctx, cache.PostImpressionsPrefix, f.service.IncrementPostImpressions)
	result.Posts, result.Total = posts, n
	if err != nil {
		return result, err
	}
	metrics.RecordImpressionsFlushed("post", n)

	categories, n, err := f.drain(ctx, cache.CategoryImpressionsPrefix, f.service.IncrementCategoryImpressions)
	result.Categories = categories
	result.Total += n
	if err != nil {
		return result, err
	}
	metrics.RecordImpressionsFlushed("category", n)

	if result.Total > 0 {
		logger.Log.Info("Impressions flushed",
			zap.Int("posts", result.Posts),
			zap.Int("categories", result.Categories),
			zap.Int64("impressions", result.Total),
		)
	}
	return result, nil
}

func (f *Flusher) drain(ctx context.Context, prefix string, apply func(context.Context, string, int64) error) (int, int64, error) {
	keys, err := f.store.Keys(ctx, prefix+"*")
	if err != nil {
		return 0, 0, err
	}

	targets := 0
	var total int64
	for _, key := range keys {
		n, err := f.store.TakeInt(ctx, key)
		if err != nil {
			logger.WarnWithFields("Skipping unreadable impression counter", err, zap.String("key", key))
			continue
		}
		if n <= 0 {
			continue
		}
		id := strings.TrimPrefix(key, prefix)
		if err := apply(ctx, id, n); err != nil {
			if errors.Is(err, ErrUnknownTarget) {
				logger.Log.Debug("Dropping impressions of deleted target", zap.String("key", key))
				continue
			}
			// Put the impressions back so the next pass retries them.
			if _, rerr := f.store.IncrBy(ctx, key, n); rerr != nil {
				logger.ErrorWithFields("Lost impressions after failed flush", rerr, zap.String("key", key), zap.Int64("count", n))
			}
			return targets, total, err
		}
		targets++
		total += n
	}
	return targets, total, nil
}
