package search

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reindexBatchSize = 100

// Reindex writes every published post to the index in batches and returns how
// many were written. Individual failures are logged and skipped.
func Reindex(ctx context.Context, db *gorm.DB, index Index) (int, error) {
	var posts []models.Post
	written := 0
	err := db.WithContext(ctx).
		Scopes(models.Published).
		Preload("Category").
		Preload("User").
		Preload("Analytics").
		FindInBatches(&posts, reindexBatchSize, func(tx *gorm.DB, batch int) error {
			for i := range posts {
				if err := index.IndexPost(ctx, PostToDocument(&posts[i])); err != nil {
					logger.WarnWithFields("Failed to reindex post", err, logger.WithPostID(posts[i].ID))
					continue
				}
				written++
			}
			return ctx.Err()
		}).Error
	return written, err
}

// ReconciliationService periodically reindexes posts updated since its last
// pass, which catches jobs the indexer dropped or failed.
type ReconciliationService struct {
	db        *gorm.DB
	index     Index
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
	since     time.Time
	now       func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(db *gorm.DB, index Index, interval time.Duration) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		index:    index,
		interval: interval,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the periodic reconciliation loop
func (rs *ReconciliationService) Start() {
	rs.mu.Lock()
	if rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = true
	rs.mu.Unlock()

	logger.Log.Info("Starting search reconciliation service",
		zap.Duration("interval", rs.interval),
	)

	rs.wg.Add(1)
	go rs.reconciliationLoop()
}

// Stop gracefully stops the reconciliation service
func (rs *ReconciliationService) Stop() {
	rs.mu.Lock()
	if !rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = false
	rs.mu.Unlock()

	close(rs.stopChan)
	rs.wg.Wait()
	logger.Log.Info("Search reconciliation service stopped")
}

func (rs *ReconciliationService) reconciliationLoop() {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			rs.Reconcile(ctx)
			cancel()
		}
	}
}

// Reconcile reindexes published posts updated since the previous pass.
// The first pass covers everything.
func (rs *ReconciliationService) Reconcile(ctx context.Context) int {
	start := rs.now()

	var posts []models.Post
	q := rs.db.WithContext(ctx).
		Scopes(models.Published).
		Preload("Category").
		Preload("User").
		Preload("Analytics")
	if !rs.since.IsZero() {
		q = q.Where("posts.updated_at >= ?", rs.since)
	}
	if err := q.Find(&posts).Error; err != nil {
		logger.WarnWithFields("Failed to query posts for reconciliation", err)
		return 0
	}

	resynced := 0
	for i := range posts {
		if err := rs.index.IndexPost(ctx, PostToDocument(&posts[i])); err != nil {
			logger.WarnWithFields("Failed to reconcile post", err, logger.WithPostID(posts[i].ID))
			continue
		}
		resynced++
	}
	rs.since = start

	logger.Log.Info("Search reconciliation completed",
		zap.Int("posts_resync", resynced),
		zap.Duration("duration", rs.now().Sub(start)),
	)
	return resynced
}
