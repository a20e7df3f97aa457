package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Index is the subset of Client the indexer writes through.
type Index interface {
	IndexPost(ctx context.Context, doc PostDocument) error
	DeletePost(ctx context.Context, postID string) error
}

var _ Index = (*Client)(nil)

type jobKind int

const (
	jobIndex jobKind = iota
	jobDelete
)

type job struct {
	kind   jobKind
	postID string
}

// Indexer keeps the search index in step with post writes on a background
// goroutine. A nil *Indexer accepts and ignores every call, which is what the
// server runs with when Elasticsearch is not configured.
type Indexer struct {
	db      *gorm.DB
	index   Index
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	timeout time.Duration
}

// NewIndexer creates an indexer with a queue of the given size.
func NewIndexer(db *gorm.DB, index Index, queueSize int) *Indexer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Indexer{
		db:      db,
		index:   index,
		jobs:    make(chan job, queueSize),
		timeout: 10 * time.Second,
	}
}

// Start launches the worker.
func (ix *Indexer) Start() {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.running {
		return
	}
	ix.running = true

	ix.wg.Add(1)
	go ix.loop()
	logger.Log.Info("Search indexer started", zap.Int("queue_size", cap(ix.jobs)))
}

// Stop closes the queue and waits until every queued job has run.
func (ix *Indexer) Stop() {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	if !ix.running {
		ix.mu.Unlock()
		return
	}
	ix.running = false
	close(ix.jobs)
	ix.mu.Unlock()

	ix.wg.Wait()
	logger.Log.Info("Search indexer stopped")
}

// EnqueueIndex schedules a post to be (re)indexed from the database.
func (ix *Indexer) EnqueueIndex(postID string) {
	ix.enqueue(job{kind: jobIndex, postID: postID})
}

// EnqueueDelete schedules a post to be removed from the index.
func (ix *Indexer) EnqueueDelete(postID string) {
	ix.enqueue(job{kind: jobDelete, postID: postID})
}

func (ix *Indexer) enqueue(j job) {
	if ix == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.running {
		return
	}
	select {
	case ix.jobs <- j:
	default:
		// The reconciliation pass picks up whatever is dropped here.
		logger.Log.Warn("Search index queue full, dropping job", logger.WithPostID(j.postID))
	}
}

func (ix *Indexer) loop() {
	defer ix.wg.Done()
	for j := range ix.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), ix.timeout)
		if err := ix.run(ctx, j); err != nil {
			logger.WarnWithFields("Search index job failed", err, logger.WithPostID(j.postID))
		}
		cancel()
	}
}

func (ix *Indexer) run(ctx context.Context, j job) error {
	if j.kind == jobDelete {
		return ix.index.DeletePost(ctx, j.postID)
	}
	return ix.IndexNow(ctx, j.postID)
}

// IndexNow loads a post and writes it to the index synchronously. Drafts and
// posts that no longer exist are removed instead.
func (ix *Indexer) IndexNow(ctx context.Context, postID string) error {
	var post models.Post
	err := ix.db.WithContext(ctx).
		Preload("Category").
		Preload("User").
		Preload("Analytics").
		First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ix.index.DeletePost(ctx, postID)
	}
	if err != nil {
		return err
	}
	if post.Status != models.PostStatusPublished {
		return ix.index.DeletePost(ctx, postID)
	}
	return ix.index.IndexPost(ctx, PostToDocument(&post))
}
