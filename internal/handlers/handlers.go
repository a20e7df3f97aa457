package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/otp"
	"github.com/zfogg/blog/backend/internal/search"
	"github.com/zfogg/blog/backend/internal/seed"
	"github.com/zfogg/blog/backend/internal/util"
	"gorm.io/gorm"
)

// PostSearcher is the full-text backend of the search endpoint.
type PostSearcher interface {
	SearchPosts(ctx context.Context, query string, limit, offset int) (*search.SearchPostsResult, error)
}

var _ PostSearcher = (*search.Client)(nil)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db        *gorm.DB
	cache     *cache.Manager
	analytics *analytics.Service
	auth      auth.AuthServiceInterface
	otp       *otp.Service
	seeder    *seed.Seeder
	search    PostSearcher
	indexer   *search.Indexer
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, cacheManager *cache.Manager, authService auth.AuthServiceInterface, otpService *otp.Service) *Handlers {
	return &Handlers{
		db:        db,
		cache:     cacheManager,
		analytics: analytics.NewService(db),
		auth:      authService,
		otp:       otpService,
		seeder:    seed.NewSeeder(db),
	}
}

// SetSearch sets the Elasticsearch client and the indexer feeding it. Either
// may be nil; search then falls back to the database.
func (h *Handlers) SetSearch(searcher PostSearcher, indexer *search.Indexer) {
	h.search = searcher
	h.indexer = indexer
}

// SetSeeder replaces the fake data generator.
func (h *Handlers) SetSeeder(seeder *seed.Seeder) {
	h.seeder = seeder
}

// Analytics exposes the analytics service shared with background jobs.
func (h *Handlers) Analytics() *analytics.Service {
	return h.analytics
}

func respond(c *gin.Context, status int, results interface{}) {
	c.JSON(status, dto.Response{Success: status < http.StatusBadRequest, Status: status, Results: results})
}

func respondOK(c *gin.Context, results interface{}) {
	respond(c, http.StatusOK, results)
}

// requestContext carries the gin request context into services.
func requestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}

// findPost loads a post by slug with everything the detail view needs.
// Only published posts are visible unless includeDrafts is set.
func (h *Handlers) findPost(ctx context.Context, slug string, includeDrafts bool) (*models.Post, error) {
	var post models.Post
	q := h.db.WithContext(ctx).
		Preload("User").
		Preload("Category").
		Preload("Analytics").
		Preload("Headings", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") })
	if !includeDrafts {
		q = q.Scopes(models.Published)
	}
	if err := q.Where("posts.slug = ?", slug).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// postForInteraction resolves the post an engagement endpoint targets,
// answering the request itself when the slug is missing or unknown.
func (h *Handlers) postForInteraction(c *gin.Context, slug string) (*models.Post, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		util.RespondNotFound(c, "A valid post slug must be provided.")
		return nil, false
	}
	var post models.Post
	err := h.db.WithContext(requestContext(c)).Where("slug = ?", slug).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "Post: "+slug+" does not exist")
		return nil, false
	}
	if err != nil {
		util.RespondWithError(c, err)
		return nil, false
	}
	return &post, true
}

func (h *Handlers) findCategory(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := h.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}
