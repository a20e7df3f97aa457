package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// postFilters is the query of a post listing.
type postFilters struct {
	Search     string
	Sorting    string
	Ordering   string
	Author     string
	Categories []string
}

func (f postFilters) cacheKey(page util.Page) string {
	return cache.Key("post_list", f.Search, f.Sorting, f.Ordering, f.Author,
		strings.Join(f.Categories, ","), strconv.Itoa(page.Number), strconv.Itoa(page.Size))
}

// cachedPostPage is what a post listing stores in the cache.
type cachedPostPage struct {
	Items []dto.PostListItem `json:"items"`
	Total int64              `json:"total"`
}

// ListPosts returns published posts matching the filters
// GET /api/v1/posts
func (h *Handlers) ListPosts(c *gin.Context) {
	ctx := requestContext(c)
	page := util.ParsePage(c)
	filters := postFilters{
		Search:     strings.TrimSpace(c.Query("search")),
		Sorting:    c.Query("sorting"),
		Ordering:   c.Query("ordering"),
		Author:     strings.TrimSpace(c.Query("author")),
		Categories: c.QueryArray("category"),
	}

	key := filters.cacheKey(page)
	var result cachedPostPage
	if !h.cache.GetJSON(ctx, "post_list", key, &result) {
		posts, total, err := h.queryPosts(ctx, filters, page)
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		result = cachedPostPage{Items: dto.ToPostListItems(posts), Total: total}
		h.cache.SetJSON(ctx, key, result, cache.TagPosts)
	}

	h.countPostImpressions(ctx, result.Items)
	respondPage(c, result.Items, result.Total, page)
}

// queryPosts runs a filtered listing over published posts.
func (h *Handlers) queryPosts(ctx context.Context, f postFilters, page util.Page) ([]models.Post, int64, error) {
	q := h.db.WithContext(ctx).Model(&models.Post{}).Scopes(models.Published)

	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("(LOWER(posts.title) LIKE ? OR LOWER(posts.description) LIKE ? OR LOWER(posts.content) LIKE ? OR LOWER(posts.keywords) LIKE ?)",
			like, like, like, like)
	}
	if f.Author != "" {
		q = q.Where("posts.user_id IN (?)", h.db.Model(&models.User{}).Select("id").Where("username = ?", f.Author))
	}
	if len(f.Categories) > 0 {
		ids, err := h.resolveCategoryFilters(ctx, f.Categories)
		if err != nil {
			return nil, 0, err
		}
		if len(ids) == 0 {
			return []models.Post{}, 0, nil
		}
		q = q.Where("posts.category_id IN ?", ids)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	list := q.Select("posts.*")
	switch f.Sorting {
	case "recently_updated":
		list = list.Order("posts.updated_at DESC")
	case "most_viewed":
		list = list.Joins("LEFT JOIN post_analytics ON post_analytics.post_id = posts.id").
			Order("post_analytics.views DESC")
	default:
		list = list.Order("posts.created_at DESC")
	}
	switch f.Ordering {
	case "az":
		list = list.Order("posts.title ASC")
	case "za":
		list = list.Order("posts.title DESC")
	}

	var posts []models.Post
	err := list.Preload("Category").Preload("Analytics").
		Offset(page.Offset()).Limit(page.Size).
		Find(&posts).Error
	return posts, total, err
}

// resolveCategoryFilters maps category filters, each a slug or a UUID, to
// category ids.
func (h *Handlers) resolveCategoryFilters(ctx context.Context, filters []string) ([]string, error) {
	var ids, slugs []string
	for _, f := range filters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := uuid.Parse(f); err == nil {
			ids = append(ids, f)
		} else {
			slugs = append(slugs, f)
		}
	}

	var resolved []string
	q := h.db.WithContext(ctx).Model(&models.Category{})
	switch {
	case len(ids) > 0 && len(slugs) > 0:
		q = q.Where("id IN ? OR slug IN ?", ids, slugs)
	case len(ids) > 0:
		q = q.Where("id IN ?", ids)
	case len(slugs) > 0:
		q = q.Where("slug IN ?", slugs)
	default:
		return nil, nil
	}
	err := q.Pluck("id", &resolved).Error
	return resolved, err
}

// countPostImpressions bumps the impression counter of every listed post.
// The flusher moves the counts into the analytics rows.
func (h *Handlers) countPostImpressions(ctx context.Context, items []dto.PostListItem) {
	store := h.cache.Store()
	var firstErr error
	failed := 0
	for _, item := range items {
		if _, err := store.IncrBy(ctx, cache.PostImpressionsKey(item.ID), 1); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
		}
	}
	if firstErr != nil {
		logger.WarnWithFields("Failed to count post impressions", firstErr, zap.Int("failed", failed), zap.Int("listed", len(items)))
	}
}

func respondPage(c *gin.Context, results interface{}, total int64, page util.Page) {
	respondOK(c, dto.NewPage(results, total, page.Number, page.Size))
}

// GetPost returns the detail of a published post and registers a view
// GET /api/v1/post?slug=
func (h *Handlers) GetPost(c *gin.Context) {
	ctx := requestContext(c)
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		util.RespondNotFound(c, "A valid slug must be provided.")
		return
	}

	key := cache.Key("post_detail", slug)
	var detail dto.PostDetail
	if !h.cache.GetJSON(ctx, "post_detail", key, &detail) {
		post, err := h.findPost(ctx, slug, false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "Post "+slug+" does not exist.")
			return
		}
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		detail = *dto.ToPostDetail(post, false)
		h.cache.SetJSON(ctx, key, detail, cache.PostTag(post.ID), cache.TagPosts)
	}

	userID := util.OptionalUserID(c)
	ip := c.ClientIP()
	device := analytics.DeviceFromUserAgent(c.Request.UserAgent())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if userID == nil {
			return nil
		}
		var likes int64
		if err := h.db.WithContext(gctx).Model(&models.PostLike{}).
			Where("post_id = ? AND user_id = ?", detail.ID, *userID).
			Count(&likes).Error; err != nil {
			return err
		}
		detail.HasLiked = likes > 0
		return nil
	})
	g.Go(func() error {
		// A failed view registration never fails the read.
		if _, err := h.analytics.RegisterPostView(gctx, detail.ID, userID, ip, device); err != nil {
			logger.WarnWithFields("Failed to register post view", err, logger.WithPostID(detail.ID), logger.WithIP(ip))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		util.RespondWithError(c, err)
		return
	}

	respondOK(c, detail)
}

// GetPostHeadings returns the headings of a post in order
// GET /api/v1/post/headings?slug=
func (h *Handlers) GetPostHeadings(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))

	var headings []models.Heading
	err := h.db.WithContext(requestContext(c)).
		Where("post_id IN (?)", h.db.Model(&models.Post{}).Select("id").Where("slug = ?", slug)).
		Order("sort_order ASC").
		Find(&headings).Error
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondOK(c, dto.ToHeadingResponses(headings))
}

// IncrementPostClick counts a click on a post card
// POST /api/v1/post/increment_click
func (h *Handlers) IncrementPostClick(c *gin.Context) {
	ctx := requestContext(c)
	var req dto.SlugRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Slug) == "" {
		util.RespondNotFound(c, "A valid post slug must be provided.")
		return
	}

	var post models.Post
	err := h.db.WithContext(ctx).Scopes(models.Published).Where("posts.slug = ?", req.Slug).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "The requested post does not exist.")
		return
	}
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	row, err := h.analytics.IncrementPostClicks(ctx, post.ID, 1)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	logger.Log.Debug("Post click", logger.WithPostID(post.ID), zap.Int64("clicks", row.Clicks))
	respondOK(c, dto.ClickResponse{Message: "Click incremented successfully", Clicks: row.Clicks})
}

// postAnalyticsResults is the analytics view of one post.
type postAnalyticsResults struct {
	Analytics    *dto.PostAnalyticsResponse `json:"analytics"`
	Interactions []analytics.Summary        `json:"interactions"`
}

// GetPostAnalytics returns the counters and interaction summary of a post to
// its author
// GET /api/v1/post/analytics?slug=
func (h *Handlers) GetPostAnalytics(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	post, ok := h.postForInteraction(c, c.Query("slug"))
	if !ok {
		return
	}
	if post.UserID != user.ID && !user.IsAdmin() {
		util.RespondForbidden(c, "You do not have permissions to edit this post")
		return
	}

	row, err := h.analytics.PostAnalytics(ctx, post.ID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	summary, err := h.analytics.InteractionSummary(ctx, post.ID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if summary == nil {
		summary = []analytics.Summary{}
	}
	respondOK(c, postAnalyticsResults{
		Analytics:    dto.ToPostAnalyticsResponse(post, row),
		Interactions: summary,
	})
}
