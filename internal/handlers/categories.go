package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"gorm.io/gorm"
)

type cachedCategoryPage struct {
	Items []dto.CategoryListItem `json:"items"`
	Total int64                  `json:"total"`
}

// ListCategories lists root categories, or the children of parent_slug
// GET /api/v1/categories?parent_slug=&search=&sorting=
func (h *Handlers) ListCategories(c *gin.Context) {
	ctx := requestContext(c)
	page := util.ParsePage(c)
	parentSlug := strings.TrimSpace(c.Query("parent_slug"))
	search := strings.TrimSpace(c.Query("search"))
	sorting := c.Query("sorting")
	ordering := c.Query("ordering")

	key := cache.Key("category_list", parentSlug, search, sorting, ordering,
		strconv.Itoa(page.Number), strconv.Itoa(page.Size))
	var result cachedCategoryPage
	if !h.cache.GetJSON(ctx, "category_list", key, &result) {
		q := h.db.WithContext(ctx).Model(&models.Category{})
		if parentSlug != "" {
			q = q.Where("categories.parent_id IN (?)",
				h.db.Model(&models.Category{}).Select("id").Where("slug = ?", parentSlug))
		} else if search == "" {
			q = q.Where("categories.parent_id IS NULL")
		}
		if search != "" {
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("(LOWER(categories.name) LIKE ? OR LOWER(categories.slug) LIKE ? OR LOWER(categories.title) LIKE ? OR LOWER(categories.description) LIKE ?)",
				like, like, like, like)
		}
		q = q.Session(&gorm.Session{})

		var total int64
		if err := q.Count(&total).Error; err != nil {
			util.RespondWithError(c, err)
			return
		}

		list := q.Select("categories.*")
		switch sorting {
		case "az":
			list = list.Order("categories.name ASC")
		case "za":
			list = list.Order("categories.name DESC")
		case "recently_updated":
			list = list.Order("categories.updated_at DESC")
		case "most_viewed":
			list = list.Joins("LEFT JOIN category_analytics ON category_analytics.category_id = categories.id").
				Order("category_analytics.views DESC")
		default:
			list = list.Order("categories.created_at DESC")
		}
		switch ordering {
		case "az":
			list = list.Order("categories.name ASC")
		case "za":
			list = list.Order("categories.name DESC")
		}

		var categories []models.Category
		if err := list.Offset(page.Offset()).Limit(page.Size).Find(&categories).Error; err != nil {
			util.RespondWithError(c, err)
			return
		}
		result = cachedCategoryPage{Items: dto.ToCategoryListItems(categories), Total: total}
		h.cache.SetJSON(ctx, key, result, cache.TagCategories)
	}

	store := h.cache.Store()
	for _, item := range result.Items {
		if _, err := store.IncrBy(ctx, cache.CategoryImpressionsKey(item.ID), 1); err != nil {
			logger.WarnWithFields("Failed to count category impression", err, logger.WithCategoryID(item.ID))
			break
		}
	}
	respondPage(c, result.Items, result.Total, page)
}

// categoryFromRequest resolves a category slug, answering the request itself
// when it is missing or unknown.
func (h *Handlers) categoryFromRequest(c *gin.Context, slug string) (*models.Category, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		util.RespondNotFound(c, "Missing slug parameter")
		return nil, false
	}
	category, err := h.findCategory(requestContext(c), slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "The requested category does not exist.")
		return nil, false
	}
	if err != nil {
		util.RespondWithError(c, err)
		return nil, false
	}
	return category, true
}

// GetCategory returns a category with its analytics and registers a view
// GET /api/v1/category?slug=
func (h *Handlers) GetCategory(c *gin.Context) {
	ctx := requestContext(c)
	category, ok := h.categoryFromRequest(c, c.Query("slug"))
	if !ok {
		return
	}

	ip := c.ClientIP()
	if _, err := h.analytics.RegisterCategoryView(ctx, category.ID, ip); err != nil {
		logger.WarnWithFields("Failed to register category view", err, logger.WithCategoryID(category.ID), logger.WithIP(ip))
	}

	row, err := h.analytics.CategoryAnalytics(ctx, category.ID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondOK(c, dto.CategoryDetail{
		CategoryResponse: *dto.ToCategoryResponse(category),
		Analytics:        dto.ToCategoryAnalyticsResponse(category, row),
	})
}

// descendantIDs returns the id of root and of every category below it.
func (h *Handlers) descendantIDs(ctx context.Context, rootID string) ([]string, error) {
	ids := []string{rootID}
	seen := map[string]bool{rootID: true}
	frontier := []string{rootID}
	for len(frontier) > 0 {
		var children []string
		if err := h.db.WithContext(ctx).Model(&models.Category{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			frontier = append(frontier, id)
		}
	}
	return ids, nil
}

// ListCategoryPosts lists the published posts of a category and its
// subcategories, newest first
// GET /api/v1/category/posts?slug=&p=
func (h *Handlers) ListCategoryPosts(c *gin.Context) {
	ctx := requestContext(c)
	page := util.ParsePage(c)
	category, ok := h.categoryFromRequest(c, c.Query("slug"))
	if !ok {
		return
	}

	key := cache.Key("category_posts", category.Slug, strconv.Itoa(page.Number), strconv.Itoa(page.Size))
	var result cachedPostPage
	if !h.cache.GetJSON(ctx, "category_posts", key, &result) {
		ids, err := h.descendantIDs(ctx, category.ID)
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		q := h.db.WithContext(ctx).Model(&models.Post{}).
			Scopes(models.Published).
			Where("posts.category_id IN ?", ids).
			Session(&gorm.Session{})

		var total int64
		if err := q.Count(&total).Error; err != nil {
			util.RespondWithError(c, err)
			return
		}
		var posts []models.Post
		if err := q.Preload("Category").Preload("Analytics").
			Order("posts.created_at DESC").
			Offset(page.Offset()).Limit(page.Size).
			Find(&posts).Error; err != nil {
			util.RespondWithError(c, err)
			return
		}
		result = cachedPostPage{Items: dto.ToPostListItems(posts), Total: total}
		h.cache.SetJSON(ctx, key, result, cache.CategoryTag(category.ID), cache.TagPosts)
	}

	h.countPostImpressions(ctx, result.Items)
	respondPage(c, result.Items, result.Total, page)
}

// IncrementCategoryClick counts a click on a category card
// POST /api/v1/category/increment_click
func (h *Handlers) IncrementCategoryClick(c *gin.Context) {
	var req dto.SlugRequest
	_ = c.ShouldBindJSON(&req)
	category, ok := h.categoryFromRequest(c, req.Slug)
	if !ok {
		return
	}

	row, err := h.analytics.IncrementCategoryClicks(requestContext(c), category.ID, 1)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondOK(c, dto.ClickResponse{Message: "Click incremented successfully", Clicks: row.Clicks})
}
