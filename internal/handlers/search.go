package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"go.uber.org/zap"
)

// SearchPosts runs a full-text query over published posts. Elasticsearch
// answers when configured; any failure falls back to the database search.
// GET /api/v1/search/posts?q=&p=
func (h *Handlers) SearchPosts(c *gin.Context) {
	ctx := requestContext(c)
	query := strings.TrimSpace(c.Query("q"))
	page := util.ParsePage(c)
	if query == "" {
		util.RespondValidationError(c, "q", "A search query must be provided.")
		return
	}

	if h.search != nil {
		res, err := h.search.SearchPosts(ctx, query, page.Size, page.Offset())
		if err == nil {
			posts, err := h.postsByID(c, res.IDs)
			if err == nil {
				respondPage(c, dto.ToPostListItems(posts), res.Total, page)
				return
			}
			logger.WarnWithFields("Failed to load searched posts", err)
		} else {
			logger.WarnWithFields("Elasticsearch search failed, falling back to database", err, zap.String("query", query))
		}
	}

	posts, total, err := h.queryPosts(ctx, postFilters{Search: query}, page)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondPage(c, dto.ToPostListItems(posts), total, page)
}

// postsByID loads published posts and returns them in the order of ids.
func (h *Handlers) postsByID(c *gin.Context, ids []string) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	var posts []models.Post
	if err := h.db.WithContext(requestContext(c)).
		Scopes(models.Published).
		Preload("Category").Preload("Analytics").
		Where("posts.id IN ?", ids).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}
