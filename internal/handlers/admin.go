package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/cache"
	apierrors "github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/seed"
	"github.com/zfogg/blog/backend/internal/util"
)

const maxGeneratedPosts = 1000

func seedError(err error) error {
	if errors.Is(err, seed.ErrNoCategories) || errors.Is(err, seed.ErrNoPosts) || errors.Is(err, seed.ErrNoEditor) {
		return apierrors.NotFound(err.Error())
	}
	return err
}

// GeneratePosts creates fake published posts by the editor account
// POST /api/v1/admin/generate_posts?count=
func (h *Handlers) GeneratePosts(c *gin.Context) {
	ctx := requestContext(c)
	count := util.ParseInt(c.Query("count"), seed.DefaultPostCount)
	if count < 1 || count > maxGeneratedPosts {
		util.RespondValidationError(c, "count", fmt.Sprintf("count must be between 1 and %d.", maxGeneratedPosts))
		return
	}

	created, err := h.seeder.GeneratePosts(ctx, count)
	if created > 0 {
		h.cache.Invalidate(ctx, cache.TagPosts, cache.TagCategories)
	}
	if err != nil {
		util.RespondWithError(c, seedError(err))
		return
	}

	respondOK(c, fmt.Sprintf("%d posts generated successfully.", created))
}

// GenerateAnalytics fills every post's analytics row with random counters
// POST /api/v1/admin/generate_analytics
func (h *Handlers) GenerateAnalytics(c *gin.Context) {
	ctx := requestContext(c)
	updated, err := h.seeder.GenerateAnalytics(ctx)
	if err != nil {
		util.RespondWithError(c, seedError(err))
		return
	}

	h.cache.Invalidate(ctx, cache.TagPosts)
	respondOK(c, fmt.Sprintf("%d analytics generated successfully.", updated))
}

// TopCTR reports the posts with the best click-through rate
// GET /api/v1/admin/ctr?min_impressions=&limit=
func (h *Handlers) TopCTR(c *gin.Context) {
	minImpressions := util.ParseInt(c.Query("min_impressions"), 100)
	limit := util.ParseInt(c.Query("limit"), 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	rows, err := analytics.TopPostsByCTR(requestContext(c), h.db, int64(minImpressions), limit)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if rows == nil {
		rows = []analytics.CTRMetric{}
	}
	respondOK(c, rows)
}
