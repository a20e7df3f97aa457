package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	apierrors "github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errAlreadyLiked = apierrors.ValidationError("slug", "You have already liked this post.")
	errNotLiked     = apierrors.ValidationError("slug", "You have not liked this post.")
)

// LikePost likes a post once per account
// POST /api/v1/post/like
func (h *Handlers) LikePost(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.SlugRequest
	_ = c.ShouldBindJSON(&req)
	post, ok := h.postForInteraction(c, req.Slug)
	if !ok {
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{PostID: post.ID, UserID: user.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyLiked
		}

		txs := h.analytics.WithTx(tx)
		if _, err := txs.RecordInteraction(ctx, analytics.Interaction{
			UserID:    &user.ID,
			PostID:    post.ID,
			Type:      models.InteractionLike,
			IPAddress: c.ClientIP(),
			Device:    analytics.DeviceFromUserAgent(c.Request.UserAgent()),
		}); err != nil {
			return err
		}
		return txs.AddLikes(ctx, post.ID, 1)
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.cache.Invalidate(ctx, cache.PostTag(post.ID))
	respondOK(c, fmt.Sprintf("You have liked the post: %s", post.Title))
}

// UnlikePost removes the caller's like
// DELETE /api/v1/post/like?slug=
func (h *Handlers) UnlikePost(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	post, ok := h.postForInteraction(c, c.Query("slug"))
	if !ok {
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", post.ID, user.ID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotLiked
		}
		return h.analytics.WithTx(tx).AddLikes(ctx, post.ID, -1)
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.cache.Invalidate(ctx, cache.PostTag(post.ID))
	respondOK(c, fmt.Sprintf("You have unliked the post: %s", post.Title))
}

type shareRequest struct {
	Slug     string `json:"slug"`
	Platform string `json:"platform"`
}

func validPlatforms() string {
	names := make([]string, 0, len(models.SharePlatforms))
	for _, p := range models.SharePlatforms {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// platformLabel capitalizes the first letter only: "linkedin" -> "Linkedin".
func platformLabel(p models.SharePlatform) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SharePost records a share, anonymous or not
// POST /api/v1/post/share?slug=&platform=
func (h *Handlers) SharePost(c *gin.Context) {
	ctx := requestContext(c)

	var req shareRequest
	_ = c.ShouldBindJSON(&req)
	if slug := c.Query("slug"); slug != "" {
		req.Slug = slug
	}
	if platform, ok := c.GetQuery("platform"); ok {
		req.Platform = platform
	}

	post, ok := h.postForInteraction(c, req.Slug)
	if !ok {
		return
	}
	platform, ok := models.ParseSharePlatform(req.Platform)
	if !ok {
		util.RespondValidationError(c, "platform", "Invalid platform. Valid options are: "+validPlatforms())
		return
	}

	userID := util.OptionalUserID(c)
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.PostShare{PostID: post.ID, UserID: userID, Platform: platform}).Error; err != nil {
			return err
		}
		txs := h.analytics.WithTx(tx)
		if _, err := txs.RecordInteraction(ctx, analytics.Interaction{
			UserID:    userID,
			PostID:    post.ID,
			Type:      models.InteractionShare,
			IPAddress: c.ClientIP(),
			Device:    analytics.DeviceFromUserAgent(c.Request.UserAgent()),
		}); err != nil {
			return err
		}
		return txs.AddShares(ctx, post.ID, 1)
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.cache.Invalidate(ctx, cache.PostTag(post.ID))
	respondOK(c, fmt.Sprintf("Post %s shared successfully on %s", post.Title, platformLabel(platform)))
}
