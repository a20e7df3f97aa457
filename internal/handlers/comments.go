package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"gorm.io/gorm"
)

// cachedCommentPage is what a comment listing stores in the cache.
type cachedCommentPage struct {
	Items []dto.CommentResponse `json:"items"`
	Total int64                 `json:"total"`
}

// replyCounts returns the number of active direct replies per comment id.
func (h *Handlers) replyCounts(ctx context.Context, comments []models.Comment) (map[string]int64, error) {
	counts := make(map[string]int64, len(comments))
	if len(comments) == 0 {
		return counts, nil
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}

	var rows []struct {
		ParentID string
		Count    int64
	}
	err := h.db.WithContext(ctx).Model(&models.Comment{}).
		Select("parent_id, COUNT(*) AS count").
		Where("parent_id IN ? AND is_active = ?", ids, true).
		Group("parent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ParentID] = r.Count
	}
	return counts, nil
}

// pageComments counts and loads one page of q with authors and post.
func (h *Handlers) pageComments(ctx context.Context, q *gorm.DB, page util.Page) (cachedCommentPage, error) {
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return cachedCommentPage{}, err
	}
	var comments []models.Comment
	if err := q.Preload("User").Preload("Post").
		Offset(page.Offset()).Limit(page.Size).
		Find(&comments).Error; err != nil {
		return cachedCommentPage{}, err
	}
	counts, err := h.replyCounts(ctx, comments)
	if err != nil {
		return cachedCommentPage{}, err
	}
	return cachedCommentPage{Items: dto.ToCommentResponses(comments, counts), Total: total}, nil
}

// ListPostComments lists the active top-level comments of a post, newest first
// GET /api/v1/post/comments?slug=&p=
func (h *Handlers) ListPostComments(c *gin.Context) {
	ctx := requestContext(c)
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		util.RespondNotFound(c, "A valid post slug must be provided.")
		return
	}
	page := util.ParsePage(c)

	key := cache.Key("post_comments", slug, strconv.Itoa(page.Number), strconv.Itoa(page.Size))
	var result cachedCommentPage
	if !h.cache.GetJSON(ctx, "post_comments", key, &result) {
		post, ok := h.postForInteraction(c, slug)
		if !ok {
			return
		}
		q := h.db.WithContext(ctx).Model(&models.Comment{}).
			Where("post_id = ? AND parent_id IS NULL AND is_active = ?", post.ID, true).
			Order("created_at DESC")
		var err error
		if result, err = h.pageComments(ctx, q, page); err != nil {
			util.RespondWithError(c, err)
			return
		}
		h.cache.SetJSON(ctx, key, result, cache.PostCommentsTag(post.ID))
	}

	respondPage(c, result.Items, result.Total, page)
}

// ListCommentReplies lists the active direct replies of a comment
// GET /api/v1/post/comment/replies?comment_id=&p=
func (h *Handlers) ListCommentReplies(c *gin.Context) {
	ctx := requestContext(c)
	commentID := strings.TrimSpace(c.Query("comment_id"))
	if commentID == "" {
		util.RespondNotFound(c, "A valid comment id must be provided.")
		return
	}
	page := util.ParsePage(c)

	key := cache.Key("comment_replies", commentID, strconv.Itoa(page.Number), strconv.Itoa(page.Size))
	var result cachedCommentPage
	if !h.cache.GetJSON(ctx, "comment_replies", key, &result) {
		if _, ok := h.findComment(c, commentID); !ok {
			return
		}
		q := h.db.WithContext(ctx).Model(&models.Comment{}).Scopes(models.ActiveReplies(commentID))
		var err error
		if result, err = h.pageComments(ctx, q, page); err != nil {
			util.RespondWithError(c, err)
			return
		}
		h.cache.SetJSON(ctx, key, result, cache.CommentRepliesTag(commentID))
	}

	respondPage(c, result.Items, result.Total, page)
}

func (h *Handlers) findComment(c *gin.Context, commentID string) (*models.Comment, bool) {
	var comment models.Comment
	err := h.db.WithContext(requestContext(c)).Preload("Post").First(&comment, "id = ?", commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, fmt.Sprintf("Comment with id: %s does not exist", commentID))
		return nil, false
	}
	if err != nil {
		util.RespondWithError(c, err)
		return nil, false
	}
	return &comment, true
}

// ownedComment loads a comment the caller wrote.
func (h *Handlers) ownedComment(c *gin.Context, user *models.User, commentID string) (*models.Comment, bool) {
	commentID = strings.TrimSpace(commentID)
	if commentID == "" {
		util.RespondNotFound(c, "A valid comment id must be provided.")
		return nil, false
	}
	comment, ok := h.findComment(c, commentID)
	if !ok {
		return nil, false
	}
	if comment.UserID != user.ID {
		util.RespondForbidden(c, "You do not have permission to modify this comment.")
		return nil, false
	}
	return comment, true
}

// commentContent sanitizes a comment body and rejects empty results.
func commentContent(c *gin.Context, raw string) (string, bool) {
	content := strings.TrimSpace(util.SanitizeHTML(raw))
	if content == "" {
		util.RespondValidationError(c, "content", "Comment content must not be empty.")
		return "", false
	}
	return content, true
}

// addComment stores a comment or reply, logs the comment interaction and
// bumps the post's comment counter in one transaction.
func (h *Handlers) addComment(c *gin.Context, comment *models.Comment) error {
	ctx := requestContext(c)
	ip := c.ClientIP()
	device := analytics.DeviceFromUserAgent(c.Request.UserAgent())

	if err := h.analytics.CheckAnomaly(ctx, &comment.UserID, comment.PostID, ip); err != nil {
		return err
	}
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		txs := h.analytics.WithTx(tx)
		if _, err := txs.RecordInteraction(ctx, analytics.Interaction{
			UserID:    &comment.UserID,
			PostID:    comment.PostID,
			CommentID: &comment.ID,
			Type:      models.InteractionComment,
			IPAddress: ip,
			Device:    device,
		}); err != nil {
			return err
		}
		return txs.AddComments(ctx, comment.PostID, 1)
	})
}

// CreateComment adds a top-level comment to a post
// POST /api/v1/post/comment
func (h *Handlers) CreateComment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	post, ok := h.postForInteraction(c, req.TargetSlug())
	if !ok {
		return
	}
	content, ok := commentContent(c, req.Content)
	if !ok {
		return
	}

	comment := &models.Comment{UserID: user.ID, PostID: post.ID, Content: content, IsActive: true}
	if err := h.addComment(c, comment); err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.cache.Invalidate(requestContext(c), cache.PostCommentsTag(post.ID), cache.PostTag(post.ID))
	logger.Log.Info("Comment created", logger.WithCommentID(comment.ID), logger.WithPostID(post.ID), logger.WithUserID(user.ID))

	respond(c, http.StatusCreated, fmt.Sprintf("Comment created for post %s", post.Title))
}

// UpdateComment edits the caller's comment. Counters are untouched.
// PUT /api/v1/post/comment
func (h *Handlers) UpdateComment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	comment, ok := h.ownedComment(c, user, req.CommentID)
	if !ok {
		return
	}
	content, ok := commentContent(c, req.Content)
	if !ok {
		return
	}

	if err := h.db.WithContext(requestContext(c)).Model(comment).Update("content", content).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.invalidateCommentListings(c, comment)
	respondOK(c, "Comment content updated successfully.")
}

// DeleteComment soft-deletes the caller's comment. Its replies keep their
// own state.
// DELETE /api/v1/post/comment?comment_id=
func (h *Handlers) DeleteComment(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	comment, ok := h.ownedComment(c, user, c.Query("comment_id"))
	if !ok {
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ? AND is_active = ?", comment.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return h.analytics.WithTx(tx).AddComments(ctx, comment.PostID, -1)
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.invalidateCommentListings(c, comment)
	h.cache.Invalidate(ctx, cache.PostTag(comment.PostID))
	respondOK(c, "Comment deleted successfully.")
}

// CreateCommentReply answers an existing comment
// POST /api/v1/post/comment/reply
func (h *Handlers) CreateCommentReply(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	parentID := strings.TrimSpace(req.CommentID)
	if parentID == "" {
		util.RespondNotFound(c, "A valid comment id must be provided.")
		return
	}
	var parent models.Comment
	err := h.db.WithContext(requestContext(c)).First(&parent, "id = ?", parentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, fmt.Sprintf("Comment with id %s does not exist.", parentID))
		return
	}
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	content, ok := commentContent(c, req.Content)
	if !ok {
		return
	}

	reply := &models.Comment{UserID: user.ID, PostID: parent.PostID, ParentID: &parent.ID, Content: content, IsActive: true}
	if err := h.addComment(c, reply); err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.cache.Invalidate(requestContext(c),
		cache.CommentRepliesTag(parent.ID),
		cache.PostCommentsTag(parent.PostID),
		cache.PostTag(parent.PostID),
	)
	respond(c, http.StatusCreated, "Comment reply created successfully")
}

// invalidateCommentListings evicts every listing the comment appears in.
func (h *Handlers) invalidateCommentListings(c *gin.Context, comment *models.Comment) {
	tags := []string{cache.PostCommentsTag(comment.PostID)}
	if comment.ParentID != nil {
		tags = append(tags, cache.CommentRepliesTag(*comment.ParentID))
	}
	h.cache.Invalidate(requestContext(c), tags...)
}
