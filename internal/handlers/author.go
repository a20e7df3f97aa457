package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	apierrors "github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
	"gorm.io/gorm"
)

// parsePostStatus accepts draft and published; empty means keep.
func parsePostStatus(s string) (models.PostStatus, error) {
	switch models.PostStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case models.PostStatusDraft:
		return models.PostStatusDraft, nil
	case models.PostStatusPublished:
		return models.PostStatusPublished, nil
	}
	return "", apierrors.ValidationError("status", "Invalid status. Valid options are: draft, published")
}

// buildHeadings converts request headings, deriving slugs and orders that
// were left out.
func buildHeadings(postID string, in []dto.HeadingInput) ([]models.Heading, error) {
	headings := make([]models.Heading, 0, len(in))
	for i, hd := range in {
		title := util.SanitizeText(hd.Title)
		if title == "" {
			continue
		}
		if hd.Level < 1 || hd.Level > 6 {
			return nil, apierrors.ValidationError("headings", "Heading level must be between 1 and 6.")
		}
		slug := util.Slugify(hd.Slug)
		if slug == "" {
			slug = util.Slugify(title)
		}
		order := hd.Order
		if order == 0 {
			order = i + 1
		}
		headings = append(headings, models.Heading{PostID: postID, Title: title, Slug: slug, Level: hd.Level, Order: order})
	}
	return headings, nil
}

func missingPostFields(in dto.PostInput) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"title", in.Title},
		{"content", in.Content},
		{"slug", in.Slug},
		{"category", in.Category},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ownedPost loads the post an author mutation targets. Only the author or an
// admin may change a post.
func (h *Handlers) ownedPost(c *gin.Context, user *models.User, slug string) (*models.Post, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		util.RespondNotFound(c, "Post slug must be provided.")
		return nil, false
	}
	post, err := h.findPost(requestContext(c), slug, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, fmt.Sprintf("Post %s does not exist.", slug))
		return nil, false
	}
	if err != nil {
		util.RespondWithError(c, err)
		return nil, false
	}
	if post.UserID != user.ID && !user.IsAdmin() {
		util.RespondForbidden(c, "You do not have permissions to edit this post")
		return nil, false
	}
	return post, true
}

func (h *Handlers) invalidatePost(c *gin.Context, post *models.Post, categoryIDs ...string) {
	tags := []string{cache.TagPosts, cache.PostTag(post.ID)}
	for _, id := range categoryIDs {
		tags = append(tags, cache.CategoryTag(id))
	}
	h.cache.Invalidate(requestContext(c), tags...)
}

// ListAuthorPosts lists the caller's own posts, drafts included
// GET /api/v1/post/author
func (h *Handlers) ListAuthorPosts(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	page := util.ParsePage(c)
	q := h.db.WithContext(requestContext(c)).Model(&models.Post{}).Where("user_id = ?", user.ID)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}
	var posts []models.Post
	if err := q.Preload("Category").Preload("Analytics").
		Order("status ASC").Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&posts).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondPage(c, dto.ToPostListItems(posts), total, page)
}

// CreatePost creates a post authored by the caller
// POST /api/v1/post/author
func (h *Handlers) CreatePost(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var in dto.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if missing := missingPostFields(in); len(missing) > 0 {
		util.RespondValidationError(c, missing[0], "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	categorySlug := util.Slugify(in.Category)
	category, err := h.findCategory(ctx, categorySlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondValidationError(c, "category", fmt.Sprintf("Category '%s' does not exist.", categorySlug))
		return
	}
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	status, err := parsePostStatus(in.Status)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	post := &models.Post{
		UserID:      user.ID,
		CategoryID:  category.ID,
		Title:       util.SanitizeText(in.Title),
		Description: util.SanitizeText(in.Description),
		Content:     util.SanitizeHTML(in.Content),
		Thumbnail:   strings.TrimSpace(in.Thumbnail),
		Keywords:    util.SanitizeText(in.Keywords),
		Slug:        util.Slugify(in.Slug),
		Status:      status,
	}

	var taken int64
	if err := h.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", post.Slug).Count(&taken).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}
	if taken > 0 {
		util.RespondWithAPIError(c, apierrors.Conflict(fmt.Sprintf("A post with slug '%s' already exists.", post.Slug)))
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if err := h.analytics.WithTx(tx).CreatePostAnalytics(ctx, post.ID); err != nil {
			return err
		}

		var headings []models.Heading
		if in.Headings != nil {
			var err error
			if headings, err = buildHeadings(post.ID, *in.Headings); err != nil {
				return err
			}
		} else {
			headings = util.ExtractHeadings(post.Content)
			for i := range headings {
				headings[i].PostID = post.ID
			}
		}
		if len(headings) > 0 {
			return tx.Create(&headings).Error
		}
		return nil
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.invalidatePost(c, post, category.ID)
	h.indexer.EnqueueIndex(post.ID)
	logger.Log.Info("Post created", logger.WithPostID(post.ID), logger.WithUserID(user.ID), logger.WithSlug(post.Slug))

	respond(c, http.StatusCreated, fmt.Sprintf("Post '%s' created successfully. It will be shown in a few minutes.", post.Title))
}

// UpdatePost changes the non-empty fields of a post
// PUT /api/v1/post/author
func (h *Handlers) UpdatePost(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var in dto.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	post, ok := h.ownedPost(c, user, in.PostSlug)
	if !ok {
		return
	}
	oldCategoryID := post.CategoryID

	fields := map[string]interface{}{}
	if title := util.SanitizeText(in.Title); title != "" {
		fields["title"] = title
		post.Title = title
	}
	if description := util.SanitizeText(in.Description); description != "" {
		fields["description"] = description
	}
	if content := util.SanitizeHTML(in.Content); strings.TrimSpace(content) != "" {
		fields["content"] = content
	}
	if thumbnail := strings.TrimSpace(in.Thumbnail); thumbnail != "" {
		fields["thumbnail"] = thumbnail
	}
	if keywords := util.SanitizeText(in.Keywords); keywords != "" {
		fields["keywords"] = keywords
	}
	if slug := util.Slugify(in.Slug); slug != "" && slug != post.Slug {
		var taken int64
		if err := h.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug).Count(&taken).Error; err != nil {
			util.RespondWithError(c, err)
			return
		}
		if taken > 0 {
			util.RespondWithAPIError(c, apierrors.Conflict(fmt.Sprintf("A post with slug '%s' already exists.", slug)))
			return
		}
		fields["slug"] = slug
	}
	if in.Category != "" {
		categorySlug := util.Slugify(in.Category)
		category, err := h.findCategory(ctx, categorySlug)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondValidationError(c, "category", fmt.Sprintf("Category '%s' does not exist.", categorySlug))
			return
		}
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		fields["category_id"] = category.ID
		post.CategoryID = category.ID
	}
	status, err := parsePostStatus(in.Status)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if status != "" {
		fields["status"] = status
	}

	var headings []models.Heading
	replaceHeadings := in.Headings != nil && len(*in.Headings) > 0
	if replaceHeadings {
		if headings, err = buildHeadings(post.ID, *in.Headings); err != nil {
			util.RespondWithError(c, err)
			return
		}
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		if !replaceHeadings {
			return nil
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Heading{}).Error; err != nil {
			return err
		}
		if len(headings) > 0 {
			return tx.Create(&headings).Error
		}
		return nil
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.invalidatePost(c, post, oldCategoryID, post.CategoryID)
	h.indexer.EnqueueIndex(post.ID)

	respondOK(c, fmt.Sprintf("Post %s successfully updated. Changes will be shown in a few minutes.", post.Title))
}

// DeletePost removes a post with everything hanging off it
// DELETE /api/v1/post/author?slug=
func (h *Handlers) DeletePost(c *gin.Context) {
	ctx := requestContext(c)
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	post, ok := h.ownedPost(c, user, c.Query("slug"))
	if !ok {
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.PostInteraction{},
			&models.PostView{},
			&models.PostShare{},
			&models.PostLike{},
			&models.Heading{},
			&models.PostAnalytics{},
		} {
			if err := tx.Where("post_id = ?", post.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		// Replies first so no row is left pointing at a deleted parent.
		if err := tx.Where("post_id = ? AND parent_id IS NOT NULL", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, "id = ?", post.ID).Error
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	h.invalidatePost(c, post, post.CategoryID)
	h.cache.Invalidate(ctx, cache.PostCommentsTag(post.ID))
	h.indexer.EnqueueDelete(post.ID)
	logger.Log.Info("Post deleted", logger.WithPostID(post.ID), logger.WithUserID(user.ID))

	respondOK(c, fmt.Sprintf("Post %s successfully deleted.", post.Title))
}
