package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
)

func (suite *HandlersTestSuite) TestLikePostTwiceIsRejected() {
	w := suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{"slug": "hello-world"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("You have liked the post: Title hello-world", suite.message(w))

	w = suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{"slug": "hello-world"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("You have already liked this post.", suite.apiError(w).Message)

	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Likes)

	w = suite.request(http.MethodGet, "/api/v1/post?slug=hello-world", suite.aliceToken, nil)
	var detail dto.PostDetail
	suite.results(w, &detail)
	suite.True(detail.HasLiked)
	suite.Equal(int64(1), detail.LikesCount)
}

func (suite *HandlersTestSuite) TestUnlikePost() {
	suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{"slug": "hello-world"})

	w := suite.request(http.MethodDelete, "/api/v1/post/like?slug=hello-world", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("You have unliked the post: Title hello-world", suite.message(w))
	suite.Equal(int64(0), suite.postAnalytics(suite.post.ID).Likes)

	w = suite.request(http.MethodDelete, "/api/v1/post/like?slug=hello-world", suite.aliceToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal(int64(0), suite.postAnalytics(suite.post.ID).Likes)
}

func (suite *HandlersTestSuite) TestLikeErrors() {
	w := suite.request(http.MethodPost, "/api/v1/post/like", "", gin.H{"slug": "hello-world"})
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{"slug": "nope"})
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Post: nope does not exist", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{})
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("A valid post slug must be provided.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestShareDefaultsToOther() {
	w := suite.request(http.MethodPost, "/api/v1/post/share?slug=hello-world", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("Post Title hello-world shared successfully on Other", suite.message(w))

	var share models.PostShare
	suite.Require().NoError(suite.db.Where("post_id = ?", suite.post.ID).First(&share).Error)
	suite.Equal(models.PlatformOther, share.Platform)
	suite.Nil(share.UserID)
	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Shares)
}

func (suite *HandlersTestSuite) TestShareWithPlatformBody() {
	w := suite.request(http.MethodPost, "/api/v1/post/share", suite.aliceToken, gin.H{"slug": "hello-world", "platform": "LinkedIn"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("Post Title hello-world shared successfully on Linkedin", suite.message(w))

	var share models.PostShare
	suite.Require().NoError(suite.db.Where("post_id = ?", suite.post.ID).First(&share).Error)
	suite.Equal(models.PlatformLinkedIn, share.Platform)
	suite.Require().NotNil(share.UserID)
	suite.Equal(suite.alice.ID, *share.UserID)
}

func (suite *HandlersTestSuite) TestShareUnknownPlatform() {
	w := suite.request(http.MethodPost, "/api/v1/post/share?slug=hello-world&platform=instagram", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Invalid platform. Valid options are: facebook, twitter, linkedin, whatsapp, other", suite.apiError(w).Message)

	var shares int64
	suite.db.Model(&models.PostShare{}).Count(&shares)
	suite.Zero(shares)
	suite.Equal(int64(0), suite.postAnalytics(suite.post.ID).Shares)
}

func (suite *HandlersTestSuite) TestShareRejectsAnomalousRate() {
	now := time.Now().UTC()
	for i := 0; i < 51; i++ {
		suite.Require().NoError(suite.db.Create(&models.PostInteraction{
			PostID:              suite.post.ID,
			InteractionType:     models.InteractionShare,
			InteractionCategory: models.InteractionActive,
			Weight:              1,
			Timestamp:           now,
			IPAddress:           "192.0.2.1",
		}).Error)
	}

	w := suite.request(http.MethodPost, "/api/v1/post/share?slug=hello-world", "", nil)
	suite.Equal(http.StatusTooManyRequests, w.Code)
	suite.Equal("Anomalous behavior detected!", suite.apiError(w).Message)

	var shares int64
	suite.db.Model(&models.PostShare{}).Count(&shares)
	suite.Zero(shares)
}

// createComment posts a top-level comment as token and returns its id.
func (suite *HandlersTestSuite) createComment(token, content string) string {
	w := suite.request(http.MethodPost, "/api/v1/post/comment", token, gin.H{"post_slug": "hello-world", "content": content})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var comment models.Comment
	suite.Require().NoError(suite.db.Where("post_id = ? AND content = ?", suite.post.ID, content).First(&comment).Error)
	return comment.ID
}

func (suite *HandlersTestSuite) TestCommentLifecycle() {
	w := suite.request(http.MethodPost, "/api/v1/post/comment", suite.aliceToken, gin.H{"post_slug": "hello-world", "content": "Nice post"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	suite.Equal("Comment created for post Title hello-world", suite.message(w))
	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Comments)

	var comment models.Comment
	suite.Require().NoError(suite.db.Where("post_id = ?", suite.post.ID).First(&comment).Error)

	var interactions int64
	suite.db.Model(&models.PostInteraction{}).
		Where("comment_id = ? AND interaction_type = ?", comment.ID, models.InteractionComment).
		Count(&interactions)
	suite.Equal(int64(1), interactions)

	w = suite.request(http.MethodPost, "/api/v1/post/comment/reply", suite.editorToken, gin.H{"comment_id": comment.ID, "content": "Thanks"})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	suite.Equal("Comment reply created successfully", suite.message(w))
	suite.Equal(int64(2), suite.postAnalytics(suite.post.ID).Comments)

	w = suite.request(http.MethodGet, "/api/v1/post/comments?slug=hello-world", "", nil)
	var comments []dto.CommentResponse
	p := suite.page(w, &comments)
	suite.Equal(int64(1), p.Count)
	suite.Require().Len(comments, 1)
	suite.Equal("alice", comments[0].User)
	suite.Equal("Title hello-world", comments[0].PostTitle)
	suite.Equal(int64(1), comments[0].RepliesCount)

	w = suite.request(http.MethodGet, "/api/v1/post/comment/replies?comment_id="+comment.ID, "", nil)
	var replies []dto.CommentResponse
	suite.page(w, &replies)
	suite.Require().Len(replies, 1)
	suite.Equal("editor", replies[0].User)
	suite.Require().NotNil(replies[0].Parent)
	suite.Equal(comment.ID, *replies[0].Parent)

	w = suite.request(http.MethodDelete, "/api/v1/post/comment?comment_id="+comment.ID, suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Comments)

	w = suite.request(http.MethodDelete, "/api/v1/post/comment?comment_id="+comment.ID, suite.aliceToken, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Comments)

	w = suite.request(http.MethodGet, "/api/v1/post/comments?slug=hello-world", "", nil)
	p = suite.page(w, &comments)
	suite.Equal(int64(0), p.Count)

	// Replies survive their parent's soft delete.
	w = suite.request(http.MethodGet, "/api/v1/post/comment/replies?comment_id="+comment.ID, "", nil)
	suite.page(w, &replies)
	suite.Require().Len(replies, 1)

	repliesKey := cache.Key("comment_replies", comment.ID, "1", strconv.Itoa(util.DefaultPageSize))
	_, err := suite.store.Get(context.Background(), repliesKey)
	suite.Require().NoError(err, "replies listing is cached")

	w = suite.request(http.MethodDelete, "/api/v1/post/comment?comment_id="+replies[0].ID, suite.editorToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(int64(0), suite.postAnalytics(suite.post.ID).Comments)

	_, err = suite.store.Get(context.Background(), repliesKey)
	suite.ErrorIs(err, cache.ErrMiss)

	w = suite.request(http.MethodGet, "/api/v1/post/comment/replies?comment_id="+comment.ID, "", nil)
	p = suite.page(w, &replies)
	suite.Equal(int64(0), p.Count)
	suite.Empty(replies)
}

func (suite *HandlersTestSuite) TestUpdateCommentOwnerOnly() {
	id := suite.createComment(suite.aliceToken, "First draft")

	w := suite.request(http.MethodPut, "/api/v1/post/comment", suite.editorToken, gin.H{"comment_id": id, "content": "Hijacked"})
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.request(http.MethodPut, "/api/v1/post/comment", suite.aliceToken, gin.H{"comment_id": id, "content": "Edited"})
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("Comment content updated successfully.", suite.message(w))

	var comment models.Comment
	suite.Require().NoError(suite.db.First(&comment, "id = ?", id).Error)
	suite.Equal("Edited", comment.Content)
	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Comments)

	w = suite.request(http.MethodDelete, "/api/v1/post/comment?comment_id="+id, suite.editorToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Comments)
}

func (suite *HandlersTestSuite) TestCommentValidation() {
	w := suite.request(http.MethodPost, "/api/v1/post/comment", suite.aliceToken, gin.H{"post_slug": "hello-world", "content": "  "})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Comment content must not be empty.", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/post/comment", suite.aliceToken, gin.H{"post_slug": "nope", "content": "hi"})
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/post/comment/reply", suite.aliceToken, gin.H{"comment_id": "missing", "content": "hi"})
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Comment with id missing does not exist.", suite.apiError(w).Message)

	w = suite.request(http.MethodGet, "/api/v1/post/comment/replies?comment_id=missing", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Comment with id: missing does not exist", suite.apiError(w).Message)

	suite.Equal(int64(0), suite.postAnalytics(suite.post.ID).Comments)
}

func (suite *HandlersTestSuite) TestPostAnalyticsForAuthorOnly() {
	suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{"slug": "hello-world"})

	w := suite.request(http.MethodGet, "/api/v1/post/analytics?slug=hello-world", suite.aliceToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.request(http.MethodGet, "/api/v1/post/analytics?slug=hello-world", suite.editorToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var res postAnalyticsResults
	suite.results(w, &res)
	suite.Require().NotNil(res.Analytics)
	suite.Equal(int64(1), res.Analytics.Likes)
	suite.Require().Len(res.Interactions, 1)
	suite.Equal(models.InteractionLike, res.Interactions[0].InteractionType)
}
